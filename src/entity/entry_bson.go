package entity

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// MarshalBSON mirrors MarshalJSON so entries persist in the document store
// as bare assets/events, the same verbatim shape the wire format uses.
func (e Entry) MarshalBSON() ([]byte, error) {
	switch {
	case e.Asset != nil:
		return bson.Marshal(e.Asset)
	case e.Event != nil:
		return bson.Marshal(e.Event)
	default:
		return nil, fmt.Errorf("empty entry")
	}
}

// UnmarshalBSON mirrors UnmarshalJSON's asset/event discrimination: only an
// event's content.idData carries a dataHash field.
func (e *Entry) UnmarshalBSON(data []byte) error {
	var probe struct {
		Content struct {
			IdData bson.M `bson:"idData"`
		} `bson:"content"`
	}
	if err := bson.Unmarshal(data, &probe); err != nil {
		return err
	}

	if _, isEvent := probe.Content.IdData["dataHash"]; isEvent {
		var ev Event
		if err := bson.Unmarshal(data, &ev); err != nil {
			return err
		}
		e.Event = &ev
		return nil
	}

	var as Asset
	if err := bson.Unmarshal(data, &as); err != nil {
		return err
	}
	e.Asset = &as
	return nil
}
