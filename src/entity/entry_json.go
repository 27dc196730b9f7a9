package entity

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON serializes an Entry as the bare asset or event it wraps,
// since content.entries is a set of assets and redacted events, not a
// set of {asset, event} envelopes.
func (e Entry) MarshalJSON() ([]byte, error) {
	switch {
	case e.Asset != nil:
		return json.Marshal(e.Asset)
	case e.Event != nil:
		return json.Marshal(e.Event)
	default:
		return nil, fmt.Errorf("empty entry")
	}
}

// UnmarshalJSON distinguishes an asset from an event by the presence of
// an "eventId" root field (events have one, assets don't, see invariant 6
// of spec §3: no root fields other than the id-field/content/metadata).
func (e *Entry) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if _, isEvent := probe["eventId"]; isEvent {
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		e.Event = &ev
		return nil
	}

	var as Asset
	if err := json.Unmarshal(data, &as); err != nil {
		return err
	}
	e.Asset = &as
	return nil
}
