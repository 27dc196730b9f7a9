package entity

// DataEntry is one typed entry of an event's content.data. Every entry
// must carry a "type" field; entries whose type is registered in the
// schema registry are further validated against that type's schema.
type DataEntry map[string]any

// Type returns the entry's "type" field, or "" if missing/not a string.
func (e DataEntry) Type() string {
	t, _ := e["type"].(string)
	return t
}

// Event is a timestamped observation attached to an asset. It carries an
// access level gating disclosure of its data (spec §3, Glossary).
type Event struct {
	EventId string          `json:"eventId" bson:"_id"`
	Content EventContent    `json:"content" bson:"content"`
	Meta    *EntityMetadata `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

type EventContent struct {
	IdData    EventIdData `json:"idData" bson:"idData"`
	Data      []DataEntry `json:"data,omitempty" bson:"data,omitempty"`
	Signature string      `json:"signature" bson:"signature"`
}

type EventIdData struct {
	AssetId     string `json:"assetId" bson:"assetId"`
	CreatedBy   string `json:"createdBy" bson:"createdBy"`
	Timestamp   int64  `json:"timestamp" bson:"timestamp"`
	DataHash    string `json:"dataHash" bson:"dataHash"`
	AccessLevel int    `json:"accessLevel" bson:"accessLevel"`
}

func (e *Event) Id() string { return e.EventId }

func (e *Event) SetId(id string) { e.EventId = id }

func (e *Event) Metadata() *EntityMetadata {
	if e.Meta == nil {
		e.Meta = &EntityMetadata{}
	}
	return e.Meta
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	clone := *e
	if e.Content.Data != nil {
		clone.Content.Data = make([]DataEntry, len(e.Content.Data))
		for i, entry := range e.Content.Data {
			entryCopy := make(DataEntry, len(entry))
			for k, v := range entry {
				entryCopy[k] = v
			}
			clone.Content.Data[i] = entryCopy
		}
	}
	if e.Meta != nil {
		metaCopy := *e.Meta
		clone.Meta = &metaCopy
	}
	return &clone
}

// HasData reports whether content.data is still present (it is stripped
// by redaction for access-gated events, see RedactEvent).
func (e *Event) HasData() bool {
	return e.Content.Data != nil
}
