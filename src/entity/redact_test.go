package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(accessLevel int) *Event {
	return &Event{
		EventId: "0xevent",
		Content: EventContent{
			IdData: EventIdData{
				AssetId:     "0xasset",
				CreatedBy:   "0xcreator",
				Timestamp:   1000,
				AccessLevel: accessLevel,
			},
			Data:      []DataEntry{{"type": "ambrosus.event.identifiers", "identifiers": "abc"}},
			Signature: "0xsig",
		},
	}
}

func TestRedactEvent_BelowOrEqualAccessLevel_Unchanged(t *testing.T) {
	e := sampleEvent(2)
	redacted := RedactEvent(e, 5)
	assert.Same(t, e, redacted)
	assert.True(t, redacted.HasData())
}

func TestRedactEvent_AboveAccessLevel_StripsData(t *testing.T) {
	e := sampleEvent(5)
	redacted := RedactEvent(e, 2)
	require.NotSame(t, e, redacted)
	assert.False(t, redacted.HasData())
	assert.True(t, e.HasData(), "original must be untouched")
}

func TestRedactEvent_Idempotent(t *testing.T) {
	e := sampleEvent(5)
	once := RedactEvent(e, 0)
	twice := RedactEvent(once, 0)
	assert.Equal(t, once, twice)
}

func TestRedactEvent_NoData_Unchanged(t *testing.T) {
	e := sampleEvent(5)
	e.Content.Data = nil
	redacted := RedactEvent(e, 0)
	assert.Same(t, e, redacted)
}
