package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/meshledger/ledger-node/src/entity/schema"
	"github.com/meshledger/ledger-node/src/identity"
)

// marshalToRaw round-trips v through JSON into the map[string]any shape
// the validator expects as input (the shape it would receive off the
// wire, before any typed decoding).
func marshalToRaw(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw
}

// TestAssembleBundle_ThenValidate_RoundTrips exercises the full pipeline
// described by spec §4.1's assembleBundle: strip bundleId, redact events
// above access level 0, hash and sign, and checks the result validates.
func TestAssembleBundle_ThenValidate_RoundTrips(t *testing.T) {
	prim := identity.New()
	secret, err := crypto.GenerateKey()
	require.NoError(t, err)

	createdBy := prim.AddressFromSecret(secret)

	asset := &Asset{
		Content: AssetContent{
			IdData: AssetIdData{CreatedBy: createdBy, Timestamp: time.Now().Unix(), SequenceNumber: 0},
		},
	}
	sig, err := prim.Sign(secret, asset.Content.IdData)
	require.NoError(t, err)
	asset.Content.Signature = sig
	assetId, err := prim.CalculateHash(asset.Content)
	require.NoError(t, err)
	asset.AssetId = assetId

	event := &Event{
		Content: EventContent{
			IdData: EventIdData{
				AssetId:     assetId,
				CreatedBy:   createdBy,
				Timestamp:   time.Now().Unix(),
				AccessLevel: 1,
			},
			Data: []DataEntry{{"type": "ambrosus.event.identifiers", "identifiers": "abc"}},
		},
	}
	dataHash, err := prim.CalculateHash(event.Content.Data)
	require.NoError(t, err)
	event.Content.IdData.DataHash = dataHash
	eventSig, err := prim.Sign(secret, event.Content.IdData)
	require.NoError(t, err)
	event.Content.Signature = eventSig
	eventId, err := prim.CalculateHash(event.Content)
	require.NoError(t, err)
	event.EventId = eventId

	builder := NewBuilder(prim)
	bundle, err := builder.AssembleBundle([]*Asset{asset}, []*Event{event}, time.Now().Unix(), secret)
	require.NoError(t, err)
	require.Len(t, bundle.Content.Entries, 2)

	for _, entry := range bundle.Content.Entries {
		if entry.Event != nil {
			require.False(t, entry.Event.HasData(), "accessLevel=1 event must be redacted in bundle")
		}
	}

	validator := NewValidator(24*time.Hour, schema.Default(), prim)
	raw := marshalToRaw(t, bundle)
	_, err = validator.ValidateBundle(raw)
	require.NoError(t, err)
}

func TestSetBundle_RemoveBundle_Inverse(t *testing.T) {
	asset := &Asset{AssetId: "0xabc"}
	withBundle := SetBundle(asset, "bundle-1")
	require.Equal(t, "bundle-1", *withBundle.Metadata().BundleId)

	removed := RemoveBundle(withBundle)
	require.Nil(t, removed.Metadata().BundleId)
	require.Equal(t, asset.AssetId, removed.AssetId)
}
