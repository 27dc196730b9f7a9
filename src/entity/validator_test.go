package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshledger/ledger-node/src/entity/schema"
)

// fakeValidatorIdentity lets tests steer hash/signature outcomes without
// a real key, to exercise the validator's fixed shape->hash->signature->
// timestamp ordering deterministically.
type fakeValidatorIdentity struct {
	hashMatches bool
	hashErr     error
	sigErr      error
}

func (f *fakeValidatorIdentity) CheckHashMatches(hash string, obj any) (bool, error) {
	return f.hashMatches, f.hashErr
}

func (f *fakeValidatorIdentity) ValidateSignature(address string, signature string, obj any) error {
	return f.sigErr
}

func newTestValidator(id *fakeValidatorIdentity) *Validator {
	return NewValidator(24*time.Hour, schema.Default(), id)
}

func validAssetRaw() map[string]any {
	return map[string]any{
		"assetId": "0xasset",
		"content": map[string]any{
			"idData": map[string]any{
				"createdBy":      "0xcreator",
				"timestamp":      float64(time.Now().Unix()),
				"sequenceNumber": float64(0),
			},
			"signature": "0xsig",
		},
	}
}

func TestValidateAsset_RejectsUnknownRootField(t *testing.T) {
	raw := validAssetRaw()
	raw["bogus"] = "x"

	v := newTestValidator(&fakeValidatorIdentity{hashMatches: true})
	_, err := v.ValidateAsset(raw)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestValidateAsset_RejectsHashMismatchBeforeSignature(t *testing.T) {
	raw := validAssetRaw()

	// Signature would also fail, but hash is checked first; the error
	// must be about the hash, proving the fixed check ordering.
	v := newTestValidator(&fakeValidatorIdentity{hashMatches: false, sigErr: errors.New("bad sig")})
	_, err := v.ValidateAsset(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assetId does not match")
}

func TestValidateAsset_RejectsBadSignatureAfterHashPasses(t *testing.T) {
	raw := validAssetRaw()

	v := newTestValidator(&fakeValidatorIdentity{hashMatches: true, sigErr: errors.New("bad sig")})
	_, err := v.ValidateAsset(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature invalid")
}

func TestValidateAsset_RejectsStaleTimestamp(t *testing.T) {
	raw := validAssetRaw()
	raw["content"].(map[string]any)["idData"].(map[string]any)["timestamp"] = float64(time.Now().Add(-48 * time.Hour).Unix())

	v := newTestValidator(&fakeValidatorIdentity{hashMatches: true})
	_, err := v.ValidateAsset(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp outside allowed limit")
}

func TestValidateAsset_AcceptsValidShape(t *testing.T) {
	raw := validAssetRaw()

	v := newTestValidator(&fakeValidatorIdentity{hashMatches: true})
	asset, err := v.ValidateAsset(raw)
	require.NoError(t, err)
	assert.Equal(t, "0xasset", asset.AssetId)
}

func validEventRaw(accessLevel int) map[string]any {
	return map[string]any{
		"eventId": "0xevent",
		"content": map[string]any{
			"idData": map[string]any{
				"assetId":     "0xasset",
				"createdBy":   "0xcreator",
				"timestamp":   float64(time.Now().Unix()),
				"accessLevel": float64(accessLevel),
				"dataHash":    "0xdatahash",
			},
			"signature": "0xsig",
			"data": []any{
				map[string]any{"type": "ambrosus.event.identifiers", "identifiers": "abc"},
			},
		},
	}
}

func TestValidateEvent_RejectsDataHashMismatch(t *testing.T) {
	raw := validEventRaw(0)

	// The eventId hash check passes; only the dataHash check fails.
	v := NewValidator(24*time.Hour, schema.Default(), &sequencedIdentity{results: []bool{true, false}})
	_, err := v.ValidateEvent(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataHash does not match")
}

func TestValidateEvent_SkipsDataHashCheckWhenRedacted(t *testing.T) {
	raw := validEventRaw(2)
	delete(raw["content"].(map[string]any), "data")

	callCount := 0
	id := &fakeValidatorIdentity{hashMatches: true}
	v := NewValidator(24*time.Hour, schema.Default(), countingIdentity{id, &callCount})
	_, err := v.ValidateEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, callCount, "only the eventId hash should be checked, not dataHash, when data is absent")
}

type countingIdentity struct {
	inner *fakeValidatorIdentity
	calls *int
}

func (c countingIdentity) CheckHashMatches(hash string, obj any) (bool, error) {
	*c.calls++
	return c.inner.CheckHashMatches(hash, obj)
}

func (c countingIdentity) ValidateSignature(address string, signature string, obj any) error {
	return c.inner.ValidateSignature(address, signature, obj)
}

func TestValidateEvent_RejectsUnknownSchemaField(t *testing.T) {
	raw := validEventRaw(0)
	raw["content"].(map[string]any)["data"] = []any{
		map[string]any{"type": "ambrosus.event.identifiers", "unexpectedField": "x"},
	}

	v := newTestValidator(&fakeValidatorIdentity{hashMatches: true})
	_, err := v.ValidateEvent(raw)
	require.Error(t, err)
	var jerr *JsonValidationError
	require.True(t, errors.As(err, &jerr))
}

func TestValidateEvent_AcceptsValidShape(t *testing.T) {
	raw := validEventRaw(0)

	v := newTestValidator(&fakeValidatorIdentity{hashMatches: true})
	event, err := v.ValidateEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "0xevent", event.EventId)
}

func validBundleRaw() map[string]any {
	return map[string]any{
		"bundleId": "0xbundle",
		"content": map[string]any{
			"idData": map[string]any{
				"createdBy":   "0xcreator",
				"timestamp":   float64(time.Now().Unix()),
				"entriesHash": "0xentrieshash",
			},
			"signature": "0xsig",
			"entries":   []any{},
		},
	}
}

func TestValidateBundle_RejectsEntriesHashMismatch(t *testing.T) {
	raw := validBundleRaw()

	v := newTestValidator(&fakeValidatorIdentity{hashMatches: true})
	// force entriesHash check to fail specifically via a custom identity.
	id := &sequencedIdentity{results: []bool{true, false}}
	v = NewValidator(24*time.Hour, schema.Default(), id)

	_, err := v.ValidateBundle(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entriesHash does not match")
}

// sequencedIdentity returns successive booleans from results on each
// CheckHashMatches call, letting a test target the Nth hash check.
type sequencedIdentity struct {
	results []bool
	calls   int
}

func (s *sequencedIdentity) CheckHashMatches(hash string, obj any) (bool, error) {
	r := s.results[s.calls]
	s.calls++
	return r, nil
}

func (s *sequencedIdentity) ValidateSignature(address string, signature string, obj any) error {
	return nil
}

func TestValidateBundle_RejectsUnredactedEventAboveAccessLevel(t *testing.T) {
	raw := validBundleRaw()
	raw["content"].(map[string]any)["entries"] = []any{
		map[string]any{
			"eventId": "0xevent",
			"content": map[string]any{
				"idData": map[string]any{
					"assetId":     "0xasset",
					"createdBy":   "0xcreator",
					"timestamp":   float64(time.Now().Unix()),
					"accessLevel": float64(2),
					"dataHash":    "0xdatahash",
				},
				"signature": "0xsig",
				"data": []any{
					map[string]any{"type": "ambrosus.event.identifiers", "identifiers": "abc"},
				},
			},
		},
	}

	v := newTestValidator(&fakeValidatorIdentity{hashMatches: true})
	_, err := v.ValidateBundle(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be redacted")
}

func TestValidateBundle_AcceptsValidShape(t *testing.T) {
	raw := validBundleRaw()

	v := newTestValidator(&fakeValidatorIdentity{hashMatches: true})
	bundle, err := v.ValidateBundle(raw)
	require.NoError(t, err)
	assert.Equal(t, "0xbundle", bundle.BundleId)
}
