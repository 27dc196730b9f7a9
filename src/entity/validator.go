package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meshledger/ledger-node/src/entity/schema"
)

// Validator is a pure-function gate over every ingress. It holds only
// immutable configuration (spec §4.1): the timestamp tolerance, the
// type-schema registry and an injected identity-primitives handle.
type Validator struct {
	timestampLimit time.Duration
	schemas        *schema.Registry
	identity       ValidatorIdentity
	now            func() time.Time
}

// ValidatorIdentity is the subset of the identity-primitives contract
// (spec §6) the validator needs.
type ValidatorIdentity interface {
	CheckHashMatches(hash string, obj any) (bool, error)
	ValidateSignature(address string, signature string, obj any) error
}

func NewValidator(timestampLimit time.Duration, schemas *schema.Registry, identity ValidatorIdentity) *Validator {
	return &Validator{
		timestampLimit: timestampLimit,
		schemas:        schemas,
		identity:       identity,
		now:            time.Now,
	}
}

var assetRootFields = map[string]bool{"assetId": true, "content": true, "metadata": true}
var eventRootFields = map[string]bool{"eventId": true, "content": true, "metadata": true}
var bundleRootFields = map[string]bool{"bundleId": true, "content": true, "metadata": true}

var assetContentFields = map[string]bool{"idData": true, "signature": true}
var eventContentFields = map[string]bool{"idData": true, "signature": true, "data": true}
var bundleContentFields = map[string]bool{"idData": true, "signature": true, "entries": true}

func checkShape(raw map[string]any, allowedRoot map[string]bool, contentKey string, allowedContent map[string]bool) error {
	for k := range raw {
		if !allowedRoot[k] {
			return fmt.Errorf("unknown root field %q", k)
		}
	}
	rawContent, ok := raw[contentKey]
	if !ok {
		return fmt.Errorf("missing %q", contentKey)
	}
	contentMap, ok := rawContent.(map[string]any)
	if !ok {
		return fmt.Errorf("%q must be an object", contentKey)
	}
	for k := range contentMap {
		if !allowedContent[k] {
			return fmt.Errorf("unknown content field %q", k)
		}
	}
	return nil
}

func (v *Validator) isTimestampWithinLimit(ts int64) bool {
	now := v.now().Unix()
	diff := now - ts
	if diff < 0 {
		diff = -diff
	}
	return time.Duration(diff)*time.Second <= v.timestampLimit
}

// ValidateAsset implements spec §4.1's validateAsset. Validation order is
// fixed: shape -> hash -> signature -> timestamp.
func (v *Validator) ValidateAsset(raw map[string]any) (*Asset, error) {
	if err := checkShape(raw, assetRootFields, "content", assetContentFields); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	var a Asset
	if err := remarshal(raw, &a); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	matches, err := v.identity.CheckHashMatches(a.AssetId, a.Content)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if !matches {
		return nil, NewValidationError("assetId does not match H(content)")
	}

	if err := v.identity.ValidateSignature(a.Content.IdData.CreatedBy, a.Content.Signature, a.Content.IdData); err != nil {
		return nil, NewValidationError("signature invalid: %s", err)
	}

	if a.Content.IdData.Timestamp < 0 {
		return nil, NewValidationError("timestamp must be non-negative")
	}
	if a.Content.IdData.SequenceNumber < 0 {
		return nil, NewValidationError("sequenceNumber must be non-negative")
	}
	if !v.isTimestampWithinLimit(a.Content.IdData.Timestamp) {
		return nil, NewValidationError("timestamp outside allowed limit")
	}

	return &a, nil
}

// ValidateEvent implements spec §4.1's validateEvent.
func (v *Validator) ValidateEvent(raw map[string]any) (*Event, error) {
	if err := checkShape(raw, eventRootFields, "content", eventContentFields); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	var e Event
	if err := remarshal(raw, &e); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	matches, err := v.identity.CheckHashMatches(e.EventId, e.Content)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if !matches {
		return nil, NewValidationError("eventId does not match H(content)")
	}

	if e.HasData() {
		dataMatches, err := v.identity.CheckHashMatches(e.Content.IdData.DataHash, e.Content.Data)
		if err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		if !dataMatches {
			return nil, NewValidationError("dataHash does not match H(content.data)")
		}
	}

	if err := v.identity.ValidateSignature(e.Content.IdData.CreatedBy, e.Content.Signature, e.Content.IdData); err != nil {
		return nil, NewValidationError("signature invalid: %s", err)
	}

	if e.Content.IdData.Timestamp < 0 {
		return nil, NewValidationError("timestamp must be non-negative")
	}
	if e.Content.IdData.AccessLevel < 0 {
		return nil, NewValidationError("accessLevel must be non-negative")
	}
	if !v.isTimestampWithinLimit(e.Content.IdData.Timestamp) {
		return nil, NewValidationError("timestamp outside allowed limit")
	}

	if schemaErrs := v.validateEntries(e.Content.Data); len(schemaErrs) > 0 {
		return nil, NewJsonValidationError(schemaErrs)
	}

	return &e, nil
}

func (v *Validator) validateEntries(entries []DataEntry) []SchemaError {
	var errs []SchemaError
	for i, entry := range entries {
		t := entry.Type()
		if t == "" {
			errs = append(errs, SchemaError{DataPath: fmt.Sprintf("[%d]", i), Message: "type is required"})
			continue
		}
		for _, se := range v.schemas.Validate(t, entry) {
			errs = append(errs, SchemaError{DataPath: fmt.Sprintf("[%d]%s", i, se.DataPath), Message: se.Message})
		}
	}
	return errs
}

// ValidateBundle implements spec §4.1's validateBundle.
func (v *Validator) ValidateBundle(raw map[string]any) (*Bundle, error) {
	if err := checkShape(raw, bundleRootFields, "content", bundleContentFields); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	var b Bundle
	if err := remarshal(raw, &b); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	matches, err := v.identity.CheckHashMatches(b.BundleId, b.Content)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if !matches {
		return nil, NewValidationError("bundleId does not match H(content)")
	}

	entriesMatch, err := v.identity.CheckHashMatches(b.Content.IdData.EntriesHash, b.Content.Entries)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if !entriesMatch {
		return nil, NewValidationError("entriesHash does not match H(content.entries)")
	}

	if err := v.identity.ValidateSignature(b.Content.IdData.CreatedBy, b.Content.Signature, b.Content.IdData); err != nil {
		return nil, NewValidationError("signature invalid: %s", err)
	}

	for _, entry := range b.Content.Entries {
		if entry.Event != nil && entry.Event.Content.IdData.AccessLevel > 0 && entry.Event.HasData() {
			return nil, NewValidationError("event %s must be redacted in a bundle", entry.Id())
		}
	}

	return &b, nil
}

func remarshal(raw map[string]any, out any) error {
	buf, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
