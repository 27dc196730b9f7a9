package entity

import (
	"crypto/ecdsa"
	"fmt"
	"sort"
	"time"
)

// Builder composes and mutates entities. It holds no mutable state beyond
// its injected collaborators (identity primitives), per spec §4.1: "holds
// only immutable configuration".
type Builder struct {
	identity Identity
}

// Identity is the subset of the identity-primitives contract (spec §6)
// the builder needs.
type Identity interface {
	CalculateHash(obj any) (string, error)
	Sign(secret *ecdsa.PrivateKey, obj any) (string, error)
	AddressFromSecret(secret *ecdsa.PrivateKey) string
}

func NewBuilder(identity Identity) *Builder {
	return &Builder{identity: identity}
}

// SetBundle returns a copy of e with metadata.bundleId set to bundleId.
func SetBundle[T Entity](e T, bundleId string) T {
	clone := cloneEntity(e)
	clone.Metadata().BundleId = &bundleId
	return clone
}

// RemoveBundle returns a copy of e with metadata.bundleId cleared. It is
// the inverse of SetBundle applied to an entity previously free of
// metadata (spec §8).
func RemoveBundle[T Entity](e T) T {
	clone := cloneEntity(e)
	clone.Metadata().BundleId = nil
	return clone
}

// SetEntityUploadTimestamp stamps metadata.entityUploadTimestamp = now.
func SetEntityUploadTimestamp[T Entity](e T, now time.Time) T {
	clone := cloneEntity(e)
	ts := now.Unix()
	clone.Metadata().EntityUploadTimestamp = &ts
	return clone
}

// cloneEntity dispatches to the concrete Clone method so callers get a
// copy, never mutating the input (spec's "returns a copy" operations).
func cloneEntity[T Entity](e T) T {
	switch v := any(e).(type) {
	case *Asset:
		return any(v.Clone()).(T)
	case *Event:
		return any(v.Clone()).(T)
	default:
		panic(fmt.Sprintf("cloneEntity: unsupported entity type %T", e))
	}
}

// PrepareEventForBundlePublication returns a copy of event with
// content.data stripped iff accessLevel > 0 and data is present; otherwise
// it returns event itself, unchanged (spec §4.1). This is
// RedactEvent evaluated for a public (accessLevel 0) reader, reusing the
// single redaction predicate shared with the repository's read path.
func PrepareEventForBundlePublication(event *Event) *Event {
	return RedactEvent(event, 0)
}

// AssembleBundle composes a bundle from assets and events per spec §4.1.
func (b *Builder) AssembleBundle(assets []*Asset, events []*Event, timestamp int64, secret *ecdsa.PrivateKey) (*Bundle, error) {
	entries := make([]Entry, 0, len(assets)+len(events))

	for _, a := range assets {
		entries = append(entries, Entry{Asset: RemoveBundle(a)})
	}
	for _, e := range events {
		stripped := RemoveBundle(e)
		redacted := PrepareEventForBundlePublication(stripped)
		entries = append(entries, Entry{Event: redacted})
	}

	// Deterministic ordering so entriesHash is reproducible regardless of
	// the caller's slice order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Id() < entries[j].Id() })

	entriesHash, err := b.identity.CalculateHash(entries)
	if err != nil {
		return nil, fmt.Errorf("hash entries: %w", err)
	}

	idData := BundleIdData{
		CreatedBy:   b.identity.AddressFromSecret(secret),
		Timestamp:   timestamp,
		EntriesHash: entriesHash,
	}

	signature, err := b.identity.Sign(secret, idData)
	if err != nil {
		return nil, fmt.Errorf("sign bundle: %w", err)
	}

	content := BundleContent{
		IdData:    idData,
		Entries:   entries,
		Signature: signature,
	}

	bundleId, err := b.identity.CalculateHash(content)
	if err != nil {
		return nil, fmt.Errorf("hash bundle content: %w", err)
	}

	return &Bundle{
		BundleId: bundleId,
		Content:  content,
	}, nil
}
