package entity

// Bundle is a signed collection of assets and redacted events, committed
// on-chain (spec §3, Glossary).
type Bundle struct {
	BundleId string          `json:"bundleId" bson:"_id"`
	Content  BundleContent   `json:"content" bson:"content"`
	Meta     *BundleMetadata `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

type BundleContent struct {
	IdData    BundleIdData `json:"idData" bson:"idData"`
	Entries   []Entry      `json:"entries" bson:"entries"`
	Signature string       `json:"signature" bson:"signature"`
}

type BundleIdData struct {
	CreatedBy   string `json:"createdBy" bson:"createdBy"`
	Timestamp   int64  `json:"timestamp" bson:"timestamp"`
	EntriesHash string `json:"entriesHash" bson:"entriesHash"`
}

// BundleMetadata is populated after on-chain commitment (spec §3).
type BundleMetadata struct {
	ProofBlock            *int64  `json:"proofBlock,omitempty" bson:"proofBlock,omitempty"`
	BundleTransactionHash *string `json:"bundleTransactionHash,omitempty" bson:"bundleTransactionHash,omitempty"`
}

// EntityMetadata is the server-side-only metadata carried by assets and
// events.
type EntityMetadata struct {
	BundleId              *string `json:"bundleId,omitempty" bson:"bundleId,omitempty"`
	BundleTransactionHash *string `json:"bundleTransactionHash,omitempty" bson:"bundleTransactionHash,omitempty"`
	EntityUploadTimestamp *int64  `json:"entityUploadTimestamp,omitempty" bson:"entityUploadTimestamp,omitempty"`
}

// Entry is either an asset or a redacted event, stored verbatim inside a
// bundle's content.entries (spec §3, invariant 3). Exactly one of Asset
// or Event is set.
type Entry struct {
	Asset *Asset `json:"-"`
	Event *Event `json:"-"`
}

// Id returns the wrapped entity's id, used to compute content.entries'
// hash and to build bundle entries sets.
func (e Entry) Id() string {
	if e.Asset != nil {
		return e.Asset.AssetId
	}
	if e.Event != nil {
		return e.Event.EventId
	}
	return ""
}

// Entity is the shared shape of assets and events the repository and
// builder operate on generically (setBundle/removeBundle etc.).
type Entity interface {
	Id() string
	SetId(string)
	Metadata() *EntityMetadata
}
