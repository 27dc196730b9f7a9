// Package engine implements the Data Model Engine (C4): it orchestrates
// the builder, repository and blockchain client for bundling, and the peer
// client for bundle downloads. Entity ingress is not routed through it.
package engine

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meshledger/ledger-node/src/chain"
	"github.com/meshledger/ledger-node/src/entity"
	"github.com/meshledger/ledger-node/src/peer"
	"github.com/meshledger/ledger-node/src/repository"
	"github.com/meshledger/ledger-node/src/utils/logger"
)

// Engine wires the builder, repository and chain collaborators the way
// spec §2's data flow describes: Upload worker -> engine -> repository /
// chain, Challenge worker -> engine -> peer client.
type Engine struct {
	builder    *entity.Builder
	repository *repository.Repository
	upload     *chain.UploadRepository
	peerClient *peer.Client
	secret     *ecdsa.PrivateKey
	log        *logrus.Entry
}

func New(builder *entity.Builder, repo *repository.Repository, upload *chain.UploadRepository, peerClient *peer.Client, secret *ecdsa.PrivateKey) *Engine {
	return &Engine{
		builder:    builder,
		repository: repo,
		upload:     upload,
		peerClient: peerClient,
		secret:     secret,
		log:        logger.NewSublogger("engine"),
	}
}

// BundleInProgress is the claimed-but-not-yet-committed set of entities
// initialiseBundling returns.
type BundleInProgress struct {
	StubId string
	Assets []*entity.Asset
	Events []*entity.Event
}

// stubId is worker-local and not persisted across restarts (spec §9, open
// question c): it derives deterministically from the worker's
// sequenceNumber.
func stubId(sequenceNumber int64) string {
	return fmt.Sprintf("stub-%d", sequenceNumber)
}

// InitialiseBundling performs beginBundle internally and returns a
// bundle-in-progress (spec §4.3.1 step 5). beginBundle claims every free
// entity; when itemsCountLimit is positive and the claim exceeds it, the
// returned set is cut to itemsCountLimit entities (assets first, then
// events) and the claim on the rest is released back to the free pool.
func (self *Engine) InitialiseBundling(ctx context.Context, sequenceNumber int64, itemsCountLimit int) (*BundleInProgress, error) {
	stub := stubId(sequenceNumber)

	claimed, err := self.repository.BeginBundle(ctx, stub)
	if err != nil {
		return nil, fmt.Errorf("begin bundle %s: %w", stub, err)
	}

	assets := claimed.Assets
	events := claimed.Events
	if itemsCountLimit > 0 && len(assets)+len(events) > itemsCountLimit {
		assets = assets[:min(len(assets), itemsCountLimit)]
		remaining := itemsCountLimit - len(assets)
		if remaining < 0 {
			remaining = 0
		}
		events = events[:min(len(events), remaining)]

		// beginBundle claims every free entity; anything truncated away
		// here must be released back to the free pool, or it would carry
		// stub's bundleId forever without ever being part of a bundle
		// (endBundle matches purely on metadata.bundleId == stub).
		keepAssetIds := make([]string, len(assets))
		for i, a := range assets {
			keepAssetIds[i] = a.AssetId
		}
		keepEventIds := make([]string, len(events))
		for i, e := range events {
			keepEventIds[i] = e.EventId
		}
		if err := self.repository.ReleaseExcessClaim(ctx, stub, keepAssetIds, keepEventIds); err != nil {
			return nil, fmt.Errorf("release excess claim %s: %w", stub, err)
		}
	}

	return &BundleInProgress{StubId: stub, Assets: assets, Events: events}, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// FinaliseBundling assembles, uploads and commits the bundle-in-progress.
// It returns nil (not an error) on a recoverable upload failure, per spec
// §4.3.1 step 6 and §7's error-handling design: "a null result ... is
// interpreted ... as a recoverable failure".
func (self *Engine) FinaliseBundling(ctx context.Context, bundle *BundleInProgress, sequenceNumber int64, storagePeriods int) (*entity.Bundle, error) {
	assembled, err := self.builder.AssembleBundle(bundle.Assets, bundle.Events, time.Now().Unix(), self.secret)
	if err != nil {
		return nil, fmt.Errorf("assemble bundle: %w", err)
	}

	proofBlock, txHash, err := self.upload.UploadBundleProof(ctx, assembled, storagePeriods)
	if err != nil {
		self.log.WithError(err).Warn("bundle proof upload failed")
		return nil, nil
	}

	if err := self.repository.StoreBundle(ctx, assembled); err != nil {
		return nil, fmt.Errorf("store bundle: %w", err)
	}
	if err := self.repository.EndBundle(ctx, bundle.StubId, assembled.BundleId); err != nil {
		return nil, fmt.Errorf("end bundle: %w", err)
	}
	if err := self.repository.StoreBundleProofMetadata(ctx, assembled.BundleId, proofBlock, txHash); err != nil {
		return nil, fmt.Errorf("store bundle proof metadata: %w", err)
	}

	return assembled, nil
}

// CancelBundling logs the cancellation. Entities remain claimed under
// stubId(sequenceNumber); because sequenceNumber isn't advanced on
// cancellation, the next tick's InitialiseBundling reuses the same stub
// and re-reads the same claimed set (plus any newly freed entities).
func (self *Engine) CancelBundling(sequenceNumber int64) {
	self.log.WithField("stubId", stubId(sequenceNumber)).Debug("bundling process canceled")
}

// UploadNotRegisteredBundles finds COMMITTED bundles missing proof (crash
// between endBundle and storeBundleProofMetadata) and re-uploads them
// (spec §4.3.1 step 3, §7's crash recovery design). A bundle that fails to
// re-upload is skipped, not fatal, so the sweep still covers the rest.
func (self *Engine) UploadNotRegisteredBundles(ctx context.Context, storagePeriods int) ([]*entity.Bundle, error) {
	unproven, err := self.repository.FindUnprovenBundles(ctx)
	if err != nil {
		return nil, fmt.Errorf("find unproven bundles: %w", err)
	}

	var reuploaded []*entity.Bundle
	for _, bundle := range unproven {
		proofBlock, txHash, err := self.upload.UploadBundleProof(ctx, bundle, storagePeriods)
		if err != nil {
			self.log.WithError(err).WithField("bundleId", bundle.BundleId).Warn("re-upload of unregistered bundle failed")
			continue
		}

		if err := self.repository.StoreBundleProofMetadata(ctx, bundle.BundleId, proofBlock, txHash); err != nil {
			return reuploaded, fmt.Errorf("store bundle proof metadata for %s: %w", bundle.BundleId, err)
		}
		reuploaded = append(reuploaded, bundle)
	}

	return reuploaded, nil
}

// DownloadBundle fetches bundleId from sheltererId, which is the peer's
// base URL in this implementation.
func (self *Engine) DownloadBundle(ctx context.Context, bundleId string, sheltererId string) (*entity.Bundle, error) {
	return self.peerClient.DownloadBundle(ctx, sheltererId, bundleId)
}

// UpdateShelteringExpirationDate is a no-op at the core level: sheltering
// expiration is governed externally (spec §3's Destroyed lifecycle state,
// "retention is a function of sheltering expiration (external)").
func (self *Engine) UpdateShelteringExpirationDate(ctx context.Context, bundleId string) error {
	self.log.WithField("bundleId", bundleId).Debug("sheltering expiration date updated")
	return nil
}
