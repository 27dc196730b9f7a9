package worker

import (
	"time"

	"github.com/meshledger/ledger-node/src/chain"
	"github.com/meshledger/ledger-node/src/engine"
	"github.com/meshledger/ledger-node/src/entity"
	"github.com/meshledger/ledger-node/src/utils/config"
)

// UploadStrategy is a capability set, not an inheritance hierarchy (spec
// §9's "Polymorphism via strategies" design note).
type UploadStrategy interface {
	WorkerInterval() time.Duration
	StoragePeriods() int
	ShouldBundle(bundle *engine.BundleInProgress) bool
	BundlingSucceeded()
}

// ChallengeParticipationStrategy is the Challenge worker's capability set
// (spec §9).
type ChallengeParticipationStrategy interface {
	WorkerInterval() time.Duration
	RetryTimeout() time.Duration
	ShouldFetchBundle(c chain.Challenge) bool
	ShouldResolveChallenge(bundle *entity.Bundle) bool
	AfterChallengeResolution(bundle *entity.Bundle)
}

// DefaultUploadStrategy bundles whenever the bundle-in-progress holds at
// least MinBundleItems entities. It does not read MaxBundleItems; the only
// cap on bundle size is the chain's itemsCountLimit, applied by
// InitialiseBundling.
type DefaultUploadStrategy struct {
	config *config.Upload
}

func NewDefaultUploadStrategy(config *config.Upload) *DefaultUploadStrategy {
	return &DefaultUploadStrategy{config: config}
}

func (self *DefaultUploadStrategy) WorkerInterval() time.Duration { return self.config.WorkerInterval }
func (self *DefaultUploadStrategy) StoragePeriods() int           { return self.config.DefaultStoragePeriods }

func (self *DefaultUploadStrategy) ShouldBundle(bundle *engine.BundleInProgress) bool {
	count := len(bundle.Assets) + len(bundle.Events)
	return count >= self.config.MinBundleItems
}

func (self *DefaultUploadStrategy) BundlingSucceeded() {}

// DefaultChallengeParticipationStrategy always attempts to fetch and
// resolve; RetryTimeout comes straight from configuration.
type DefaultChallengeParticipationStrategy struct {
	config *config.Challenge
}

func NewDefaultChallengeParticipationStrategy(config *config.Challenge) *DefaultChallengeParticipationStrategy {
	return &DefaultChallengeParticipationStrategy{config: config}
}

func (self *DefaultChallengeParticipationStrategy) WorkerInterval() time.Duration {
	return self.config.WorkerInterval
}
func (self *DefaultChallengeParticipationStrategy) RetryTimeout() time.Duration {
	return self.config.RetryTimeout
}
func (self *DefaultChallengeParticipationStrategy) ShouldFetchBundle(c chain.Challenge) bool {
	return true
}
func (self *DefaultChallengeParticipationStrategy) ShouldResolveChallenge(bundle *entity.Bundle) bool {
	return bundle != nil
}
func (self *DefaultChallengeParticipationStrategy) AfterChallengeResolution(bundle *entity.Bundle) {}
