package worker

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/meshledger/ledger-node/src/cache"
	"github.com/meshledger/ledger-node/src/chain"
	"github.com/meshledger/ledger-node/src/engine"
	"github.com/meshledger/ledger-node/src/monitoring"
	"github.com/meshledger/ledger-node/src/utils/config"
	"github.com/meshledger/ledger-node/src/utils/logger"
	"github.com/meshledger/ledger-node/src/utils/task"
)

// ChallengesRepositoryClient is the subset of chain.ChallengesRepository
// the Challenge worker needs.
type ChallengesRepositoryClient interface {
	OngoingChallenges(ctx context.Context) ([]chain.Challenge, error)
	ResolveChallenge(ctx context.Context, challengeId string) error
}

// ChallengeWorker implements the Challenge worker's control loop (spec
// §4.3.2).
type ChallengeWorker struct {
	task *task.Task

	strategy   ChallengeParticipationStrategy
	repository ChallengesRepositoryClient
	engine     *engine.Engine
	failedCache *cache.FailedChallengeCache
	logs       *LogRepository
}

func NewChallengeWorker(cfg *config.Config, strategy ChallengeParticipationStrategy, repository ChallengesRepositoryClient, eng *engine.Engine, failedCache *cache.FailedChallengeCache, logs *LogRepository) *ChallengeWorker {
	self := &ChallengeWorker{
		strategy:    strategy,
		repository:  repository,
		engine:      eng,
		failedCache: failedCache,
		logs:        logs,
	}

	self.task = task.NewTask(cfg, "challenge-worker").
		WithPeriodicSubtaskFunc(strategy.WorkerInterval(), self.tick)

	return self
}

func (self *ChallengeWorker) Start() error { return self.task.Start() }
func (self *ChallengeWorker) Stop()        { self.task.Stop() }
func (self *ChallengeWorker) StopWait()    { self.task.Stop(); <-self.task.CtxRunning.Done() }

func (self *ChallengeWorker) tick() error {
	ctx := self.task.Ctx
	log := logger.NewSublogger("challenge-worker")
	monitoring.ChallengeTicks.Inc()

	challenges, err := self.repository.OngoingChallenges(ctx)
	if err != nil {
		log.WithError(err).Error("failed to fetch ongoing challenges")
		return nil
	}
	log.WithField("count", len(challenges)).Debug("ongoing challenges")

	for _, c := range challenges {
		if self.tryWithChallenge(ctx, c, log) {
			break
		}
	}

	self.failedCache.ClearOutdatedChallenges()
	return nil
}

// tryWithChallenge implements spec §4.3.2's per-challenge flow. Any
// failure inside is locally recovered: the challenge is negatively
// cached and the tick continues with the next challenge.
func (self *ChallengeWorker) tryWithChallenge(ctx context.Context, c chain.Challenge, log *logrus.Entry) bool {
	if self.failedCache.DidChallengeFailRecently(c.ChallengeId) {
		monitoring.FailedChallengeCacheHits.Inc()
		return false
	}

	if !self.strategy.ShouldFetchBundle(c) {
		log.WithField("challengeId", c.ChallengeId).Debug("Decided not to download bundle")
		return false
	}

	bundle, err := self.engine.DownloadBundle(ctx, c.BundleId, c.SheltererId)
	if err != nil {
		self.remember(c, log, err)
		return false
	}

	if !self.strategy.ShouldResolveChallenge(bundle) {
		log.WithField("challengeId", c.ChallengeId).Debug("Challenge resolution cancelled")
		return false
	}

	if err := self.repository.ResolveChallenge(ctx, c.ChallengeId); err != nil {
		self.remember(c, log, err)
		return false
	}
	if err := self.engine.UpdateShelteringExpirationDate(ctx, bundle.BundleId); err != nil {
		self.remember(c, log, err)
		return false
	}

	self.strategy.AfterChallengeResolution(bundle)
	monitoring.ChallengesResolved.Inc()
	return true
}

func (self *ChallengeWorker) remember(c chain.Challenge, log *logrus.Entry, err error) {
	self.failedCache.RememberFailedChallenge(c.ChallengeId, self.strategy.RetryTimeout())
	monitoring.ChallengesFailed.Inc()
	log.WithError(err).WithField("challengeId", c.ChallengeId).Error("challenge resolution failed")
	self.logs.Append("challenge-worker", "error", "challenge "+c.ChallengeId+" failed: "+err.Error())
}
