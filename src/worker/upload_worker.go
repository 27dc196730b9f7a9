package worker

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/meshledger/ledger-node/src/engine"
	"github.com/meshledger/ledger-node/src/monitoring"
	"github.com/meshledger/ledger-node/src/utils/config"
	"github.com/meshledger/ledger-node/src/utils/logger"
	"github.com/meshledger/ledger-node/src/utils/task"
)

// UploadRepositoryClient is the subset of chain.UploadRepository the
// Upload worker needs.
type UploadRepositoryClient interface {
	CheckIfEnoughFundsForUpload(ctx context.Context, storagePeriods int) (bool, error)
	BundleItemsCountLimit(ctx context.Context) (int, error)
}

// UploadWorker implements the Upload worker's control loop (spec §4.3.1).
type UploadWorker struct {
	task *task.Task

	strategy   UploadStrategy
	repository UploadRepositoryClient
	engine     *engine.Engine
	logs       *LogRepository

	retryPeriod    int
	sequenceNumber int64
	sinceLastRetry int
}

// NewUploadWorker builds the worker task. Initial state matches spec
// §4.3.1: sequenceNumber = 0, sinceLastRetry = retryPeriod, so the first
// tick performs the retry sweep.
func NewUploadWorker(cfg *config.Config, strategy UploadStrategy, repository UploadRepositoryClient, eng *engine.Engine, logs *LogRepository) *UploadWorker {
	self := &UploadWorker{
		strategy:       strategy,
		repository:     repository,
		engine:         eng,
		logs:           logs,
		retryPeriod:    cfg.Upload.RetryPeriod,
		sequenceNumber: 0,
		sinceLastRetry: cfg.Upload.RetryPeriod,
	}

	self.task = task.NewTask(cfg, "upload-worker").
		WithPeriodicSubtaskFunc(strategy.WorkerInterval(), self.tick)

	return self
}

func (self *UploadWorker) Start() error { return self.task.Start() }
func (self *UploadWorker) Stop()        { self.task.Stop() }
func (self *UploadWorker) StopWait()    { self.task.Stop(); <-self.task.CtxRunning.Done() }

func (self *UploadWorker) tick() error {
	ctx := self.task.Ctx
	log := logger.NewSublogger("upload-worker")
	monitoring.UploadTicks.Inc()

	storagePeriods := self.strategy.StoragePeriods()

	enoughFunds, err := self.repository.CheckIfEnoughFundsForUpload(ctx, storagePeriods)
	if err != nil {
		log.WithError(err).Error("failed to check funds")
		return nil
	}
	if !enoughFunds {
		log.Warn("Insufficient funds for upload")
		self.logs.Append("upload-worker", "warn", "Insufficient funds for upload")
		return nil
	}

	self.retryUploadIfNecessary(ctx, storagePeriods, log)

	itemsCountLimit, err := self.repository.BundleItemsCountLimit(ctx)
	if err != nil {
		log.WithError(err).Error("failed to get bundle items count limit")
		return nil
	}

	bundle, err := self.engine.InitialiseBundling(ctx, self.sequenceNumber, itemsCountLimit)
	if err != nil {
		log.WithError(err).Error("failed to initialise bundling")
		return nil
	}

	if self.strategy.ShouldBundle(bundle) {
		result, err := self.engine.FinaliseBundling(ctx, bundle, self.sequenceNumber, storagePeriods)
		if err != nil {
			log.WithError(err).Error("failed to finalise bundling")
			return nil
		}
		if result != nil {
			log.WithField("bundleId", result.BundleId).Info("bundle uploaded")
			self.logs.Append("upload-worker", "info", "bundle uploaded: "+result.BundleId)
			monitoring.BundlesUploaded.Inc()
			self.strategy.BundlingSucceeded()
			self.sequenceNumber++
		} else {
			log.Warn("Bundle upload failed")
			self.logs.Append("upload-worker", "warn", "Bundle upload failed")
			// sequenceNumber is not incremented; the next tick retries.
		}
	} else {
		self.engine.CancelBundling(self.sequenceNumber)
		monitoring.BundlesCanceled.Inc()
		log.Debug("Bundling process canceled")
	}

	return nil
}

func (self *UploadWorker) retryUploadIfNecessary(ctx context.Context, storagePeriods int, log *logrus.Entry) {
	self.sinceLastRetry++
	if self.sinceLastRetry < self.retryPeriod {
		return
	}

	reuploaded, err := self.engine.UploadNotRegisteredBundles(ctx, storagePeriods)
	if err != nil {
		log.WithError(err).Error("failed to re-upload unregistered bundles")
		return
	}
	if len(reuploaded) > 0 {
		log.WithField("count", len(reuploaded)).Info("re-uploaded unregistered bundles")
		self.sinceLastRetry = 0
	}
}
