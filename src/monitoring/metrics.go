// Package monitoring exposes Prometheus counters for worker tick
// outcomes, mirroring the shape of the teacher's report package without
// its Arweave-specific fields.
package monitoring

import "github.com/prometheus/client_golang/prometheus"

var (
	UploadTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_upload_worker_ticks_total",
		Help: "Number of Upload worker ticks executed.",
	})

	BundlesUploaded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_bundles_uploaded_total",
		Help: "Number of bundles successfully uploaded on-chain.",
	})

	BundlesCanceled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_bundles_canceled_total",
		Help: "Number of bundling attempts canceled by strategy.",
	})

	ChallengeTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_challenge_worker_ticks_total",
		Help: "Number of Challenge worker ticks executed.",
	})

	ChallengesResolved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_challenges_resolved_total",
		Help: "Number of on-chain challenges successfully resolved.",
	})

	ChallengesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_challenges_failed_total",
		Help: "Number of challenge attempts that failed and were negatively cached.",
	})

	FailedChallengeCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_failed_challenge_cache_hits_total",
		Help: "Number of challenges skipped due to a recent cached failure.",
	})
)

// Register adds every collector to reg (typically prometheus.DefaultRegisterer).
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		UploadTicks,
		BundlesUploaded,
		BundlesCanceled,
		ChallengeTicks,
		ChallengesResolved,
		ChallengesFailed,
		FailedChallengeCacheHits,
	)
}
