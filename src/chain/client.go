// Package chain adapts the blockchain registry external interface named
// in spec §6 (C5: Upload Repository / Challenges Repository) and the
// waitForChainSync helper of scenario 6.
package chain

import (
	"context"
	"time"

	"github.com/meshledger/ledger-node/src/entity"
)

// SyncStatus is the non-false branch of isSyncing()'s result.
type SyncStatus struct {
	CurrentBlock uint64
	HighestBlock uint64
}

// Client is the blockchain client contract consumed by C5 (spec §6).
type Client interface {
	// IsSyncing returns nil when the node is fully synced.
	IsSyncing(ctx context.Context) (*SyncStatus, error)

	CheckIfEnoughFundsForUpload(ctx context.Context, storagePeriods int) (bool, error)
	BundleItemsCountLimit(ctx context.Context) (int, error)
	UploadBundleProof(ctx context.Context, bundle *entity.Bundle, storagePeriods int) (proofBlock int64, txHash string, err error)

	OngoingChallenges(ctx context.Context) ([]Challenge, error)
	ResolveChallenge(ctx context.Context, challengeId string) error
}

// Challenge is one entry of the on-chain shelter-challenge feed (spec
// §4.3.2).
type Challenge struct {
	ChallengeId string
	SheltererId string
	BundleId    string
}

// WaitForChainSync polls client.IsSyncing every pollInterval. While the
// chain reports syncing, it invokes callback once per poll and keeps
// polling; it terminates as soon as IsSyncing reports fully synced. The
// callback is never invoked if the chain is already in sync on the first
// poll (spec §6, scenario 6).
func WaitForChainSync(ctx context.Context, client Client, pollInterval time.Duration, callback func(*SyncStatus)) error {
	for {
		status, err := client.IsSyncing(ctx)
		if err != nil {
			return err
		}
		if status == nil || status.CurrentBlock == status.HighestBlock {
			return nil
		}

		callback(status)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
