package chain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshledger/ledger-node/src/entity"
)

// fakeClient implements Client with a scripted sequence of IsSyncing
// results; the other methods are untouched by WaitForChainSync.
type fakeClient struct {
	statuses   []*SyncStatus
	calls      int
	repeatLast bool
}

func (f *fakeClient) IsSyncing(ctx context.Context) (*SyncStatus, error) {
	idx := f.calls
	if f.repeatLast && idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	s := f.statuses[idx]
	f.calls++
	return s, nil
}

func (f *fakeClient) CheckIfEnoughFundsForUpload(ctx context.Context, storagePeriods int) (bool, error) {
	return true, nil
}
func (f *fakeClient) BundleItemsCountLimit(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeClient) UploadBundleProof(ctx context.Context, bundle *entity.Bundle, storagePeriods int) (int64, string, error) {
	return 0, "", nil
}
func (f *fakeClient) OngoingChallenges(ctx context.Context) ([]Challenge, error) { return nil, nil }
func (f *fakeClient) ResolveChallenge(ctx context.Context, challengeId string) error {
	return nil
}

// TestWaitForChainSync_NeverCallsBackWhenAlreadySynced covers the first
// half of scenario 6: a chain already in sync on the first poll never
// invokes the callback.
func TestWaitForChainSync_NeverCallsBackWhenAlreadySynced(t *testing.T) {
	client := &fakeClient{statuses: []*SyncStatus{nil}}

	callbackCalls := 0
	err := WaitForChainSync(context.Background(), client, time.Millisecond, func(*SyncStatus) { callbackCalls++ })
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 0, callbackCalls)
}

// TestWaitForChainSync_CallsBackOncePerSyncingPoll covers the second half
// of scenario 6: 10 syncing polls each invoke the callback once, the 11th
// poll reports fully synced and ends the loop without another callback.
func TestWaitForChainSync_CallsBackOncePerSyncingPoll(t *testing.T) {
	statuses := make([]*SyncStatus, 0, 11)
	for i := 0; i < 10; i++ {
		statuses = append(statuses, &SyncStatus{CurrentBlock: uint64(i), HighestBlock: 10})
	}
	statuses = append(statuses, &SyncStatus{CurrentBlock: 10, HighestBlock: 10})

	client := &fakeClient{statuses: statuses}

	callbackCalls := 0
	err := WaitForChainSync(context.Background(), client, time.Millisecond, func(*SyncStatus) { callbackCalls++ })
	require.NoError(t, err)
	assert.Equal(t, 11, client.calls)
	assert.Equal(t, 10, callbackCalls)
}

func TestWaitForChainSync_StopsOnContextCancellation(t *testing.T) {
	client := &fakeClient{statuses: []*SyncStatus{{CurrentBlock: 0, HighestBlock: 10}}, repeatLast: true}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitForChainSync(ctx, client, time.Millisecond, func(*SyncStatus) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
