package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/meshledger/ledger-node/src/chain"
	"github.com/meshledger/ledger-node/src/entity"
	"github.com/meshledger/ledger-node/src/identity"
	"github.com/meshledger/ledger-node/src/peer"
	"github.com/meshledger/ledger-node/src/repository"
	"github.com/meshledger/ledger-node/src/utils/config"
)

// fakeChainClient scripts chain.Client for the engine's own tests; the
// chain package's own tests cover WaitForChainSync in isolation.
type fakeChainClient struct {
	uploadErr  error
	proofBlock int64
	txHash     string
}

func (f *fakeChainClient) IsSyncing(ctx context.Context) (*chain.SyncStatus, error) { return nil, nil }
func (f *fakeChainClient) CheckIfEnoughFundsForUpload(ctx context.Context, storagePeriods int) (bool, error) {
	return true, nil
}
func (f *fakeChainClient) BundleItemsCountLimit(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeChainClient) UploadBundleProof(ctx context.Context, bundle *entity.Bundle, storagePeriods int) (int64, string, error) {
	if f.uploadErr != nil {
		return 0, "", f.uploadErr
	}
	return f.proofBlock, f.txHash, nil
}
func (f *fakeChainClient) OngoingChallenges(ctx context.Context) ([]chain.Challenge, error) {
	return nil, nil
}
func (f *fakeChainClient) ResolveChallenge(ctx context.Context, challengeId string) error { return nil }

func assetDoc(id string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "content", Value: bson.D{
			{Key: "idData", Value: bson.D{{Key: "createdBy", Value: "0xcreator"}, {Key: "timestamp", Value: int64(1)}, {Key: "sequenceNumber", Value: int64(0)}}},
			{Key: "signature", Value: "0xsig"},
		}},
	}
}

func TestInitialiseBundling_TruncatesToItemsCountLimit(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("initialise", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}), // BeginBundle: claim assets
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}), // BeginBundle: claim events
			mtest.CreateCursorResponse(0, "test.assets", mtest.FirstBatch, assetDoc("0xa1"), assetDoc("0xa2")),
			mtest.CreateCursorResponse(0, "test.events", mtest.FirstBatch),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}), // ReleaseExcessClaim: release excess assets
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}), // ReleaseExcessClaim: release excess events
		)

		repo := repository.New(mt.DB)
		upload := chain.NewUploadRepository(&fakeChainClient{})
		eng := New(entity.NewBuilder(identity.New()), repo, upload, nil, nil)

		result, err := eng.InitialiseBundling(context.Background(), 0, 1)
		require.NoError(t, err)
		assert.Len(t, result.Assets, 1, "itemsCountLimit=1 must cap the combined 2+0 claimed set")
		assert.Empty(t, result.Events)
		assert.Equal(t, "stub-0", result.StubId)

		events := mt.GetAllStartedEvents()
		require.Len(t, events, 6, "beginBundle's 4 commands plus releaseExcessClaim's 2 updateMany calls")

		updates, err := events[4].Command.Lookup("updates").Array().Values()
		require.NoError(t, err)
		require.Len(t, updates, 1)

		nin := updates[0].Document().Lookup("q").Document().Lookup("_id").Document().Lookup("$nin").Array()
		keptIds, err := nin.Values()
		require.NoError(t, err)
		require.Len(t, keptIds, 1)
		assert.Equal(t, "0xa1", keptIds[0].StringValue(), "the kept asset must stay excluded from the release filter")
	})
}

func TestFinaliseBundling_RecoverableUploadFailureReturnsNilNil(t *testing.T) {
	secret, err := crypto.GenerateKey()
	require.NoError(t, err)

	upload := chain.NewUploadRepository(&fakeChainClient{uploadErr: errors.New("insufficient funds")})
	eng := New(entity.NewBuilder(identity.New()), nil, upload, nil, secret)

	bundleInProgress := &BundleInProgress{StubId: "stub-0"}
	bundle, err := eng.FinaliseBundling(context.Background(), bundleInProgress, 0, 3)
	require.NoError(t, err, "a recoverable upload failure must not surface as an error")
	assert.Nil(t, bundle)
}

func TestFinaliseBundling_CommitsOnSuccessfulUpload(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("finalise", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(), // StoreBundle insert
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}), // EndBundle assets
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}), // EndBundle events
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}), // proof metadata on bundle
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}), // propagate to assets
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}), // propagate to events
		)

		secret, err := crypto.GenerateKey()
		require.NoError(t, err)

		repo := repository.New(mt.DB)
		upload := chain.NewUploadRepository(&fakeChainClient{proofBlock: 7, txHash: "0xtx"})
		eng := New(entity.NewBuilder(identity.New()), repo, upload, nil, secret)

		bundleInProgress := &BundleInProgress{StubId: "stub-0"}
		bundle, err := eng.FinaliseBundling(context.Background(), bundleInProgress, 0, 3)
		require.NoError(t, err)
		require.NotNil(t, bundle)
		assert.NotEmpty(t, bundle.BundleId)
	})
}

func TestUploadNotRegisteredBundles_ReuploadsAndStoresProof(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("reupload", func(mt *mtest.T) {
		unprovenDoc := bson.D{
			{Key: "_id", Value: "0xbundle"},
			{Key: "content", Value: bson.D{
				{Key: "idData", Value: bson.D{{Key: "createdBy", Value: "0xcreator"}, {Key: "timestamp", Value: int64(1)}, {Key: "entriesHash", Value: "0xhash"}}},
				{Key: "signature", Value: "0xsig"},
				{Key: "entries", Value: bson.A{}},
			}},
		}

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.bundles", mtest.FirstBatch, unprovenDoc),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}), // store proof on bundle
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}), // propagate to assets
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}), // propagate to events
		)

		repo := repository.New(mt.DB)
		upload := chain.NewUploadRepository(&fakeChainClient{proofBlock: 9, txHash: "0xretxhash"})
		eng := New(entity.NewBuilder(identity.New()), repo, upload, nil, nil)

		reuploaded, err := eng.UploadNotRegisteredBundles(context.Background(), 3)
		require.NoError(t, err)
		require.Len(t, reuploaded, 1)
		assert.Equal(t, "0xbundle", reuploaded[0].BundleId)
	})
}

func TestUploadNotRegisteredBundles_SkipsBundleOnUploadFailureButContinues(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("reupload-skip", func(mt *mtest.T) {
		unprovenDoc := bson.D{
			{Key: "_id", Value: "0xbundle"},
			{Key: "content", Value: bson.D{
				{Key: "idData", Value: bson.D{{Key: "createdBy", Value: "0xcreator"}, {Key: "timestamp", Value: int64(1)}, {Key: "entriesHash", Value: "0xhash"}}},
				{Key: "signature", Value: "0xsig"},
				{Key: "entries", Value: bson.A{}},
			}},
		}

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.bundles", mtest.FirstBatch, unprovenDoc))

		repo := repository.New(mt.DB)
		upload := chain.NewUploadRepository(&fakeChainClient{uploadErr: errors.New("rpc unavailable")})
		eng := New(entity.NewBuilder(identity.New()), repo, upload, nil, nil)

		reuploaded, err := eng.UploadNotRegisteredBundles(context.Background(), 3)
		require.NoError(t, err, "a single bundle's upload failure must not abort the sweep")
		assert.Empty(t, reuploaded)
	})
}

func TestDownloadBundle_FetchesFromShelterer(t *testing.T) {
	sentBundle := &entity.Bundle{BundleId: "0xbundle"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sentBundle)
	}))
	defer server.Close()

	peerClient := peer.NewClient(&config.Peer{RequestTimeout: 2 * time.Second, RetryCount: 0})
	eng := New(nil, nil, nil, peerClient, nil)

	bundle, err := eng.DownloadBundle(context.Background(), "0xbundle", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "0xbundle", bundle.BundleId)
}
