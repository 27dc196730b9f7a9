package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/meshledger/ledger-node/src/entity"
	"github.com/meshledger/ledger-node/src/utils/config"
	"github.com/meshledger/ledger-node/src/utils/logger"
	"github.com/meshledger/ledger-node/src/utils/task"
)

// registryABI describes the subset of the on-chain registry's interface
// the node calls: sheltering funds/limits, bundle proof upload and the
// challenge feed. The contract itself is out of scope (spec §1's
// Non-goals: "smart-contract implementation"); this is the ABI the node
// binds against.
const registryABI = `[
	{"name":"checkIfEnoughFundsForUpload","type":"function","stateMutability":"view","inputs":[{"name":"storagePeriods","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"bundleItemsCountLimit","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"uploadBundleProof","type":"function","stateMutability":"nonpayable","inputs":[{"name":"bundleId","type":"bytes32"},{"name":"storagePeriods","type":"uint256"}],"outputs":[]},
	{"name":"ongoingChallenges","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32[]"},{"name":"","type":"address[]"},{"name":"","type":"bytes32[]"}]},
	{"name":"resolveChallenge","type":"function","stateMutability":"nonpayable","inputs":[{"name":"challengeId","type":"bytes32"}],"outputs":[]}
]`

// RegistryClient implements Client against a real go-ethereum JSON-RPC
// endpoint and the registry contract's ABI, grounded on the teacher's
// eth.GetEthClient/abi.JSON wiring.
type RegistryClient struct {
	rpc                 *ethclient.Client
	abi                 abi.ABI
	contract            common.Address
	secret              *ecdsa.PrivateKey
	chainId             *big.Int
	retryMaxElapsedTime time.Duration
	retryMaxInterval    time.Duration
	log                 *logrus.Entry
}

func NewRegistryClient(cfg *config.Chain, secret *ecdsa.PrivateKey) (self *RegistryClient, err error) {
	self = new(RegistryClient)
	self.log = logger.NewSublogger("registry-client")
	self.secret = secret
	self.retryMaxElapsedTime = cfg.RetryMaxElapsedTime
	self.retryMaxInterval = cfg.RetryMaxInterval

	self.rpc, err = ethclient.Dial(cfg.NodeUrl)
	if err != nil {
		return nil, fmt.Errorf("dial chain node: %w", err)
	}

	self.abi, err = abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}

	self.contract = common.HexToAddress(cfg.RegistryAddress)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	self.chainId, err = self.rpc.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	return self, nil
}

// IsSyncing implements Client.
func (self *RegistryClient) IsSyncing(ctx context.Context) (*SyncStatus, error) {
	progress, err := self.rpc.SyncProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync progress: %w", err)
	}
	if progress == nil {
		return nil, nil
	}
	return &SyncStatus{CurrentBlock: progress.CurrentBlock, HighestBlock: progress.HighestBlock}, nil
}

func (self *RegistryClient) call(ctx context.Context, method string, out any, args ...any) error {
	data, err := self.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}

	var result []byte
	retryErr := task.NewRetry().
		WithContext(ctx).
		WithMaxElapsedTime(self.retryMaxElapsedTime).
		WithMaxInterval(self.retryMaxInterval).
		WithOnError(func(err error) { self.log.WithError(err).WithField("method", method).Warn("retrying contract call") }).
		Run(func() error {
			var callErr error
			result, callErr = self.rpc.CallContract(ctx, ethereum.CallMsg{To: &self.contract, Data: data}, nil)
			return callErr
		})
	if retryErr != nil {
		return fmt.Errorf("call %s: %w", method, retryErr)
	}

	if out != nil {
		if err := self.abi.UnpackIntoInterface(out, method, result); err != nil {
			return fmt.Errorf("unpack %s: %w", method, err)
		}
	}
	return nil
}

func (self *RegistryClient) send(ctx context.Context, method string, args ...any) (*types.Receipt, error) {
	data, err := self.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(self.secret, self.chainId)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}

	nonce, err := self.rpc.PendingNonceAt(ctx, auth.From)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := self.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, self.contract, big.NewInt(0), 300_000, gasPrice, data)
	signedTx, err := auth.Signer(auth.From, tx)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}

	sendErr := task.NewRetry().
		WithContext(ctx).
		WithMaxElapsedTime(self.retryMaxElapsedTime).
		WithMaxInterval(self.retryMaxInterval).
		WithOnError(func(err error) { self.log.WithError(err).WithField("method", method).Warn("retrying transaction send") }).
		Run(func() error { return self.rpc.SendTransaction(ctx, signedTx) })
	if sendErr != nil {
		return nil, fmt.Errorf("send %s: %w", method, sendErr)
	}

	return bind.WaitMined(ctx, self.rpc, signedTx)
}

func (self *RegistryClient) CheckIfEnoughFundsForUpload(ctx context.Context, storagePeriods int) (bool, error) {
	var enough bool
	err := self.call(ctx, "checkIfEnoughFundsForUpload", &enough, big.NewInt(int64(storagePeriods)))
	return enough, err
}

func (self *RegistryClient) BundleItemsCountLimit(ctx context.Context) (int, error) {
	var limit *big.Int
	if err := self.call(ctx, "bundleItemsCountLimit", &limit); err != nil {
		return 0, err
	}
	return int(limit.Int64()), nil
}

func (self *RegistryClient) UploadBundleProof(ctx context.Context, bundle *entity.Bundle, storagePeriods int) (int64, string, error) {
	var bundleIdBytes [32]byte
	copy(bundleIdBytes[:], common.FromHex(bundle.BundleId))

	receipt, err := self.send(ctx, "uploadBundleProof", bundleIdBytes, big.NewInt(int64(storagePeriods)))
	if err != nil {
		return 0, "", err
	}
	return int64(receipt.BlockNumber.Uint64()), receipt.TxHash.Hex(), nil
}

func (self *RegistryClient) OngoingChallenges(ctx context.Context) ([]Challenge, error) {
	var out struct {
		ChallengeIds [][32]byte
		SheltererIds []common.Address
		BundleIds    [][32]byte
	}
	if err := self.call(ctx, "ongoingChallenges", &out); err != nil {
		return nil, err
	}

	challenges := make([]Challenge, len(out.ChallengeIds))
	for i := range out.ChallengeIds {
		challenges[i] = Challenge{
			ChallengeId: common.BytesToHash(out.ChallengeIds[i][:]).Hex(),
			SheltererId: out.SheltererIds[i].Hex(),
			BundleId:    common.BytesToHash(out.BundleIds[i][:]).Hex(),
		}
	}
	return challenges, nil
}

func (self *RegistryClient) ResolveChallenge(ctx context.Context, challengeId string) error {
	var idBytes [32]byte
	copy(idBytes[:], common.FromHex(challengeId))
	_, err := self.send(ctx, "resolveChallenge", idBytes)
	return err
}
