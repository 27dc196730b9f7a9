package cmd

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/meshledger/ledger-node/src/cache"
	"github.com/meshledger/ledger-node/src/chain"
	"github.com/meshledger/ledger-node/src/engine"
	"github.com/meshledger/ledger-node/src/entity"
	"github.com/meshledger/ledger-node/src/identity"
	"github.com/meshledger/ledger-node/src/monitoring"
	"github.com/meshledger/ledger-node/src/peer"
	"github.com/meshledger/ledger-node/src/repository"
	"github.com/meshledger/ledger-node/src/utils/logger"
	"github.com/meshledger/ledger-node/src/worker"
)

func init() {
	RootCmd.AddCommand(nodeCmd)
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run the ledger node: entity repository plus the Upload and Challenge workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewSublogger("node-cmd")

		secret, err := ethcrypto.HexToECDSA(conf.Identity.SecretKey)
		if err != nil {
			return fmt.Errorf("parse identity secret key: %w", err)
		}

		repo, err := repository.Connect(ctx, &conf.Mongo)
		if err != nil {
			return fmt.Errorf("connect to document store: %w", err)
		}

		registryClient, err := chain.NewRegistryClient(&conf.Chain, secret)
		if err != nil {
			return fmt.Errorf("connect to blockchain registry: %w", err)
		}
		uploadRepo := chain.NewUploadRepository(registryClient)
		challengesRepo := chain.NewChallengesRepository(registryClient)

		peerClient := peer.NewClient(&conf.Peer)

		builder := entity.NewBuilder(identity.New())
		eng := engine.New(builder, repo, uploadRepo, peerClient, secret)

		logs, err := worker.Connect(ctx, &conf.Postgres)
		if err != nil {
			return fmt.Errorf("connect to worker log store: %w", err)
		}

		failedCache := cache.New()
		uploadStrategy := worker.NewDefaultUploadStrategy(&conf.Upload)
		challengeStrategy := worker.NewDefaultChallengeParticipationStrategy(&conf.Challenge)

		uploadWorker := worker.NewUploadWorker(conf, uploadStrategy, uploadRepo, eng, logs)
		challengeWorker := worker.NewChallengeWorker(conf, challengeStrategy, challengesRepo, eng, failedCache, logs)

		monitoring.Register(prometheus.DefaultRegisterer)

		if err := uploadWorker.Start(); err != nil {
			return fmt.Errorf("start upload worker: %w", err)
		}
		if err := challengeWorker.Start(); err != nil {
			return fmt.Errorf("start challenge worker: %w", err)
		}

		log.Info("Node started")
		<-ctx.Done()

		uploadWorker.Stop()
		challengeWorker.Stop()

		return nil
	},
}
