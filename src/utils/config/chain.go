package config

import (
	"time"

	"github.com/spf13/viper"
)

// Chain holds configuration for reaching the blockchain registry (C5's
// external collaborator) used to fund/upload bundles and run challenges.
type Chain struct {
	NodeUrl             string
	RegistryAddress     string
	SyncPollInterval    time.Duration
	RequestTimeout      time.Duration
	RetryMaxElapsedTime time.Duration
	RetryMaxInterval    time.Duration
}

func setChainDefaults() {
	viper.SetDefault("Chain.NodeUrl", "http://127.0.0.1:8545")
	viper.SetDefault("Chain.RegistryAddress", "")
	viper.SetDefault("Chain.SyncPollInterval", "5s")
	viper.SetDefault("Chain.RequestTimeout", "30s")
	viper.SetDefault("Chain.RetryMaxElapsedTime", "1m")
	viper.SetDefault("Chain.RetryMaxInterval", "10s")
}
