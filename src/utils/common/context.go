package common

import (
	"context"

	"github.com/meshledger/ledger-node/src/utils/config"
)

type contextKey int

const configKey contextKey = iota

// SetConfig attaches the configuration to the context so it can be
// retrieved deep inside a call chain without threading it through every
// function signature.
func SetConfig(ctx context.Context, config *config.Config) context.Context {
	return context.WithValue(ctx, configKey, config)
}

// GetConfig retrieves the configuration previously attached with SetConfig.
// Panics if none is present, mirroring the invariant that every Task
// context is created through NewTask, which always sets it.
func GetConfig(ctx context.Context) *config.Config {
	config, ok := ctx.Value(configKey).(*config.Config)
	if !ok {
		panic("context has no config")
	}
	return config
}
