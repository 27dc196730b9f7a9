package config

import "github.com/spf13/viper"

// Identity holds the node's signing key (spec §6's identity primitives,
// addressFromSecret/sign).
type Identity struct {
	// SecretKey is the hex-encoded ECDSA private key (no 0x prefix)
	// identifying this node when signing bundles.
	SecretKey string
}

func setIdentityDefaults() {
	viper.SetDefault("Identity.SecretKey", "")
}
