package config

import (
	"time"

	"github.com/spf13/viper"
)

// Peer holds configuration for downloading a bundle from a peer shelterer
// during challenge resolution.
type Peer struct {
	RequestTimeout time.Duration
	RetryCount     int
}

func setPeerDefaults() {
	viper.SetDefault("Peer.RequestTimeout", "30s")
	viper.SetDefault("Peer.RetryCount", "3")
}
