package config

import (
	"time"

	"github.com/spf13/viper"
)

// Challenge holds configuration for the Challenge Worker (§4.3.2).
type Challenge struct {
	// Interval between ticks.
	WorkerInterval time.Duration

	// How long a failed challenge id is negatively cached before retrying.
	RetryTimeout time.Duration
}

func setChallengeDefaults() {
	viper.SetDefault("Challenge.WorkerInterval", "15s")
	viper.SetDefault("Challenge.RetryTimeout", "10m")
}
