package config

import (
	"time"

	"github.com/spf13/viper"
)

// Validator holds configuration for the Entity Builder/Validator (C2).
type Validator struct {
	// Ingress timestamps must be within +/- this duration of now.
	TimestampLimit time.Duration
}

func setValidatorDefaults() {
	viper.SetDefault("Validator.TimestampLimit", "24h")
}
