package config

import (
	"time"

	"github.com/spf13/viper"
)

// Upload holds configuration for the Upload Worker (§4.3.1).
type Upload struct {
	// Interval between ticks.
	WorkerInterval time.Duration

	// Number of ticks that must pass before a retry sweep of
	// not-yet-registered bundles. The count restarts only after a sweep
	// that re-uploaded something; a sweep that finds nothing is repeated
	// on the next tick.
	RetryPeriod int

	// Default number of storage periods requested for a new bundle, used
	// by the bundled-in default UploadStrategy.
	DefaultStoragePeriods int

	// Minimum number of entities a bundle-in-progress must hold before the
	// default strategy decides to bundle. MaxBundleItems is not read by the
	// default strategy.
	MinBundleItems int
	MaxBundleItems int
}

func setUploadDefaults() {
	viper.SetDefault("Upload.WorkerInterval", "10s")
	viper.SetDefault("Upload.RetryPeriod", "30")
	viper.SetDefault("Upload.DefaultStoragePeriods", "1")
	viper.SetDefault("Upload.MinBundleItems", "1")
	viper.SetDefault("Upload.MaxBundleItems", "100")
}
