package config

import (
	"time"

	"github.com/spf13/viper"
)

// Mongo holds connection settings for the document store backing the
// entity repository (assets, events, bundles collections).
type Mongo struct {
	Uri            string
	Database       string
	ConnectTimeout time.Duration
}

func setMongoDefaults() {
	viper.SetDefault("Mongo.Uri", "mongodb://127.0.0.1:27017")
	viper.SetDefault("Mongo.Database", "ledger")
	viper.SetDefault("Mongo.ConnectTimeout", "10s")
}
