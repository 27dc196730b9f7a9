package config

import (
	"time"

	"github.com/spf13/viper"
)

// Postgres holds connection settings for the durable workerLogRepository
// audit log (§4.3, open question (a)).
type Postgres struct {
	Port        uint16
	Host        string
	User        string
	Password    string
	Name        string
	SslMode     string
	PingTimeout time.Duration
}

func setPostgresDefaults() {
	viper.SetDefault("Postgres.Port", "5432")
	viper.SetDefault("Postgres.Host", "127.0.0.1")
	viper.SetDefault("Postgres.User", "postgres")
	viper.SetDefault("Postgres.Password", "postgres")
	viper.SetDefault("Postgres.Name", "ledger")
	viper.SetDefault("Postgres.SslMode", "disable")
	viper.SetDefault("Postgres.PingTimeout", "15s")
}
