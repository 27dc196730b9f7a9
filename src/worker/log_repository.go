package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/meshledger/ledger-node/src/utils/config"
	"github.com/meshledger/ledger-node/src/utils/logger"
)

// LogEntry is one append-only audit row a periodic worker writes for a
// notable tick outcome (insufficient funds, bundle uploaded, bundle upload
// failed, challenge failure); other outcomes write no row. Spec §9 open question (a) treats workerLogRepository entries
// as append-only with retention delegated outside the core.
type LogEntry struct {
	Id        int64 `gorm:"primaryKey"`
	Worker    string
	Level     string
	Message   string
	CreatedAt time.Time
}

// LogRepository persists LogEntry rows, grounded on the teacher's
// model.Connect/gorm+postgres pattern for durable state.
type LogRepository struct {
	db  *gorm.DB
	log *logrus.Entry
}

// Connect dials Postgres and ensures the log_entries table exists.
func Connect(ctx context.Context, cfg *config.Postgres) (*LogRepository, error) {
	log := logger.NewSublogger("worker-log-repository")

	gormLog := gormlogger.New(log, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                 gormlogger.Error,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=ledger-node",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SslMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := db.AutoMigrate(&LogEntry{}); err != nil {
		return nil, fmt.Errorf("migrate log_entries: %w", err)
	}

	return &LogRepository{db: db, log: log}, nil
}

// Append writes one audit row.
func (self *LogRepository) Append(worker string, level string, message string) {
	entry := &LogEntry{Worker: worker, Level: level, Message: message, CreatedAt: time.Now()}
	if err := self.db.Create(entry).Error; err != nil {
		self.log.WithError(err).Warn("failed to persist worker log entry")
	}
}
