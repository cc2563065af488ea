package config

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"guildstats/pkg/logger"
)

const connectRetries = 5

// NewDB opens the postgres connection described by the Database section and
// tunes the pool for a long-running sync process. Connection attempts are
// retried with the configured timeout between them, so the process survives a
// database that comes up slightly after it does.
func NewDB() (*gorm.DB, error) {
	cfg := Get()

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(cfg)),
	}

	var db *gorm.DB
	var err error
	for attempt := 1; attempt <= connectRetries; attempt++ {
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
		if err == nil {
			break
		}
		logger.GetGlobal().Warn("database not reachable, retrying",
			"attempt", attempt,
			"retries", connectRetries,
			"delay", cfg.Database.Timeout,
			"error", err)
		time.Sleep(cfg.Database.Timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d retries: %w", connectRetries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	// Sync passes hold few connections for a long time; the read API holds
	// many for a short time. MaxConns bounds both.
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return db, nil
}

// gormLogLevel maps the application log level onto gorm's query logging. SQL
// statements are only echoed when the application itself runs at debug.
func gormLogLevel(cfg *Config) gormlogger.LogLevel {
	if cfg.Logging.Level == "debug" {
		return gormlogger.Info
	}
	return gormlogger.Error
}
