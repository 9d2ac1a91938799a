// Package db opens the relational database that backs the local warehouse
// driver. Postgres is selected by DATABASE_URL; sqlite is the fallback.
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arencloud/courtside/internal/config"
	"github.com/arencloud/courtside/internal/logging"
	"github.com/arencloud/courtside/internal/models"

	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects and migrates the load_history and stage tables. Target tables
// are created later by the warehouse session, one per TARGET_TABLE.
func Open(cfg *config.Config, logger logging.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg, logger)
	if err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(logger, levelFor(logger.Zap().Level())),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialector.Name(), err)
	}
	if err := gdb.AutoMigrate(&models.LoadRecord{}, &models.Stage{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return gdb, nil
}

func dialectorFor(cfg *config.Config, logger logging.Logger) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.WarehouseDriver)) {
	case "postgres", "postgresql":
		if cfg.DBDsn == "" {
			return nil, fmt.Errorf("postgres driver needs DATABASE_URL or DB_DSN")
		}
		logger.Info("db connect", "driver", "postgres")
		return postgres.Open(cfg.DBDsn), nil
	default:
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("sqlite driver needs DB_PATH")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, err
		}
		logger.Info("db connect", "driver", "sqlite", "path", cfg.DBPath)
		return sqlite.Open(cfg.DBPath), nil
	}
}

// levelFor maps the process log level to gorm's; SQL traces only at debug.
func levelFor(l zapcore.Level) gormlogger.LogLevel {
	switch {
	case l <= zapcore.DebugLevel:
		return gormlogger.Info
	case l >= zapcore.ErrorLevel:
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}
