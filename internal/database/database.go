package database

import (
	"fmt"

	"github.com/ashenforge/buildshare/backend/internal/analytics"
	"github.com/ashenforge/buildshare/backend/internal/builds"
	"github.com/ashenforge/buildshare/backend/internal/feedback"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	postgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open establishes the database connection for the configured driver and
// performs schema migrations. TranslateError is enabled so unique constraint
// violations surface as gorm.ErrDuplicatedKey on both drivers; the vote
// ledger depends on that signal.
func Open(driver, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(
		&builds.Build{},
		&builds.Vote{},
		&feedback.Feedback{},
		&analytics.SearchEvent{},
	); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&migrationRecord{}); err != nil {
		return nil, err
	}
	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", driver))
	}

	return db, nil
}
