package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open opens (and optionally migrates) the sqlite database behind the
// seen-event store. The pool is pinned to a single connection: sqlite
// serializes writes anyway and a single conn avoids SQLITE_BUSY churn
// between the pipeline and the command loop.
func Open(cfg Config) (*gorm.DB, error) {
	path, err := ResolveSQLiteDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite dsn: %w", err)
	}

	gdb, err := gorm.Open(sqlite.Open(buildSQLiteDSN(path, cfg.SQLite)), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if cfg.AutoMigrate {
		if err := AutoMigrate(gdb); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return gdb, nil
}
