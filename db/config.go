package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type SQLiteConfig struct {
	BusyTimeoutMs int
	WAL           bool
	ForeignKeys   bool
}

type Config struct {
	DSN         string
	SQLite      SQLiteConfig
	AutoMigrate bool
}

func DefaultConfig() Config {
	return Config{
		DSN: "",
		SQLite: SQLiteConfig{
			BusyTimeoutMs: 5000,
			WAL:           true,
			ForeignKeys:   true,
		},
		AutoMigrate: true,
	}
}

// ResolveSQLiteDSN picks the seen-event database path. An explicit DSN wins;
// otherwise an existing database is reused before a new one is created under
// the process-private data dir.
func ResolveSQLiteDSN(dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn != "" {
		return dsn, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	homeDir := filepath.Join(home, ".orangebridge")
	homeDB := filepath.Join(homeDir, "seen.sqlite")
	localDB := filepath.Clean("./seen.sqlite")

	// Precedence:
	// 1) existing $HOME/.orangebridge/seen.sqlite
	if _, err := os.Stat(homeDB); err == nil {
		return homeDB, nil
	}
	// 2) existing ./seen.sqlite
	if _, err := os.Stat(localDB); err == nil {
		return localDB, nil
	}
	// 3) create + use $HOME/.orangebridge/seen.sqlite (ensure dir exists)
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return "", err
	}
	return homeDB, nil
}

func buildSQLiteDSN(path string, cfg SQLiteConfig) string {
	params := make([]string, 0, 3)
	if cfg.BusyTimeoutMs > 0 {
		params = append(params, fmt.Sprintf("_busy_timeout=%d", cfg.BusyTimeoutMs))
	}
	if cfg.WAL {
		params = append(params, "_journal_mode=WAL")
	}
	if cfg.ForeignKeys {
		params = append(params, "_foreign_keys=on")
	}
	if len(params) == 0 {
		return path
	}
	return path + "?" + strings.Join(params, "&")
}
