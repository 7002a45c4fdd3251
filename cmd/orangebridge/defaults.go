package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Logging
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)

	// Telegram
	viper.SetDefault("telegram.base_url", "https://api.telegram.org")

	// Upstream
	viper.SetDefault("orange.base_url", "https://hub.orangecarrier.com")
	viper.SetDefault("orange.transport", "socketio")
	viper.SetDefault("orange.poll_interval", 15*time.Second)
	viper.SetDefault("orange.backoff", 5*time.Second)

	// DB (sqlite only)
	viper.SetDefault("db.dsn", "")
	viper.SetDefault("db.sqlite.busy_timeout_ms", 5000)
	viper.SetDefault("db.sqlite.wal", true)
	viper.SetDefault("db.sqlite.foreign_keys", true)

	// Keep-alive HTTP
	viper.SetDefault("health.listen", "8080")
}
