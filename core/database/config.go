package database

import (
	"fmt"

	coreconfig "github.com/m3rciful/shopbot/core/config"
)

// Config holds database connection settings for the postgres catalog backend.
type Config = coreconfig.DatabaseConfig

// DSN renders the lib/pq keyword form used by Connect.
func DSN(cfg Config) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}

// URL renders the postgres:// form expected by golang-migrate.
func URL(cfg Config) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}
