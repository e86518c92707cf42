// Package dbtest wires repository integration tests to a disposable Postgres
// described by DB_*_TEST variables. Tests skip when DB_HOST_TEST is unset.
package dbtest

import (
	"os"
	"time"

	"github.com/vasiliy-maslov/winex/internal/config"
	"github.com/vasiliy-maslov/winex/internal/db"
)

// TruncateAll empties every table; run it before and after each test.
const TruncateAll = `
	TRUNCATE order_status_log, payments, order_items, orders, cart_items, carts,
		offer_combos, offer_products, offers, combo_items, combo_offers, products CASCADE
`

// Config returns the test database settings, or false when DB_HOST_TEST is not set.
// migrationsPath is relative to the calling package.
func Config(migrationsPath string) (config.PostgresConfig, bool) {
	host := os.Getenv("DB_HOST_TEST")
	if host == "" {
		return config.PostgresConfig{}, false
	}
	return config.PostgresConfig{
		Host:            host,
		Port:            envOr("DB_PORT_TEST", "5432"),
		User:            envOr("DB_USER_TEST", "postgres"),
		Password:        envOr("DB_PASSWORD_TEST", "postgres"),
		DBName:          envOr("DB_NAME_TEST", "winex_test"),
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: 30 * time.Minute,
		MigrationsPath:  migrationsPath,
	}, true
}

// Migrate brings the test schema up to date through the reporting handle.
func Migrate(cfg config.PostgresConfig) error {
	reportDB, err := db.ConnectReporting(cfg)
	if err != nil {
		return err
	}
	defer reportDB.Close()
	return db.ApplyMigrations(reportDB, cfg)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
