package db

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/winex/internal/config"
)

// ConnectReporting opens the database/sql handle used by read-side reports and migrations.
func ConnectReporting(cfg config.PostgresConfig) (*sqlx.DB, error) {
	reportDB, err := sqlx.Connect("postgres", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect reporting database: %w", err)
	}

	reportDB.SetMaxOpenConns(int(cfg.MaxConns))
	reportDB.SetConnMaxLifetime(cfg.MaxConnLifetime)

	log.Info().Msg("Reporting connection established")
	return reportDB, nil
}

func ApplyMigrations(reportDB *sqlx.DB, cfg config.PostgresConfig) error {
	driver, err := postgres.WithInstance(reportDB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.MigrationsPath, cfg.DBName, driver)
	if err != nil {
		return fmt.Errorf("failed to initialize migration instance: %w", err)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Msg("No new migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	log.Info().Msg("New migrations applied successfully")

	return nil
}
