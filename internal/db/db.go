// Package db opens and migrates the Postgres connection backing the store.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/registryx/registryx/internal/config"
)

func Connect(cfg *config.Config) (*sql.DB, error) {
	conn, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return conn, nil
}

// Migrate applies the registry's schema. It is idempotent: every statement
// is an IF NOT EXISTS / OR REPLACE creation, so it is safe to run on every
// startup.
func Migrate(conn *sql.DB) error {
	_, err := conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
