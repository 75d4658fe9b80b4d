package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/shrimpsizemoose/labsync/internal/store"
	"github.com/shrimpsizemoose/labsync/migrations"
)

type PostgresStore struct {
	store.BaseStore
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &PostgresStore{BaseStore: store.BaseStore{
		DB:      db,
		LockDay: lockDay,
	}}

	if err := s.ApplyMigrations(migrations.Files); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return s, nil
}

// lockDay takes a transaction-scoped advisory lock so concurrent bookings
// for the same lab and day are checked one after another.
func lockDay(tx *sqlx.Tx, day, lab string) error {
	if _, err := tx.Exec(`SELECT pg_advisory_xact_lock(hashtext($1))`, day+"/"+lab); err != nil {
		return fmt.Errorf("failed to lock %s/%s: %w", lab, day, err)
	}
	return nil
}
