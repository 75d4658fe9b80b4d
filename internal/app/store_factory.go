package app

import (
	"fmt"

	"github.com/shrimpsizemoose/labsync/internal/store"
	"github.com/shrimpsizemoose/labsync/internal/store/postgres"
	"github.com/shrimpsizemoose/labsync/internal/store/sqlite"
)

func NewStore(dsn string) (store.LabStore, error) {
	dbType, conn := store.TypeFromDSN(dsn)

	switch dbType {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(conn)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(conn)
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", dsn)
	}
}
