package store

import "strings"

type DatabaseType string

const (
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
)

// TypeFromDSN picks the driver for a dsn. Anything that is not a postgres
// URL is treated as a sqlite path, with an optional sqlite:// prefix.
func TypeFromDSN(dsn string) (DatabaseType, string) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DBTypePostgres, dsn
	}
	return DBTypeSQLite, strings.TrimPrefix(dsn, "sqlite://")
}
