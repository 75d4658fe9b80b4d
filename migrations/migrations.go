// Package migrations embeds the schema. Files are written for Postgres and
// translated by the SQLite store.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
