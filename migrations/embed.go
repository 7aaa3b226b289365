// Package migrations embebe el esquema SQL del store de resultados.
// Formato de archivo: {version}_{name}.sql (ej: 0001_passages.sql).
package migrations

import "embed"

//go:embed postgres/*.sql
var PostgresFS embed.FS

//go:embed sqlite/*.sql
var SQLiteFS embed.FS

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
