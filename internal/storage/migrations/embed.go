// Package migrations embeds the schema migration SQL and applies it
// in lexical order at startup.
package migrations

import "embed"

// PostgresFS holds the PostgreSQL schema migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the ClickHouse schema migrations.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
