// Package migrations applies the embedded schema files at startup so
// the binaries can run against an empty database.
package migrations

import "embed"

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS
