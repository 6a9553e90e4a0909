// Package migrations embeds the per-driver schema migrations for sift's
// service tables, bundled at compile time for single-binary deployment.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
