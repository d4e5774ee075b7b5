// Package migrations embeds the console's SQL schema migrations.
package migrations

import "embed"

// FS holds the NNN_name.sql files applied by db.Migrator.
//
//go:embed *.sql
var FS embed.FS
