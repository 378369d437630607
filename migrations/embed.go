// Package migrations embeds the SQL migrations for the send-history schema.
package migrations

import "embed"

// FS holds the embedded SQL migration files, applied at startup.
//
//go:embed *.sql
var FS embed.FS
