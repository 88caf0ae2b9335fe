// Package migrations embeds the Postgres schema for the document store.
package migrations

import "embed"

// FS holds the NNN_description.sql files in version order.
//
//go:embed *.sql
var FS embed.FS
