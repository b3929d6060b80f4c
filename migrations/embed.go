// Package migrations embeds the SQL migrations applied by goose.
package migrations

import "embed"

// Postgres holds the remote document store schema.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds the device-local schema (pending queue, promotions, reminders).
//
//go:embed sqlite/*.sql
var SQLite embed.FS
