// Package migrations embeds the Postgres directory schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
