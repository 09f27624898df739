// Package migrations embebe los archivos SQL de migración.
package migrations

import "embed"

// PostgresFS contiene las migraciones *_up.sql / *_down.sql.
//
//go:embed *.sql
var PostgresFS embed.FS
