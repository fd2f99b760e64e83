// Package migrations embeds the SQL migration files into the binary so the
// bridge can create its schema without the files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
