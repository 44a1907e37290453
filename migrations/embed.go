// Package migrations embeds the SQL schema files so the service can migrate
// its database without the files being present on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
