// Package migrations embeds the facade SQL migrations into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

// All returns the embedded migrations, ready for database.DB.Migrate.
func All() database.Migrations {
	return database.Migrations{FS: files, Dir: "."}
}
