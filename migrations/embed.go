// Package migrations embeds the button store schema into the binary and
// registers it with the database package on import.
package migrations

import (
	"embed"

	"github.com/nerrad567/streamdeck-api/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
