package store

import (
	"context"
	"embed"

	"github.com/kbukum/speakerhub/database"
	"github.com/kbukum/speakerhub/database/migration"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies the versioned schema for db's driver. It is the
// database.Migrator used when database.migrations is versioned.
func Migrate(ctx context.Context, db *database.DB) error {
	return migration.Up(ctx, db, migrationsFS, migrationsDir(db))
}

// SchemaVersion reports the applied schema version.
func SchemaVersion(db *database.DB) (uint, bool, error) {
	return migration.Version(db, migrationsFS, migrationsDir(db))
}

func migrationsDir(db *database.DB) string {
	driver := db.Config().Driver
	if driver == "" {
		driver = database.DriverSQLite
	}
	return "migrations/" + driver
}
