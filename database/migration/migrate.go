// Package migration applies versioned SQL migrations with golang-migrate.
//
// Migration files live in one directory per driver and follow the
// VERSION_name.up.sql / VERSION_name.down.sql naming:
//
//	//go:embed migrations
//	var migrationsFS embed.FS
//
//	err := migration.Up(ctx, db, migrationsFS, "migrations/"+db.Config().Driver)
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/kbukum/speakerhub/database"
	"github.com/kbukum/speakerhub/logger"
)

// pgxDriverName is registered by the postgres dialector's pgx stdlib import.
const pgxDriverName = "pgx"

// Up applies every pending migration under dir. Canceling ctx stops after
// the migration in flight.
func Up(ctx context.Context, db *database.DB, fsys fs.FS, dir string) error {
	m, release, err := newMigrator(db, fsys, dir)
	if err != nil {
		return err
	}
	defer release()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migrate version: %w", err)
	}
	db.Logger().Info("schema migrated", map[string]interface{}{
		"version": version,
		"dirty":   dirty,
	})
	return ctx.Err()
}

// Version returns the applied version and whether the last migration failed
// half way. A database with no migrations reports version 0.
func Version(db *database.DB, fsys fs.FS, dir string) (uint, bool, error) {
	m, release, err := newMigrator(db, fsys, dir)
	if err != nil {
		return 0, false, err
	}
	defer release()

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// newMigrator builds a migrator for db's driver. SQLite reuses the pool so
// in-memory databases see the migrated schema; the release func must not
// close it. Postgres gets its own connection, closed on release.
func newMigrator(db *database.DB, fsys fs.FS, dir string) (*migrate.Migrate, func(), error) {
	cfg := db.Config()

	var (
		driver  migratedb.Driver
		release = func() {}
		err     error
	)
	switch cfg.Driver {
	case database.DriverSQLite, "":
		sqlDB, dbErr := db.GormDB.DB()
		if dbErr != nil {
			return nil, nil, fmt.Errorf("get sql.DB: %w", dbErr)
		}
		driver, err = migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	case database.DriverPostgres:
		sqlDB, openErr := sql.Open(pgxDriverName, cfg.DSN)
		if openErr != nil {
			return nil, nil, fmt.Errorf("open migration connection: %w", openErr)
		}
		driver, err = migratepg.WithInstance(sqlDB, &migratepg.Config{})
		if err != nil {
			_ = sqlDB.Close()
		}
	default:
		return nil, nil, fmt.Errorf("no migration driver for %q", cfg.Driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open migrations %s: %w", dir, err)
	}
	m, err := migrate.NewWithInstance("iofs", source, cfg.Driver, driver)
	if err != nil {
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}
	m.Log = &migrateLogger{log: db.Logger(), verbose: cfg.LogLevel == "info"}

	if cfg.Driver == database.DriverPostgres {
		release = func() {
			if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
				db.Logger().Warn("closing migrator failed", logger.ErrorFields("migrate", errors.Join(srcErr, dbErr)))
			}
		}
	}
	return m, release, nil
}

// migrateLogger routes golang-migrate output through the service logger.
type migrateLogger struct {
	log     *logger.Logger
	verbose bool
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), map[string]interface{}{"source": "migrate"})
}

func (l *migrateLogger) Verbose() bool { return l.verbose }
