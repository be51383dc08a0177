package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationFiles holds one migration directory per dialect. Both directories
// must define the same versions.
//
//go:embed migrations/mysql/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// RunMigrations applies all pending migrations for the DB's dialect.
// golang-migrate tracks applied versions, so this is safe to call on every
// startup.
func RunMigrations(db *DB) error {
	var (
		driver migratedb.Driver
		name   string
		err    error
	)
	switch db.Dialect {
	case Postgres:
		name = "pgx5"
		driver, err = migratepgx.WithInstance(db.DB, &migratepgx.Config{})
	default:
		name = "mysql"
		driver, err = migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	}
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	src, err := iofs.New(migrationFiles, "migrations/"+string(db.Dialect))
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Info("migrations applied",
		slog.String("dialect", string(db.Dialect)),
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)

	return nil
}
