// Package migration applies schema migrations with golang-migrate over the *sql.DB of a
// connection source.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

const moduleName = "migration"

// DefaultMigrationsTable tracks applied versions when no table name is given.
const DefaultMigrationsTable = "persistence_schema_migrations"

// Migrator runs migrations from an fs.FS against one database.
type Migrator struct {
	db        *sql.DB
	dbType    string
	tableName string
}

// NewMigrator creates a Migrator. An empty tableName selects DefaultMigrationsTable.
func NewMigrator(db *sql.DB, dbType string, tableName string) *Migrator {
	if tableName == "" {
		tableName = DefaultMigrationsTable
	}
	return &Migrator{db: db, dbType: dbType, tableName: tableName}
}

// getDatabaseDriver retrieves a migrate/v4 Driver based on the database type.
func (m *Migrator) getDatabaseDriver() (migratedb.Driver, error) {
	switch m.dbType {
	case "postgres", "redshift":
		return postgres.WithInstance(m.db, &postgres.Config{MigrationsTable: m.tableName})
	case "mysql":
		return mysql.WithInstance(m.db, &mysql.Config{MigrationsTable: m.tableName})
	case "sqlite":
		return sqlite.WithInstance(m.db, &sqlite.Config{MigrationsTable: m.tableName})
	default:
		return nil, exception.NewIllegalArgumentError(moduleName, fmt.Sprintf("unsupported database type for migration: %s", m.dbType))
	}
}

func (m *Migrator) getMigrateInstance(migrationFS fs.FS, path string) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return nil, exception.NewPersistenceError(moduleName, fmt.Sprintf("failed to create iofs source driver for path %s", path), err)
	}
	dbDriver, err := m.getDatabaseDriver()
	if err != nil {
		return nil, err
	}
	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbType, dbDriver)
	if err != nil {
		return nil, exception.NewPersistenceError(moduleName, "failed to create migrate instance", err)
	}
	return mInstance, nil
}

// Up applies all pending migrations found under path.
func (m *Migrator) Up(ctx context.Context, migrationFS fs.FS, path string) error {
	return m.run(migrationFS, path, "up", func(mi *migrate.Migrate) error { return mi.Up() })
}

// Down rolls back every applied migration found under path.
func (m *Migrator) Down(ctx context.Context, migrationFS fs.FS, path string) error {
	return m.run(migrationFS, path, "down", func(mi *migrate.Migrate) error { return mi.Down() })
}

// Version returns the current schema version. ok is false when nothing was applied yet.
func (m *Migrator) Version(migrationFS fs.FS, path string) (version uint, dirty bool, ok bool, err error) {
	mInstance, err := m.getMigrateInstance(migrationFS, path)
	if err != nil {
		return 0, false, false, err
	}
	// closing the instance would close the shared *sql.DB
	version, dirty, err = mInstance.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, exception.NewPersistenceError(moduleName, "failed to read schema version", err)
	}
	return version, dirty, true, nil
}

func (m *Migrator) run(migrationFS fs.FS, path string, command string, step func(*migrate.Migrate) error) error {
	logger.Infof("Executing migration '%s' (Path: %s, Table: %s)", command, path, m.tableName)

	mInstance, err := m.getMigrateInstance(migrationFS, path)
	if err != nil {
		return err
	}

	if migrateErr := step(mInstance); migrateErr != nil && !errors.Is(migrateErr, migrate.ErrNoChange) {
		if _, _, versionErr := mInstance.Version(); versionErr != nil && !errors.Is(versionErr, migrate.ErrNilVersion) {
			logger.Errorf("Migration failed and failed to retrieve version: %v", versionErr)
		}
		return exception.NewPersistenceError(moduleName,
			fmt.Sprintf("migration failed for command '%s' (DB: %s, Path: %s)", command, m.dbType, path), migrateErr)
	}

	logger.Infof("Migration '%s' completed successfully.", command)
	return nil
}
