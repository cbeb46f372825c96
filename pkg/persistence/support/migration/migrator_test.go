package migration_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/migration"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/test"
)

var ledgerMigrations = fstest.MapFS{
	"migrations/1_create_accounts.up.sql":   {Data: []byte(`CREATE TABLE accounts (id INTEGER PRIMARY KEY, owner TEXT NOT NULL);`)},
	"migrations/1_create_accounts.down.sql": {Data: []byte(`DROP TABLE accounts;`)},
	"migrations/2_add_balance.up.sql":       {Data: []byte(`ALTER TABLE accounts ADD COLUMN balance INTEGER NOT NULL DEFAULT 0;`)},
	"migrations/2_add_balance.down.sql":     {Data: []byte(`CREATE TABLE accounts_tmp (id INTEGER PRIMARY KEY, owner TEXT NOT NULL); INSERT INTO accounts_tmp SELECT id, owner FROM accounts; DROP TABLE accounts; ALTER TABLE accounts_tmp RENAME TO accounts;`)},
	"broken/1_typo.up.sql":                  {Data: []byte(`CREATE TABEL nothing (id INTEGER);`)},
	"broken/1_typo.down.sql":                {Data: []byte(`SELECT 1;`)},
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n))
	return n > 0
}

func TestMigrator_UpVersionDown(t *testing.T) {
	test.CaptureLogs(t)
	ctx := context.Background()
	db := openDB(t)
	m := migration.NewMigrator(db, "sqlite", "")

	_, _, ok, err := m.Version(ledgerMigrations, "migrations")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Up(ctx, ledgerMigrations, "migrations"))
	version, dirty, ok, err := m.Version(ledgerMigrations, "migrations")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
	assert.True(t, tableExists(t, db, "accounts"))
	assert.True(t, tableExists(t, db, migration.DefaultMigrationsTable))

	// running again is a no-op
	require.NoError(t, m.Up(ctx, ledgerMigrations, "migrations"))

	_, err = db.Exec(`INSERT INTO accounts (owner, balance) VALUES ('alice', 10)`)
	require.NoError(t, err)

	require.NoError(t, m.Down(ctx, ledgerMigrations, "migrations"))
	assert.False(t, tableExists(t, db, "accounts"))
	_, _, ok, err = m.Version(ledgerMigrations, "migrations")
	require.NoError(t, err)
	assert.False(t, ok)
	// the shared pool stays open
	assert.NoError(t, db.Ping())
}

func TestMigrator_CustomTable(t *testing.T) {
	test.CaptureLogs(t)
	db := openDB(t)
	m := migration.NewMigrator(db, "sqlite", "ledger_versions")

	require.NoError(t, m.Up(context.Background(), ledgerMigrations, "migrations"))
	assert.True(t, tableExists(t, db, "ledger_versions"))
	assert.False(t, tableExists(t, db, migration.DefaultMigrationsTable))
}

func TestMigrator_Failures(t *testing.T) {
	test.CaptureLogs(t)
	ctx := context.Background()
	db := openDB(t)

	err := migration.NewMigrator(db, "sqlite", "").Up(ctx, ledgerMigrations, "broken")
	require.Error(t, err)
	assert.True(t, exception.IsPersistenceError(err))
	assert.Contains(t, err.Error(), "migration failed for command 'up'")

	err = migration.NewMigrator(db, "oracle", "").Up(ctx, ledgerMigrations, "migrations")
	assert.ErrorIs(t, err, exception.ErrIllegalArgument)

	err = migration.NewMigrator(db, "sqlite", "").Up(ctx, ledgerMigrations, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create iofs source driver")
}
