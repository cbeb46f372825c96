package tx_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/sqldb"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/tx"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/test"
)

func openSQLiteSource(t *testing.T) *sqldb.Source {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE accounts (id INTEGER PRIMARY KEY, owner TEXT NOT NULL)`)
	require.NoError(t, err)

	src := sqldb.NewSource(db, sqldb.WithName("test"))
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func insertOwner(ctx context.Context, t *testing.T, conn database.Connection, owner string) {
	t.Helper()
	sqlConn, ok := conn.(*sqldb.Conn)
	require.True(t, ok)
	_, err := sqlConn.ExecContext(ctx, `INSERT INTO accounts (owner) VALUES (?)`, owner)
	require.NoError(t, err)
}

func owners(t *testing.T, src *sqldb.Source) []string {
	t.Helper()
	rows, err := src.DB().Query(`SELECT owner FROM accounts ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()
	var result []string
	for rows.Next() {
		var owner string
		require.NoError(t, rows.Scan(&owner))
		result = append(result, owner)
	}
	require.NoError(t, rows.Err())
	return result
}

func TestSQLite_CommitIsVisibleAfterRelease(t *testing.T) {
	logs := test.CaptureLogs(t)
	ctx := context.Background()
	src := openSQLiteSource(t)
	factory, err := tx.NewTransactionStateFactory(src, tx.NewAtomicIDGenerator(0))
	require.NoError(t, err)

	state, err := factory.TransactionStateInstance(ctx)
	require.NoError(t, err)
	insertOwner(ctx, t, state.Connection(), "alice")
	require.NoError(t, state.DoCommit(ctx))

	assert.Equal(t, []string{"alice"}, owners(t, src))
	assert.True(t, logs.Contains("Had to set auto-commit to false"))
	assert.True(t, logs.Contains("Started savePoint transaction ORMLITE1"))
	assert.True(t, logs.Contains("Committed transaction id 1"))
	assert.True(t, logs.Contains("restored auto-commit to true"))
}

func TestSQLite_RollbackDiscardsWork(t *testing.T) {
	test.CaptureLogs(t)
	ctx := context.Background()
	src := openSQLiteSource(t)
	factory, err := tx.NewTransactionStateFactory(src, tx.NewAtomicIDGenerator(0))
	require.NoError(t, err)

	state, err := factory.TransactionStateInstance(ctx)
	require.NoError(t, err)
	insertOwner(ctx, t, state.Connection(), "mallory")
	require.NoError(t, state.DoRollback(ctx))

	assert.Empty(t, owners(t, src))
}

func TestSQLite_NestedTransactionUsesInnerSavepoint(t *testing.T) {
	test.CaptureLogs(t)
	ctx := context.Background()
	src := openSQLiteSource(t)
	ids := tx.NewAtomicIDGenerator(0)
	outerFactory, err := tx.NewTransactionStateFactory(src, ids)
	require.NoError(t, err)
	innerFactory, err := tx.NewTransactionStateFactory(src, ids)
	require.NoError(t, err)

	outer, err := outerFactory.TransactionStateInstance(ctx)
	require.NoError(t, err)
	insertOwner(ctx, t, outer.Connection(), "outer")

	inner, err := innerFactory.TransactionStateInstance(outer.Context(ctx))
	require.NoError(t, err)
	assert.Same(t, outer.Connection(), inner.Connection())
	assert.False(t, inner.TransactionConnection().Pinned())
	assert.Equal(t, "ORMLITE2", inner.TransactionConnection().SavepointName())

	insertOwner(ctx, t, inner.Connection(), "inner")
	require.NoError(t, inner.DoRollback(ctx))
	assert.True(t, outer.IsActive())

	require.NoError(t, outer.DoCommit(ctx))
	assert.Equal(t, []string{"outer"}, owners(t, src))
}

func TestCallInTransaction(t *testing.T) {
	test.CaptureLogs(t)
	ctx := context.Background()
	src := openSQLiteSource(t)
	recorder := test.NewRecordingTransactionRecorder()
	factory, err := tx.NewTransactionStateFactory(src, tx.NewAtomicIDGenerator(0), tx.WithRecorder(recorder))
	require.NoError(t, err)

	t.Run("commits on success", func(t *testing.T) {
		err := tx.CallInTransaction(ctx, factory, func(ctx context.Context, conn database.Connection) error {
			insertOwner(ctx, t, conn, "bob")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, owners(t, src))
	})

	t.Run("rolls back and returns the callable error", func(t *testing.T) {
		boom := errors.New("insufficient funds")
		err := tx.CallInTransaction(ctx, factory, func(ctx context.Context, conn database.Connection) error {
			insertOwner(ctx, t, conn, "carol")
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"bob"}, owners(t, src))
		assert.Contains(t, recorder.Rollbacks, "callable_failed")
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		assert.PanicsWithValue(t, "corrupt ledger", func() {
			_ = tx.CallInTransaction(ctx, factory, func(ctx context.Context, conn database.Connection) error {
				insertOwner(ctx, t, conn, "dave")
				panic("corrupt ledger")
			})
		})
		assert.Equal(t, []string{"bob"}, owners(t, src))
		assert.Contains(t, recorder.Rollbacks, "panic")
		assert.False(t, factory.CachedConnection().IsActive())
	})
}

func TestCallInTransaction_ConcurrentUnitsOfWorkShareOneFactory(t *testing.T) {
	test.CaptureLogs(t)
	ctx := context.Background()
	src := openSQLiteSource(t)
	recorder := test.NewRecordingTransactionRecorder()
	factory, err := tx.NewTransactionStateFactory(src, tx.NewAtomicIDGenerator(0), tx.WithRecorder(recorder))
	require.NoError(t, err)

	const workers, perWorker = 2, 25
	errs := make(chan error, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				owner := fmt.Sprintf("worker%d-%d", w, i)
				errs <- tx.CallInTransaction(ctx, factory, func(ctx context.Context, conn database.Connection) error {
					_, err := conn.(*sqldb.Conn).ExecContext(ctx, `INSERT INTO accounts (owner) VALUES (?)`, owner)
					return err
				})
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, owners(t, src), workers*perWorker)
	assert.Equal(t, workers*perWorker, recorder.Begins)
	assert.NotContains(t, recorder.Commits, false)
	assert.False(t, factory.CachedConnection().IsActive())
}

func TestCallInTransaction_NestedCallJoinsOuterTransaction(t *testing.T) {
	test.CaptureLogs(t)
	ctx := context.Background()
	src := openSQLiteSource(t)
	factory, err := tx.NewTransactionStateFactory(src, tx.NewAtomicIDGenerator(0))
	require.NoError(t, err)

	boom := errors.New("outer failed")
	err = tx.CallInTransaction(ctx, factory, func(ctx context.Context, outer database.Connection) error {
		insertOwner(ctx, t, outer, "outer")
		innerErr := tx.CallInTransaction(ctx, factory, func(ctx context.Context, inner database.Connection) error {
			assert.Same(t, outer, inner)
			insertOwner(ctx, t, inner, "inner")
			return nil
		})
		require.NoError(t, innerErr)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, owners(t, src))
}
