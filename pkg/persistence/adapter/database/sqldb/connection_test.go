package sqldb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/sqldb"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/test"
)

func newMockSource(t *testing.T, opts ...sqldb.SourceOption) (*sqldb.Source, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqldb.NewSource(db, opts...), mock
}

func newMockConn(t *testing.T) (*sqldb.Conn, sqlmock.Sqlmock) {
	t.Helper()
	src, mock := newMockSource(t)
	conn, err := src.ReadWriteConnection(context.Background(), "accounts")
	require.NoError(t, err)
	return conn.(*sqldb.Conn), mock
}

func TestConn_AutoCommitEmulation(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMockConn(t)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT ORMLITE1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO accounts (owner) VALUES (?)").WithArgs("alice").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("RELEASE SAVEPOINT ORMLITE1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	auto, err := conn.IsAutoCommit(ctx)
	require.NoError(t, err)
	assert.True(t, auto)
	assert.True(t, conn.IsAutoCommitSupported())

	require.NoError(t, conn.SetAutoCommit(ctx, false))
	auto, err = conn.IsAutoCommit(ctx)
	require.NoError(t, err)
	assert.False(t, auto)

	sp, err := conn.SetSavepoint(ctx, "ORMLITE1")
	require.NoError(t, err)
	assert.Equal(t, "ORMLITE1", sp.Name())

	_, err = conn.ExecContext(ctx, "INSERT INTO accounts (owner) VALUES (?)", "alice")
	require.NoError(t, err)

	require.NoError(t, conn.Commit(ctx, sp))
	require.NoError(t, conn.SetAutoCommit(ctx, true))

	auto, err = conn.IsAutoCommit(ctx)
	require.NoError(t, err)
	assert.True(t, auto)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_RollbackToSavepoint(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMockConn(t)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT ORMLITE2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT ORMLITE2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	require.NoError(t, conn.SetAutoCommit(ctx, false))
	sp, err := conn.SetSavepoint(ctx, "ORMLITE2")
	require.NoError(t, err)
	require.NoError(t, conn.Rollback(ctx, sp))
	require.NoError(t, conn.Close())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_WholeTransactionCommitReopens(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMockConn(t)

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()

	require.NoError(t, conn.SetAutoCommit(ctx, false))
	require.NoError(t, conn.Commit(ctx, nil))
	require.NoError(t, conn.Rollback(ctx, nil))

	auto, err := conn.IsAutoCommit(ctx)
	require.NoError(t, err)
	assert.False(t, auto)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_CommitWithoutTransaction(t *testing.T) {
	conn, _ := newMockConn(t)

	err := conn.Commit(context.Background(), nil)
	assert.ErrorIs(t, err, exception.ErrIllegalState)

	err = conn.Rollback(context.Background(), nil)
	assert.ErrorIs(t, err, exception.ErrIllegalState)
}

func TestConn_InvalidSavepointName(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMockConn(t)

	for _, name := range []string{"", "1abc", "sp; DROP TABLE accounts", "sp-1"} {
		_, err := conn.SetSavepoint(ctx, name)
		assert.ErrorIs(t, err, exception.ErrIllegalArgument, name)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_DriverErrorsClassifyAsSQL(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMockConn(t)
	driverErr := errors.New("database is locked")

	mock.ExpectExec("SAVEPOINT ORMLITE1").WillReturnError(driverErr)

	_, err := conn.SetSavepoint(ctx, "ORMLITE1")
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrSQL)
	assert.ErrorIs(t, err, driverErr)
	assert.Equal(t, exception.KindPersistence, exception.Classify(err))
}

func TestConn_BeginFailure(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMockConn(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many transactions"))

	err := conn.SetAutoCommit(ctx, false)
	assert.ErrorIs(t, err, exception.ErrSQL)

	auto, err := conn.IsAutoCommit(ctx)
	require.NoError(t, err)
	assert.True(t, auto)
}

func TestConn_CloseRollsBackOpenTransaction(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMockConn(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	require.NoError(t, conn.SetAutoCommit(ctx, false))
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	_, err := conn.IsAutoCommit(ctx)
	assert.ErrorIs(t, err, exception.ErrIllegalState)
	assert.ErrorIs(t, conn.SetAutoCommit(ctx, true), exception.ErrIllegalState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_CloseLogsRollbackFailure(t *testing.T) {
	logs := test.CaptureLogs(t)
	ctx := context.Background()
	conn, mock := newMockConn(t)

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection reset by peer"))

	require.NoError(t, conn.SetAutoCommit(ctx, false))
	require.NoError(t, conn.Close())

	assert.True(t, logs.Contains(`Rolling back open transaction on close failed - "connection reset by peer"`))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_ExecutorFollowsTransaction(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMockConn(t)
	mock.ExpectBegin()

	before := conn.Executor()
	require.NoError(t, conn.SetAutoCommit(ctx, false))
	after := conn.Executor()

	assert.NotEqual(t, before, after)
}
