package sqldb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/sqldb"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/test"
)

func TestSource_PinNesting(t *testing.T) {
	logs := test.CaptureLogs(t)
	ctx := context.Background()
	src, _ := newMockSource(t)

	conn, err := src.ReadWriteConnection(ctx, "accounts")
	require.NoError(t, err)
	heldCtx := database.ContextWithConnection(ctx, conn)

	_, err = src.PinSpecialConnection(nil)
	assert.ErrorIs(t, err, exception.ErrIllegalArgument)

	pinned, err := src.PinSpecialConnection(conn)
	require.NoError(t, err)
	assert.True(t, pinned)

	pinned, err = src.PinSpecialConnection(conn)
	require.NoError(t, err)
	assert.False(t, pinned)

	same, err := src.ReadWriteConnection(heldCtx, "accounts")
	require.NoError(t, err)
	assert.Same(t, conn, same)

	// a pinned connection survives release
	require.NoError(t, src.ReleaseConnection(conn))

	src.UnpinSpecialConnection(conn)
	again, err := src.ReadWriteConnection(heldCtx, "accounts")
	require.NoError(t, err)
	assert.Same(t, conn, again)

	src.UnpinSpecialConnection(conn)
	fresh, err := src.ReadWriteConnection(heldCtx, "accounts")
	require.NoError(t, err)
	assert.NotSame(t, conn, fresh)

	src.UnpinSpecialConnection(conn)
	assert.True(t, logs.Contains("no special connection is pinned"))
}

func TestSource_PinnedConnectionStaysWithItsUnitOfWork(t *testing.T) {
	logs := test.CaptureLogs(t)
	ctx := context.Background()
	src, _ := newMockSource(t)

	first, err := src.ReadWriteConnection(ctx, "accounts")
	require.NoError(t, err)
	pinned, err := src.PinSpecialConnection(first)
	require.NoError(t, err)
	assert.True(t, pinned)

	// a caller that does not hold the pinned connection gets its own session
	second, err := src.ReadWriteConnection(ctx, "accounts")
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	pinned, err = src.PinSpecialConnection(second)
	require.NoError(t, err)
	assert.True(t, pinned)

	got, err := src.ReadWriteConnection(database.ContextWithConnection(ctx, second), "accounts")
	require.NoError(t, err)
	assert.Same(t, second, got)

	// a connection held by ctx but pinned elsewhere is not handed out
	foreign := sqldb.NewConn(nil, nil)
	got, err = src.ReadWriteConnection(database.ContextWithConnection(ctx, foreign), "accounts")
	require.NoError(t, err)
	assert.NotSame(t, foreign, got)

	src.UnpinSpecialConnection(foreign)
	assert.True(t, logs.Contains("not a pinned special connection"))
}

func TestSource_Options(t *testing.T) {
	src, _ := newMockSource(t)
	assert.True(t, src.SupportsNestedSavepoints())
	assert.Equal(t, "default", src.Name())

	src, _ = newMockSource(t, sqldb.WithNestedSavepoints(false), sqldb.WithName("ledger"))
	assert.False(t, src.SupportsNestedSavepoints())
	assert.Equal(t, "ledger", src.Name())
	assert.NotNil(t, src.DB())
}

func TestSource_Close(t *testing.T) {
	ctx := context.Background()
	src, mock := newMockSource(t)
	mock.ExpectClose()

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err := src.ReadWriteConnection(ctx, "")
	assert.ErrorIs(t, err, exception.ErrIllegalState)
	_, err = src.PinSpecialConnection(sqldb.NewConn(nil, nil))
	assert.ErrorIs(t, err, exception.ErrIllegalState)
	assert.NoError(t, mock.ExpectationsWereMet())
}
