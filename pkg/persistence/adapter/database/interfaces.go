// Package database defines the connection contracts consumed by the transaction layer.
package database

import (
	"context"
)

// Savepoint is a named marker inside a transaction.
type Savepoint interface {
	// Name returns the savepoint name as issued to the database.
	Name() string
}

// Connection is a physical database session.
// Implementations are not required to be safe for concurrent use.
type Connection interface {
	// IsAutoCommitSupported reports whether auto-commit can be queried and toggled.
	IsAutoCommitSupported() bool
	// IsAutoCommit reports whether every statement is implicitly committed.
	IsAutoCommit(ctx context.Context) (bool, error)
	// SetAutoCommit enables or disables auto-commit. Enabling it commits any open work.
	SetAutoCommit(ctx context.Context, autoCommit bool) error
	// SetSavepoint creates a savepoint with the given name. Drivers without named savepoints
	// may return a nil Savepoint together with a nil error.
	SetSavepoint(ctx context.Context, name string) (Savepoint, error)
	// Commit commits the work scoped to savepoint, or the whole transaction if savepoint is nil.
	Commit(ctx context.Context, savepoint Savepoint) error
	// Rollback rolls back to savepoint, or the whole transaction if savepoint is nil.
	Rollback(ctx context.Context, savepoint Savepoint) error
	// Close closes the physical session.
	Close() error
}

// ConnectionSource supplies connections and pins "special" connections so that every
// statement of a transaction runs on the same physical session. Each unit of work pins its own
// connection; nested work finds it again through the context (see ContextWithConnection).
type ConnectionSource interface {
	// ReadWriteConnection returns a connection usable for writes to tableName. When ctx holds a
	// connection this source has pinned, that connection is returned instead of a fresh one.
	ReadWriteConnection(ctx context.Context, tableName string) (Connection, error)
	// PinSpecialConnection marks conn as a special connection. It returns true when the call
	// established a new pin and false when conn was already pinned (nested use).
	PinSpecialConnection(conn Connection) (bool, error)
	// UnpinSpecialConnection undoes one PinSpecialConnection call for conn.
	UnpinSpecialConnection(conn Connection)
	// ReleaseConnection hands conn back to the source. Releasing a still pinned connection is a no-op.
	ReleaseConnection(conn Connection) error
	// SupportsNestedSavepoints reports whether savepoints may be created inside an open transaction.
	SupportsNestedSavepoints() bool
}

// ConnectionSourceProvider resolves named connection sources from configuration.
type ConnectionSourceProvider interface {
	// ConnectionSource returns the source registered under name, opening it if needed.
	ConnectionSource(ctx context.Context, name string) (ConnectionSource, error)
	// CloseAll closes every source opened by the provider.
	CloseAll() error
	// Type returns the database type handled by this provider (e.g., "sqlite").
	Type() string
}

// ProviderGroup is the fx value group tag collecting every ConnectionSourceProvider.
const ProviderGroup = "connection_source_providers"
