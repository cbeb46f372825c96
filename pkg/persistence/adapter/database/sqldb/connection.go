// Package sqldb implements the database.Connection and database.ConnectionSource contracts
// on top of database/sql.
//
// Auto-commit is emulated: a Conn is in auto-commit mode while no *sql.Tx is open on it.
// Disabling auto-commit begins a transaction, enabling it commits that transaction, matching
// the behaviour JDBC-style callers expect.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

const moduleName = "sqldb"

// Executor is the statement surface shared by *sql.Conn and *sql.Tx.
// It also satisfies gorm.ConnPool.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type savepoint struct {
	name string
}

func (s savepoint) Name() string { return s.name }

// Conn is a single physical session taken from a *sql.DB.
type Conn struct {
	conn   *sql.Conn
	tx     *sql.Tx
	txOpts *sql.TxOptions
	closed bool
}

// NewConn wraps an already acquired *sql.Conn.
func NewConn(conn *sql.Conn, txOpts *sql.TxOptions) *Conn {
	return &Conn{conn: conn, txOpts: txOpts}
}

// Executor returns the open transaction if auto-commit is disabled, the raw connection otherwise.
func (c *Conn) Executor() Executor {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

// ExecContext runs a statement on the current executor.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.Executor().ExecContext(ctx, query, args...)
}

// PrepareContext prepares a statement on the current executor.
func (c *Conn) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return c.Executor().PrepareContext(ctx, query)
}

// QueryContext runs a query on the current executor.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.Executor().QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the current executor.
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.Executor().QueryRowContext(ctx, query, args...)
}

// IsAutoCommitSupported implements database.Connection.
func (c *Conn) IsAutoCommitSupported() bool { return true }

// IsAutoCommit implements database.Connection.
func (c *Conn) IsAutoCommit(ctx context.Context) (bool, error) {
	if c.closed {
		return false, exception.NewIllegalStateError(moduleName, "connection is closed")
	}
	return c.tx == nil, nil
}

// SetAutoCommit implements database.Connection.
func (c *Conn) SetAutoCommit(ctx context.Context, autoCommit bool) error {
	if c.closed {
		return exception.NewIllegalStateError(moduleName, "connection is closed")
	}
	if autoCommit {
		if c.tx == nil {
			return nil
		}
		err := c.tx.Commit()
		c.tx = nil
		if err != nil {
			return exception.NewSQLError(moduleName, "commit on enabling auto-commit failed", err)
		}
		return nil
	}
	if c.tx != nil {
		return nil
	}
	return c.begin(ctx)
}

func (c *Conn) begin(ctx context.Context) error {
	tx, err := c.conn.BeginTx(ctx, c.txOpts)
	if err != nil {
		return exception.NewSQLError(moduleName, "begin failed", err)
	}
	c.tx = tx
	return nil
}

// SetSavepoint implements database.Connection.
func (c *Conn) SetSavepoint(ctx context.Context, name string) (database.Savepoint, error) {
	if err := validateSavepointName(name); err != nil {
		return nil, err
	}
	if _, err := c.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, exception.NewSQLError(moduleName, fmt.Sprintf("setting savepoint %s failed", name), err)
	}
	return savepoint{name: name}, nil
}

// Commit implements database.Connection. With a savepoint the savepoint is released and the
// enclosing transaction stays open; without one the whole transaction is committed and a new
// one is opened so the connection stays in manual-commit mode.
func (c *Conn) Commit(ctx context.Context, sp database.Savepoint) error {
	if sp != nil {
		if _, err := c.ExecContext(ctx, "RELEASE SAVEPOINT "+sp.Name()); err != nil {
			return exception.NewSQLError(moduleName, fmt.Sprintf("releasing savepoint %s failed", sp.Name()), err)
		}
		return nil
	}
	if c.tx == nil {
		return exception.NewIllegalStateError(moduleName, "commit called while in auto-commit mode")
	}
	err := c.tx.Commit()
	c.tx = nil
	if err != nil {
		return exception.NewSQLError(moduleName, "commit failed", err)
	}
	return c.begin(ctx)
}

// Rollback implements database.Connection.
func (c *Conn) Rollback(ctx context.Context, sp database.Savepoint) error {
	if sp != nil {
		if _, err := c.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp.Name()); err != nil {
			return exception.NewSQLError(moduleName, fmt.Sprintf("rollback to savepoint %s failed", sp.Name()), err)
		}
		return nil
	}
	if c.tx == nil {
		return exception.NewIllegalStateError(moduleName, "rollback called while in auto-commit mode")
	}
	err := c.tx.Rollback()
	c.tx = nil
	if err != nil {
		return exception.NewSQLError(moduleName, "rollback failed", err)
	}
	return c.begin(ctx)
}

// Close rolls back any open transaction and returns the session to the pool.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.tx != nil {
		// the session goes back to the pool either way
		if err := c.tx.Rollback(); err != nil {
			logger.Warnf("Rolling back open transaction on close failed - \"%s\"", err.Error())
		}
		c.tx = nil
	}
	if err := c.conn.Close(); err != nil {
		return exception.NewSQLError(moduleName, "closing connection failed", err)
	}
	return nil
}

// validateSavepointName accepts identifiers only; names are spliced into SQL.
func validateSavepointName(name string) error {
	if name == "" {
		return exception.NewIllegalArgumentError(moduleName, "savepoint name must not be empty")
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return exception.NewIllegalArgumentError(moduleName, fmt.Sprintf("invalid savepoint name %q", name))
		}
	}
	return nil
}

var _ database.Connection = (*Conn)(nil)
