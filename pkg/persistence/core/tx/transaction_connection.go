package tx

import (
	"context"
	"fmt"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

const moduleName = "tx"

// SavepointPrefix prefixes every savepoint name; the transaction id is appended in decimal.
const SavepointPrefix = "ORMLITE"

// SavepointName returns the savepoint name used for transaction id.
func SavepointName(id int64) string {
	return fmt.Sprintf("%s%d", SavepointPrefix, id)
}

// TransactionConnection owns one physical connection for the span of one transaction attempt.
//
// Lifecycle: INACTIVE --Activate--> ACTIVE --Commit|Rollback--> ACTIVE --Release--> INACTIVE.
// Commit and Rollback leave the connection active so callers can report the outcome before
// tearing down; Release is idempotent and never fails.
//
// A TransactionConnection is not safe for concurrent use.
type TransactionConnection struct {
	source    database.ConnectionSource
	tableName string

	conn          database.Connection
	active        bool
	hasSavepoint  bool
	savepoint     database.Savepoint
	savepointName string
	// autoCommitAtStart is nil until captured.
	autoCommitAtStart *bool
	// pinned is true when Activate established a new special-connection pin.
	pinned bool
	// pinHeld is true while this instance owes the source an unpin.
	pinHeld bool
}

// NewTransactionConnection creates an inactive TransactionConnection bound to source.
// tableName is passed to the source when acquiring connections.
func NewTransactionConnection(source database.ConnectionSource, tableName string) (*TransactionConnection, error) {
	if source == nil {
		return nil, exception.NewIllegalArgumentError(moduleName, "connection source must not be nil")
	}
	return &TransactionConnection{source: source, tableName: tableName}, nil
}

// Activate acquires and pins a connection and, when a transaction boundary is needed, disables
// auto-commit and creates the savepoint "ORMLITE<id>". Setup is all-or-nothing: on failure every
// partial step is undone before the error is returned.
func (c *TransactionConnection) Activate(ctx context.Context, id int64) error {
	if c.active {
		return exception.NewIllegalStateError(moduleName,
			fmt.Sprintf("transaction connection is already active with savepoint %s", c.savepointName))
	}

	conn, err := c.source.ReadWriteConnection(ctx, c.tableName)
	if err != nil {
		return err
	}
	c.conn = conn
	c.savepointName = SavepointName(id)
	c.autoCommitAtStart = nil
	c.hasSavepoint = false
	c.savepoint = nil

	pinned, err := c.source.PinSpecialConnection(conn)
	if err != nil {
		c.teardown(ctx)
		return err
	}
	c.pinned = pinned
	c.pinHeld = true

	if pinned || c.source.SupportsNestedSavepoints() {
		if err := c.setup(ctx); err != nil {
			c.teardown(ctx)
			return err
		}
	}
	c.active = true
	return nil
}

func (c *TransactionConnection) setup(ctx context.Context) error {
	if c.conn.IsAutoCommitSupported() {
		autoCommit, err := c.conn.IsAutoCommit(ctx)
		if err != nil {
			return err
		}
		if autoCommit {
			if err := c.conn.SetAutoCommit(ctx, false); err != nil {
				return err
			}
			logger.Debugf("Had to set auto-commit to false")
		}
		// only a successful toggle leaves something to restore
		c.autoCommitAtStart = &autoCommit
	}

	sp, err := c.conn.SetSavepoint(ctx, c.savepointName)
	if err != nil {
		return err
	}
	c.savepoint = sp
	c.hasSavepoint = true
	logger.Debugf("Started savePoint transaction %s", c.savepointName)
	return nil
}

// CanCommit reports whether there is a boundary to commit or roll back: a savepoint exists
// and the connection is not in auto-commit mode.
func (c *TransactionConnection) CanCommit(ctx context.Context) bool {
	if !c.active || !c.hasSavepoint {
		return false
	}
	if !c.conn.IsAutoCommitSupported() {
		return true
	}
	autoCommit, err := c.conn.IsAutoCommit(ctx)
	if err != nil {
		logger.Warnf("Could not query auto-commit on savepoint %s - \"%s\"", c.savepointName, err.Error())
		return false
	}
	return !autoCommit
}

// Commit commits the work scoped to the savepoint. If the driver commit fails a rollback to the
// savepoint is attempted; its own failure is only logged and the commit error is returned.
// Called on an inactive connection it logs and does nothing.
func (c *TransactionConnection) Commit(ctx context.Context) error {
	if !c.active {
		logger.Warnf("commit() called on inactive transaction connection")
		return nil
	}
	err := c.conn.Commit(ctx, c.savepoint)
	if err == nil {
		return nil
	}
	if c.hasSavepoint {
		if rbErr := c.conn.Rollback(ctx, c.savepoint); rbErr != nil {
			logger.Errorf("After commit failure, rollback to savepoint %s also failed - \"%s\"", c.savepointName, rbErr.Error())
		} else {
			logger.Debugf("After commit failure, rolled back to savepoint %s", c.savepointName)
		}
	}
	return err
}

// Rollback rolls back to the savepoint. Called on an inactive connection it logs and does nothing.
func (c *TransactionConnection) Rollback(ctx context.Context) error {
	if !c.active {
		logger.Warnf("rollback() called on inactive transaction connection")
		return nil
	}
	return c.conn.Rollback(ctx, c.savepoint)
}

// Release restores auto-commit if this instance disabled it, unpins and returns the connection
// to the source, and marks the instance inactive. Failures are logged; a second call is a no-op.
func (c *TransactionConnection) Release(ctx context.Context) {
	if !c.active {
		return
	}
	c.teardown(ctx)
}

func (c *TransactionConnection) teardown(ctx context.Context) {
	// cleanup must still reach the driver when the caller's context is already cancelled
	ctx = context.WithoutCancel(ctx)

	if c.autoCommitAtStart != nil && *c.autoCommitAtStart {
		if err := c.conn.SetAutoCommit(ctx, true); err != nil {
			logger.Errorf("Restoring auto-commit to true failed - \"%s\"", err.Error())
		} else {
			logger.Debugf("restored auto-commit to true")
		}
	}
	if c.pinHeld {
		c.source.UnpinSpecialConnection(c.conn)
	}
	if err := c.source.ReleaseConnection(c.conn); err != nil {
		logger.Errorf("releaseConnection() failed - \"%s\"", err.Error())
	}

	c.conn = nil
	c.active = false
	c.hasSavepoint = false
	c.savepoint = nil
	c.autoCommitAtStart = nil
	c.pinned = false
	c.pinHeld = false
}

// IsActive reports whether the instance currently holds a connection.
func (c *TransactionConnection) IsActive() bool { return c.active }

// Connection returns the held connection, or nil when inactive.
func (c *TransactionConnection) Connection() database.Connection { return c.conn }

// SavepointName returns the savepoint name of the current or most recent activation.
func (c *TransactionConnection) SavepointName() string { return c.savepointName }

// HasSavepoint reports whether a savepoint was created by the current activation.
func (c *TransactionConnection) HasSavepoint() bool { return c.hasSavepoint }

// Pinned reports whether the current activation established a new special-connection pin.
func (c *TransactionConnection) Pinned() bool { return c.pinned }
