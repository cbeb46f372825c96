package tx

import (
	"context"
	"time"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/metrics"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

// TransactionState pairs a borrowed TransactionConnection with the id of one transaction attempt.
// The connection stays owned by the factory that issued the state. Both DoCommit and DoRollback
// release the connection, whatever their outcome.
type TransactionState struct {
	conn     *TransactionConnection
	id       int64
	recorder metrics.TransactionRecorder
	started  time.Time
	// done hands the connection back to the issuing factory.
	done func()
}

// DoCommit commits the transaction. A connection in an invalid state is logged and released
// without error. If the commit fails a rollback is attempted and the commit error is returned.
func (s *TransactionState) DoCommit(ctx context.Context) error {
	defer s.release(ctx)

	if !s.conn.CanCommit(ctx) {
		logger.Warnf("doCommit() called while connection in invalid state")
		return nil
	}
	if err := s.conn.Commit(ctx); err != nil {
		if rbErr := s.conn.Rollback(ctx); rbErr != nil {
			logger.Errorf("Rollback of transaction id %d after failed commit also failed - \"%s\"", s.id, rbErr.Error())
		}
		logger.Warnf("Rolled back transaction id %d - \"%s\"", s.id, err.Error())
		s.recorder.RecordCommit(ctx, false)
		s.observe(ctx, "commit_failed")
		return err
	}
	logger.Debugf("Committed transaction id %d", s.id)
	s.recorder.RecordCommit(ctx, true)
	s.observe(ctx, "committed")
	return nil
}

// DoRollback rolls the transaction back and releases the connection.
func (s *TransactionState) DoRollback(ctx context.Context) error {
	defer s.release(ctx)

	if !s.conn.CanCommit(ctx) {
		logger.Warnf("doRollback() called while connection in invalid state")
		return nil
	}
	if err := s.conn.Rollback(ctx); err != nil {
		s.observe(ctx, "rollback_failed")
		return err
	}
	logger.Debugf("Rolled back transaction id %d", s.id)
	s.observe(ctx, "rolled_back")
	return nil
}

func (s *TransactionState) release(ctx context.Context) {
	s.conn.Release(ctx)
	if s.done != nil {
		s.done()
		s.done = nil
	}
}

func (s *TransactionState) observe(ctx context.Context, outcome string) {
	s.recorder.RecordDuration(ctx, "transaction", time.Since(s.started), map[string]string{"outcome": outcome})
}

// IsActive delegates to the connection.
func (s *TransactionState) IsActive() bool { return s.conn.IsActive() }

// TransactionID returns the id consumed by this attempt.
func (s *TransactionState) TransactionID() int64 { return s.id }

// Connection returns the physical connection of the transaction.
func (s *TransactionState) Connection() database.Connection { return s.conn.Connection() }

// Context returns a copy of ctx holding the connection of the transaction. Transactions started
// with it on the same source nest inside this one instead of opening their own connection.
func (s *TransactionState) Context(ctx context.Context) context.Context {
	return database.ContextWithConnection(ctx, s.conn.Connection())
}

// TransactionConnection returns the borrowed TransactionConnection.
func (s *TransactionState) TransactionConnection() *TransactionConnection { return s.conn }
