// Package transaction implements the JPA-style EntityTransaction on top of core/tx.
package transaction

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/metrics"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/tx"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

const moduleName = "transaction"

// Error messages raised by Commit.
const (
	MsgPreCommitDeclined        = "Pre commit failure caused rollback"
	MsgPreCommitFailed          = "Pre commit operation failed"
	MsgPreCommitRollbackFail    = "Rollback after pre commit failure failed"
	MsgCommitFailed             = "Commit failed"
	MsgRollbackOnlyRollbackFail = "Rollback of rollback-only transaction failed"
)

const (
	statusInactive int32 = iota
	statusActive
	statusSettling
)

// StateFactory issues transaction states. *tx.TransactionStateFactory implements it.
type StateFactory interface {
	TransactionStateInstance(ctx context.Context) (*tx.TransactionState, error)
}

// Option configures an EntityTransaction.
type Option func(*EntityTransaction)

// WithPreCommit installs a pre-commit callback.
func WithPreCommit(cb PreCommit) Option {
	return func(e *EntityTransaction) { e.preCommit = cb }
}

// WithPostCommit installs a post-commit callback.
func WithPostCommit(cb PostCommit) Option {
	return func(e *EntityTransaction) { e.postCommit = cb }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.TransactionRecorder) Option {
	return func(e *EntityTransaction) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t metrics.Tracer) Option {
	return func(e *EntityTransaction) {
		if t != nil {
			e.tracer = t
		}
	}
}

// EntityTransaction is the begin/commit/rollback surface of one logical unit of work.
//
// The status moves Inactive -> Active on Begin and Active -> Settling -> Inactive on Commit and
// Rollback. The Settling step only covers taking the snapshot of the current state, so IsActive
// already reports false while the physical commit and the callbacks run.
//
// An EntityTransaction is not safe for concurrent use; callers serialize Begin/Commit/Rollback.
type EntityTransaction struct {
	id         string
	factory    StateFactory
	preCommit  PreCommit
	postCommit PostCommit
	recorder   metrics.TransactionRecorder
	tracer     metrics.Tracer

	status       atomic.Int32
	rollbackOnly bool
	current      *tx.TransactionState
}

// New creates an inactive EntityTransaction.
func New(factory StateFactory, opts ...Option) *EntityTransaction {
	e := &EntityTransaction{
		id:       uuid.NewString(),
		factory:  factory,
		recorder: metrics.NewNoOpTransactionRecorder(),
		tracer:   metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns the unit-of-work id attached to spans and logs.
func (e *EntityTransaction) ID() string { return e.id }

// Begin starts a transaction. It fails if one is already active.
func (e *EntityTransaction) Begin(ctx context.Context) error {
	if !e.status.CompareAndSwap(statusInactive, statusSettling) {
		return exception.NewIllegalStateError(moduleName, "Transaction is already active")
	}
	ctx, end := e.tracer.StartTransactionSpan(ctx, "begin", 0)
	defer end()

	state, err := e.factory.TransactionStateInstance(ctx)
	if err != nil {
		e.status.Store(statusInactive)
		e.tracer.RecordError(ctx, moduleName, err)
		return err
	}
	e.current = state
	e.rollbackOnly = false
	e.status.Store(statusActive)
	return nil
}

// IsActive reports whether Begin succeeded and neither Commit nor Rollback has been called since.
func (e *EntityTransaction) IsActive() bool {
	return e.status.Load() == statusActive
}

// Connection returns the connection the active transaction runs on.
func (e *EntityTransaction) Connection() (database.Connection, error) {
	if e.status.Load() != statusActive {
		return nil, exception.NewIllegalStateError(moduleName, "Transaction is not active")
	}
	return e.current.Connection(), nil
}

// Context returns a copy of ctx holding the connection of the active transaction. Transactions
// begun with it on the same source nest inside this one. While inactive ctx is returned unchanged.
func (e *EntityTransaction) Context(ctx context.Context) context.Context {
	if e.status.Load() != statusActive {
		return ctx
	}
	return e.current.Context(ctx)
}

// SetRollbackOnly marks the active transaction so that Commit rolls it back.
func (e *EntityTransaction) SetRollbackOnly() error {
	if !e.IsActive() {
		return exception.NewIllegalStateError(moduleName, "Transaction is not active")
	}
	e.rollbackOnly = true
	return nil
}

// RollbackOnly reports whether the active transaction is marked rollback-only.
func (e *EntityTransaction) RollbackOnly() (bool, error) {
	if !e.IsActive() {
		return false, exception.NewIllegalStateError(moduleName, "Transaction is not active")
	}
	return e.rollbackOnly, nil
}

// settle atomically leaves the Active status and hands back the snapshot of the transaction.
func (e *EntityTransaction) settle() (*tx.TransactionState, bool, error) {
	if !e.status.CompareAndSwap(statusActive, statusSettling) {
		return nil, false, exception.NewIllegalStateError(moduleName, "Transaction is not active")
	}
	state, rollbackOnly := e.current, e.rollbackOnly
	e.current = nil
	e.rollbackOnly = false
	e.status.Store(statusInactive)
	return state, rollbackOnly, nil
}

// Commit ends the transaction. It runs the pre-commit callback (unless rollback-only), commits
// or rolls back physically, runs the post-commit callback, and returns at most one error.
// The post-commit callback also runs after a declined or failed pre-commit, once the rollback is
// done; it is skipped only when an unexpected pre-commit fault propagates.
//
// Error precedence: an unexpected pre-commit fault propagates unchanged (a panic is re-raised);
// a failed compensating rollback beats a declined or failed pre-commit; a database error from
// the physical commit is returned last, wrapped.
func (e *EntityTransaction) Commit(ctx context.Context) error {
	state, rollbackOnly, err := e.settle()
	if err != nil {
		return err
	}
	ctx, end := e.tracer.StartTransactionSpan(ctx, "commit", state.TransactionID())
	defer end()

	if !rollbackOnly && e.preCommit != nil {
		outcome := runPreCommit(state.Context(ctx), e.preCommit, state.Connection())
		if outcome.RollbackRequired() {
			return e.abortAfterPreCommit(ctx, state, outcome)
		}
	}

	var dbErr error
	if rollbackOnly {
		if dbErr = state.DoRollback(ctx); dbErr != nil {
			dbErr = exception.NewPersistenceError(moduleName, MsgRollbackOnlyRollbackFail, dbErr)
		}
		e.recorder.RecordRollback(ctx, "rollback_only")
	} else if dbErr = state.DoCommit(ctx); dbErr != nil {
		dbErr = exception.NewPersistenceError(moduleName, MsgCommitFailed, dbErr)
	}

	e.afterCompletion(ctx, state.TransactionID())

	if dbErr != nil {
		e.tracer.RecordError(ctx, moduleName, dbErr)
		return dbErr
	}
	return nil
}

func (e *EntityTransaction) abortAfterPreCommit(ctx context.Context, state *tx.TransactionState, outcome PreCommitOutcome) error {
	rbErr := state.DoRollback(ctx)
	e.recorder.RecordRollback(ctx, "pre_commit_"+outcome.Decision.String())
	e.recorder.RecordCallbackFailure(ctx, "pre_commit", outcome.reason())

	if outcome.Decision == Unexpected {
		if rbErr != nil {
			logger.Errorf("Rollback of transaction id %d after unexpected pre commit fault failed - \"%s\"", state.TransactionID(), rbErr.Error())
		}
		if outcome.Panicked() {
			panic(outcome.Panic)
		}
		return outcome.Fault
	}

	e.afterCompletion(ctx, state.TransactionID())

	var err error
	switch {
	case rbErr != nil:
		err = exception.NewPersistenceError(moduleName, MsgPreCommitRollbackFail, rbErr)
	case outcome.Decision == Decline:
		err = exception.NewPersistenceError(moduleName, MsgPreCommitDeclined, nil)
	default:
		err = exception.NewPersistenceError(moduleName, MsgPreCommitFailed, outcome.Cause)
	}
	e.tracer.RecordError(ctx, moduleName, err)
	return err
}

// afterCompletion runs the post-commit callback. Its failures are logged and recorded only.
func (e *EntityTransaction) afterCompletion(ctx context.Context, id int64) {
	if e.postCommit == nil {
		return
	}
	if outcome := runPostCommit(ctx, e.postCommit); outcome.Failed() {
		logger.Warnf("Transaction id %d: %s", id, outcome.Detail())
		e.recorder.RecordCallbackFailure(ctx, "post_commit", postCommitReason(outcome))
		e.tracer.RecordEvent(ctx, "post_commit_failed", map[string]interface{}{
			"unit_of_work": e.id,
			"detail":       outcome.Detail(),
		})
	}
}

// Rollback ends the transaction by rolling it back. Database errors are logged, never returned;
// the only error is calling it while inactive.
func (e *EntityTransaction) Rollback(ctx context.Context) error {
	state, _, err := e.settle()
	if err != nil {
		return err
	}
	ctx, end := e.tracer.StartTransactionSpan(ctx, "rollback", state.TransactionID())
	defer end()

	if rbErr := state.DoRollback(ctx); rbErr != nil {
		logger.Errorf("Rollback of transaction id %d failed - \"%s\"", state.TransactionID(), rbErr.Error())
		e.tracer.RecordError(ctx, moduleName, rbErr)
	}
	e.recorder.RecordRollback(ctx, "explicit")
	return nil
}

func postCommitReason(o PostCommitOutcome) string {
	if o.Declined {
		return Decline.String()
	}
	return o.Kind.String()
}
