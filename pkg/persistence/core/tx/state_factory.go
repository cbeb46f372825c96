package tx

import (
	"context"
	"sync"
	"time"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/metrics"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

// FactoryOption configures a TransactionStateFactory.
type FactoryOption func(*TransactionStateFactory)

// WithTableName sets the table name handed to the connection source on acquisition.
func WithTableName(name string) FactoryOption {
	return func(f *TransactionStateFactory) { f.tableName = name }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.TransactionRecorder) FactoryOption {
	return func(f *TransactionStateFactory) {
		if r != nil {
			f.recorder = r
		}
	}
}

// TransactionStateFactory issues TransactionStates, recycling one TransactionConnection across
// sequential transactions. This matters for embedded drivers that effectively offer a single
// usable connection.
//
// A factory is safe for concurrent use. The cached connection serves one transaction at a time;
// a transaction started while it is claimed gets a TransactionConnection of its own.
type TransactionStateFactory struct {
	source    database.ConnectionSource
	ids       IDGenerator
	tableName string
	recorder  metrics.TransactionRecorder
	cached    *TransactionConnection

	mu         sync.Mutex
	cachedBusy bool
	cachedID   int64
}

// NewTransactionStateFactory creates a factory and its cached TransactionConnection.
func NewTransactionStateFactory(source database.ConnectionSource, ids IDGenerator, opts ...FactoryOption) (*TransactionStateFactory, error) {
	if ids == nil {
		return nil, exception.NewIllegalArgumentError(moduleName, "id generator must not be nil")
	}
	f := &TransactionStateFactory{
		source:   source,
		ids:      ids,
		recorder: metrics.NewNoOpTransactionRecorder(),
	}
	for _, opt := range opts {
		opt(f)
	}
	conn, err := NewTransactionConnection(source, f.tableName)
	if err != nil {
		return nil, err
	}
	f.cached = conn
	return f, nil
}

// TransactionStateInstance activates a connection under a fresh transaction id and returns the
// state wrapping it. The cached connection is claimed unless another transaction still holds it,
// in which case a new connection is allocated. The claim ends when the state commits or rolls back.
func (f *TransactionStateFactory) TransactionStateInstance(ctx context.Context) (*TransactionState, error) {
	f.mu.Lock()
	id := f.ids.Next()
	claimed := !f.cachedBusy
	if claimed {
		f.cachedBusy = true
		f.cachedID = id
	} else {
		logger.Debugf("Cached transaction connection still active on savepoint %s, allocating a new one", SavepointName(f.cachedID))
	}
	f.mu.Unlock()

	conn := f.cached
	if !claimed {
		fresh, err := NewTransactionConnection(f.source, f.tableName)
		if err != nil {
			return nil, err
		}
		conn = fresh
	}

	if err := conn.Activate(ctx, id); err != nil {
		if claimed {
			f.releaseCached()
		}
		return nil, exception.NewPersistenceErrorf(moduleName, "could not start transaction id %d", id, err)
	}
	f.recorder.RecordBegin(ctx)
	state := &TransactionState{conn: conn, id: id, recorder: f.recorder, started: time.Now()}
	if claimed {
		state.done = f.releaseCached
	}
	return state, nil
}

func (f *TransactionStateFactory) releaseCached() {
	f.mu.Lock()
	f.cachedBusy = false
	f.mu.Unlock()
}

// CachedConnection returns the recycled TransactionConnection.
func (f *TransactionStateFactory) CachedConnection() *TransactionConnection { return f.cached }

// Recorder returns the metrics recorder used by issued states.
func (f *TransactionStateFactory) Recorder() metrics.TransactionRecorder { return f.recorder }
