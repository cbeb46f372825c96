package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithNestedSavepoints sets whether savepoints may be created inside an open transaction.
func WithNestedSavepoints(supported bool) SourceOption {
	return func(s *Source) { s.nestedSavepoints = supported }
}

// WithTxOptions sets the options used when auto-commit is disabled.
func WithTxOptions(opts *sql.TxOptions) SourceOption {
	return func(s *Source) { s.txOpts = opts }
}

// WithName sets the name used in log messages.
func WithName(name string) SourceOption {
	return func(s *Source) { s.name = name }
}

// Source is a database.ConnectionSource backed by a *sql.DB pool.
// Special connections are tracked per connection: every unit of work pins its own, and only a
// context holding a pinned connection gets it back from ReadWriteConnection.
type Source struct {
	db               *sql.DB
	name             string
	nestedSavepoints bool
	txOpts           *sql.TxOptions

	mu      sync.Mutex
	special map[database.Connection]int
	closed  bool
}

// NewSource creates a Source over db. Nested savepoints are supported by default,
// which holds for sqlite, mysql and postgres.
func NewSource(db *sql.DB, opts ...SourceOption) *Source {
	s := &Source{
		db:               db,
		name:             "default",
		nestedSavepoints: true,
		special:          make(map[database.Connection]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying pool.
func (s *Source) DB() *sql.DB { return s.db }

// Name returns the source name.
func (s *Source) Name() string { return s.name }

// ReadWriteConnection implements database.ConnectionSource. A connection held by ctx and pinned
// on this source is returned as is; otherwise a session is taken from the pool, waiting for one
// when the pool is exhausted.
func (s *Source) ReadWriteConnection(ctx context.Context, tableName string) (database.Connection, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, exception.NewIllegalStateError(moduleName, fmt.Sprintf("connection source '%s' is closed", s.name))
	}
	for _, held := range database.HeldConnections(ctx) {
		if _, ok := s.special[held]; ok {
			s.mu.Unlock()
			return held, nil
		}
	}
	s.mu.Unlock()

	raw, err := s.db.Conn(ctx)
	if err != nil {
		return nil, exception.NewSQLError(moduleName, fmt.Sprintf("acquiring connection for table '%s' failed", tableName), err)
	}
	return NewConn(raw, s.txOpts), nil
}

// PinSpecialConnection implements database.ConnectionSource.
func (s *Source) PinSpecialConnection(conn database.Connection) (bool, error) {
	if conn == nil {
		return false, exception.NewIllegalArgumentError(moduleName, "cannot pin a nil connection")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, exception.NewIllegalStateError(moduleName, fmt.Sprintf("connection source '%s' is closed", s.name))
	}
	level := s.special[conn]
	s.special[conn] = level + 1
	return level == 0, nil
}

// UnpinSpecialConnection implements database.ConnectionSource.
func (s *Source) UnpinSpecialConnection(conn database.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.special) == 0 {
		logger.Warnf("Unpinning connection on source '%s' but no special connection is pinned", s.name)
		return
	}
	level, ok := s.special[conn]
	if !ok {
		logger.Warnf("Unpinning connection on source '%s' that is not a pinned special connection", s.name)
		return
	}
	if level <= 1 {
		delete(s.special, conn)
		return
	}
	s.special[conn] = level - 1
}

// ReleaseConnection implements database.ConnectionSource.
func (s *Source) ReleaseConnection(conn database.Connection) error {
	if conn == nil {
		return nil
	}
	s.mu.Lock()
	_, pinned := s.special[conn]
	s.mu.Unlock()
	if pinned {
		return nil
	}
	return conn.Close()
}

// SupportsNestedSavepoints implements database.ConnectionSource.
func (s *Source) SupportsNestedSavepoints() bool { return s.nestedSavepoints }

// Close closes any pinned connection and the pool.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var result *multierror.Error
	if len(s.special) > 0 {
		logger.Warnf("Closing connection source '%s' while %d special connection(s) are still pinned", s.name, len(s.special))
	}
	for conn := range s.special {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		delete(s.special, conn)
	}
	if err := s.db.Close(); err != nil {
		result = multierror.Append(result, exception.NewSQLError(moduleName, "closing pool failed", err))
	}
	return result.ErrorOrNil()
}

var _ database.ConnectionSource = (*Source)(nil)
