// Package test provides testify mocks of the connection contracts and helpers shared by the
// package tests.
package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
)

// MockSavepoint is a fixed-name database.Savepoint.
type MockSavepoint struct {
	SavepointName string
}

// NewMockSavepoint creates a MockSavepoint named name.
func NewMockSavepoint(name string) *MockSavepoint {
	return &MockSavepoint{SavepointName: name}
}

// Name implements database.Savepoint.
func (s *MockSavepoint) Name() string { return s.SavepointName }

// MockConnection is a mock implementation of the database.Connection interface.
type MockConnection struct {
	mock.Mock
}

// IsAutoCommitSupported mocks database.Connection.IsAutoCommitSupported.
func (m *MockConnection) IsAutoCommitSupported() bool {
	args := m.Called()
	return args.Bool(0)
}

// IsAutoCommit mocks database.Connection.IsAutoCommit.
func (m *MockConnection) IsAutoCommit(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// SetAutoCommit mocks database.Connection.SetAutoCommit.
func (m *MockConnection) SetAutoCommit(ctx context.Context, autoCommit bool) error {
	args := m.Called(ctx, autoCommit)
	return args.Error(0)
}

// SetSavepoint mocks database.Connection.SetSavepoint. The first return value may be a
// func(context.Context, string) database.Savepoint computing the savepoint from the name.
func (m *MockConnection) SetSavepoint(ctx context.Context, name string) (database.Savepoint, error) {
	args := m.Called(ctx, name)
	if fn, ok := args.Get(0).(func(context.Context, string) database.Savepoint); ok {
		return fn(ctx, name), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(database.Savepoint), args.Error(1)
}

// Commit mocks database.Connection.Commit.
func (m *MockConnection) Commit(ctx context.Context, savepoint database.Savepoint) error {
	args := m.Called(ctx, savepoint)
	return args.Error(0)
}

// Rollback mocks database.Connection.Rollback.
func (m *MockConnection) Rollback(ctx context.Context, savepoint database.Savepoint) error {
	args := m.Called(ctx, savepoint)
	return args.Error(0)
}

// Close mocks database.Connection.Close.
func (m *MockConnection) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockConnectionSource is a mock implementation of the database.ConnectionSource interface.
type MockConnectionSource struct {
	mock.Mock
}

// ReadWriteConnection mocks database.ConnectionSource.ReadWriteConnection.
func (m *MockConnectionSource) ReadWriteConnection(ctx context.Context, tableName string) (database.Connection, error) {
	args := m.Called(ctx, tableName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(database.Connection), args.Error(1)
}

// PinSpecialConnection mocks database.ConnectionSource.PinSpecialConnection.
func (m *MockConnectionSource) PinSpecialConnection(conn database.Connection) (bool, error) {
	args := m.Called(conn)
	return args.Bool(0), args.Error(1)
}

// UnpinSpecialConnection mocks database.ConnectionSource.UnpinSpecialConnection.
func (m *MockConnectionSource) UnpinSpecialConnection(conn database.Connection) {
	m.Called(conn)
}

// ReleaseConnection mocks database.ConnectionSource.ReleaseConnection.
func (m *MockConnectionSource) ReleaseConnection(conn database.Connection) error {
	args := m.Called(conn)
	return args.Error(0)
}

// SupportsNestedSavepoints mocks database.ConnectionSource.SupportsNestedSavepoints.
func (m *MockConnectionSource) SupportsNestedSavepoints() bool {
	args := m.Called()
	return args.Bool(0)
}

var (
	_ database.Connection       = (*MockConnection)(nil)
	_ database.ConnectionSource = (*MockConnectionSource)(nil)
)
