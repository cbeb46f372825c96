package transaction

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/metrics"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/tx"
)

// Manager creates EntityTransactions sharing one state factory and observability stack.
type Manager struct {
	factory  StateFactory
	recorder metrics.TransactionRecorder
	tracer   metrics.Tracer
}

// ManagerParams defines the dependencies for NewManager.
type ManagerParams struct {
	fx.In
	Factory  *tx.TransactionStateFactory
	Recorder metrics.TransactionRecorder
	Tracer   metrics.Tracer
}

// NewManager creates a Manager.
func NewManager(p ManagerParams) *Manager {
	return &Manager{factory: p.Factory, recorder: p.Recorder, tracer: p.Tracer}
}

// NewTransaction creates an inactive EntityTransaction for one logical unit of work.
// opts are applied after the manager's recorder and tracer, so they may override them.
func (m *Manager) NewTransaction(opts ...Option) *EntityTransaction {
	base := []Option{WithRecorder(m.recorder), WithTracer(m.tracer)}
	return New(m.factory, append(base, opts...)...)
}

// Module provides the Manager.
var Module = fx.Options(
	fx.Provide(NewManager),
)
