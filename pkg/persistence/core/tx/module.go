package tx

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/config"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/metrics"
)

// FactoryParams defines the dependencies for NewTransactionStateFactoryProvider.
type FactoryParams struct {
	fx.In
	Source   database.ConnectionSource
	IDs      IDGenerator
	Recorder metrics.TransactionRecorder
	Cfg      *config.Config
}

// NewIDGeneratorProvider creates the single id generator shared by every factory of the graph.
func NewIDGeneratorProvider(cfg *config.Config) IDGenerator {
	return NewAtomicIDGenerator(cfg.Persistence.Transaction.IDStart)
}

// NewTransactionStateFactoryProvider creates the default factory over the configured source.
func NewTransactionStateFactoryProvider(p FactoryParams) (*TransactionStateFactory, error) {
	return NewTransactionStateFactory(p.Source, p.IDs,
		WithTableName(p.Cfg.Persistence.Transaction.TableName),
		WithRecorder(p.Recorder),
	)
}

// Module provides the IDGenerator and the default TransactionStateFactory.
var Module = fx.Options(
	fx.Provide(NewIDGeneratorProvider),
	fx.Provide(NewTransactionStateFactoryProvider),
)
