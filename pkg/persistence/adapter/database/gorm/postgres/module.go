package postgres

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
)

// Module exports the PostgreSQL ConnectionSourceProvider for dependency injection.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewProvider,
			fx.As(new(database.ConnectionSourceProvider)),
			fx.ResultTags(`group:"`+database.ProviderGroup+`"`),
		),
	),
)
