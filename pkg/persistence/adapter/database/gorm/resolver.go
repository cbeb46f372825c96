package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/config"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

// Resolver selects the ConnectionSourceProvider matching the configured type of a named database.
type Resolver struct {
	providers map[string]database.ConnectionSourceProvider // keyed by database type
	cfg       *config.Config
}

// ResolverParams defines the dependencies for NewResolver.
type ResolverParams struct {
	fx.In
	Providers []database.ConnectionSourceProvider `group:"connection_source_providers"`
	Cfg       *config.Config
}

// NewResolver creates a Resolver over every provider of the value group.
func NewResolver(p ResolverParams) *Resolver {
	providerMap := make(map[string]database.ConnectionSourceProvider)
	for _, provider := range p.Providers {
		providerMap[provider.Type()] = provider
	}
	return &Resolver{providers: providerMap, cfg: p.Cfg}
}

// Resolve returns the ConnectionSource registered under name and checks that its pool answers.
func (r *Resolver) Resolve(ctx context.Context, name string) (database.ConnectionSource, error) {
	dbCfg, err := DecodeDatabaseConfig(r.cfg, name)
	if err != nil {
		return nil, err
	}
	provider, ok := r.providers[dbCfg.Type]
	if !ok && dbCfg.Type == "redshift" {
		provider, ok = r.providers["postgres"]
	}
	if !ok {
		return nil, exception.NewIllegalArgumentError(moduleName,
			fmt.Sprintf("no provider for database type '%s' (connection '%s')", dbCfg.Type, name))
	}

	src, err := provider.ConnectionSource(ctx, name)
	if err != nil {
		return nil, exception.NewPersistenceError(moduleName, fmt.Sprintf("failed to open connection source '%s'", name), err)
	}
	if pool, ok := src.(interface{ DB() *sql.DB }); ok {
		if pingErr := pool.DB().PingContext(ctx); pingErr != nil {
			return nil, exception.NewSQLError(moduleName, fmt.Sprintf("connection source '%s' is not reachable", name), pingErr)
		}
	}
	logger.Debugf("Resolved connection source '%s' (%s)", name, dbCfg.Type)
	return src, nil
}

// CloseAll closes every source opened through the registered providers.
func (r *Resolver) CloseAll() error {
	var result *multierror.Error
	for dbType, provider := range r.providers {
		if err := provider.CloseAll(); err != nil {
			logger.Errorf("Failed to close '%s' connection sources: %v", dbType, err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// NewDefaultConnectionSource resolves the connection named by persistence.transaction.connection_ref
// and closes every provider when the application stops.
func NewDefaultConnectionSource(lc fx.Lifecycle, r *Resolver, cfg *config.Config) (database.ConnectionSource, error) {
	src, err := r.Resolve(context.Background(), cfg.Persistence.Transaction.ConnectionRef)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.CloseAll()
		},
	})
	return src, nil
}
