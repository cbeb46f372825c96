// Package sqlite registers the SQLite dialector and provides its ConnectionSourceProvider.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/config"
	gormadapter "github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/gorm"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/config"
)

// DBType is the configuration type handled by this package.
const DBType = "sqlite"

func init() {
	gormadapter.RegisterDialector(DBType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the SQLite DSN, which is the database file path (or ":memory:").
func ConnectionString(c dbconfig.DatabaseConfig) string {
	return c.Database
}

// Provider opens SQLite connection sources.
type Provider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates the SQLite provider. SQLite supports savepoints inside an open
// transaction, so nested savepoints default to enabled.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{BaseProvider: gormadapter.NewBaseProvider(cfg, DBType, true)}
}
