// Package postgres registers the PostgreSQL dialector and provides its ConnectionSourceProvider.
// Redshift connections resolve to this provider as well.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/config"
	gormadapter "github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/gorm"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/config"
)

// DBType is the configuration type handled by this package.
const DBType = "postgres"

func init() {
	gormadapter.RegisterDialector(DBType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the key/value DSN expected by gorm.io/driver/postgres.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.Sslmode)
	if c.Schema != "" {
		dsn += " search_path=" + c.Schema
	}
	return dsn
}

// Provider opens PostgreSQL connection sources.
type Provider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates the PostgreSQL provider.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{BaseProvider: gormadapter.NewBaseProvider(cfg, DBType, true)}
}
