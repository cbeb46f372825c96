// Package mysql registers the MySQL dialector and provides its ConnectionSourceProvider.
package mysql

import (
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/config"
	gormadapter "github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/gorm"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/config"
)

// DBType is the configuration type handled by this package.
const DBType = "mysql"

func init() {
	gormadapter.RegisterDialector(DBType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString formats the go-sql-driver DSN for c.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	dsn := gomysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	dsn.DBName = c.Database
	dsn.ParseTime = true
	return dsn.FormatDSN()
}

// Provider opens MySQL connection sources.
type Provider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates the MySQL provider. InnoDB accepts SAVEPOINT inside a transaction.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{BaseProvider: gormadapter.NewBaseProvider(cfg, DBType, true)}
}
