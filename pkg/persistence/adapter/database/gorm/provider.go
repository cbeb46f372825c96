// Package gorm opens named databases through gorm dialectors and exposes each one as a
// database.ConnectionSource. Concrete dialects register themselves from the sqlite, mysql and
// postgres sub-packages.
package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	dbconfig "github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/config"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/sqldb"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/config"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/configbinder"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

const moduleName = "gorm"

// DialectorFactory generates a gorm.Dialector from a dbconfig.DatabaseConfig.
type DialectorFactory func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory corresponding to the specified DB type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s", dbType)
	}
	return factory, nil
}

// Source is a connection source over a gorm-managed pool.
type Source struct {
	*sqldb.Source
	gormDB *gorm.DB
	cfg    dbconfig.DatabaseConfig
}

// Gorm returns the pool-level *gorm.DB. Statements issued through it do not join a transaction;
// use Session for that.
func (s *Source) Gorm() *gorm.DB { return s.gormDB }

// Config returns the database configuration of the source.
func (s *Source) Config() dbconfig.DatabaseConfig { return s.cfg }

// Session returns a *gorm.DB bound to conn, so gorm statements run inside the transaction
// currently open on it.
func (s *Source) Session(ctx context.Context, conn database.Connection) (*gorm.DB, error) {
	return Bind(ctx, s.gormDB, conn)
}

// BaseProvider provides common functionality for ConnectionSourceProvider implementations.
type BaseProvider struct {
	cfg    *config.Config
	dbType string
	// nestedDefault applies when a database entry does not set nested_savepoints.
	nestedDefault bool

	sources map[string]*Source
	mu      sync.RWMutex
}

// NewBaseProvider creates a new BaseProvider.
func NewBaseProvider(cfg *config.Config, dbType string, nestedDefault bool) *BaseProvider {
	return &BaseProvider{
		cfg:           cfg,
		dbType:        dbType,
		nestedDefault: nestedDefault,
		sources:       make(map[string]*Source),
	}
}

// Type returns the database type.
func (p *BaseProvider) Type() string {
	return p.dbType
}

// ConnectionSource implements database.ConnectionSourceProvider.
func (p *BaseProvider) ConnectionSource(ctx context.Context, name string) (database.ConnectionSource, error) {
	return p.Open(name)
}

// Open retrieves an existing source or opens a new one.
func (p *BaseProvider) Open(name string) (*Source, error) {
	p.mu.RLock()
	src, ok := p.sources[name]
	p.mu.RUnlock()
	if ok {
		return src, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if src, ok = p.sources[name]; ok {
		return src, nil
	}

	dbCfg, err := DecodeDatabaseConfig(p.cfg, name)
	if err != nil {
		return nil, err
	}
	if dbCfg.Type != p.dbType {
		return nil, exception.NewIllegalArgumentError(moduleName,
			fmt.Sprintf("provider type mismatch: expected '%s', got '%s' for connection '%s'", p.dbType, dbCfg.Type, name))
	}

	gormDB, err := p.connect(dbCfg)
	if err != nil {
		return nil, err
	}
	src, err = NewSource(name, gormDB, dbCfg, p.nestedDefault)
	if err != nil {
		return nil, err
	}
	p.sources[name] = src
	logger.Infof("Established new connection source: %s (%s)", name, p.dbType)
	return src, nil
}

// NewSource wraps an opened *gorm.DB.
func NewSource(name string, gormDB *gorm.DB, dbCfg dbconfig.DatabaseConfig, nestedDefault bool) (*Source, error) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, exception.NewSQLError(moduleName, "failed to get underlying sql.DB", err)
	}
	nested := nestedDefault
	if dbCfg.NestedSavepoints != nil {
		nested = *dbCfg.NestedSavepoints
	}
	isolation, err := isolationLevel(dbCfg.Isolation)
	if err != nil {
		return nil, err
	}
	opts := []sqldb.SourceOption{sqldb.WithName(name), sqldb.WithNestedSavepoints(nested)}
	if isolation != sql.LevelDefault {
		opts = append(opts, sqldb.WithTxOptions(&sql.TxOptions{Isolation: isolation}))
	}
	return &Source{Source: sqldb.NewSource(sqlDB, opts...), gormDB: gormDB, cfg: dbCfg}, nil
}

// DecodeDatabaseConfig decodes the raw "database.<name>" entry of cfg.
func DecodeDatabaseConfig(cfg *config.Config, name string) (dbconfig.DatabaseConfig, error) {
	var dbCfg dbconfig.DatabaseConfig
	raw, ok := cfg.Persistence.AdapterConfigs[name]
	if !ok {
		return dbCfg, exception.NewIllegalArgumentError(moduleName,
			fmt.Sprintf("database configuration '%s' not found", name))
	}
	if err := configbinder.BindProperties(raw, &dbCfg); err != nil {
		return dbCfg, exception.NewPersistenceError(moduleName, fmt.Sprintf("failed to decode database config for '%s'", name), err)
	}
	return dbCfg, nil
}

func isolationLevel(name string) (sql.IsolationLevel, error) {
	switch strings.ToLower(name) {
	case "":
		return sql.LevelDefault, nil
	case "read_uncommitted":
		return sql.LevelReadUncommitted, nil
	case "read_committed":
		return sql.LevelReadCommitted, nil
	case "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	default:
		return sql.LevelDefault, exception.NewIllegalArgumentError(moduleName, fmt.Sprintf("unknown isolation level '%s'", name))
	}
}

// connect establishes a gorm connection based on DatabaseConfig.
func (p *BaseProvider) connect(dbCfg dbconfig.DatabaseConfig) (*gorm.DB, error) {
	dialectorFactory, err := GetDialectorFactory(dbCfg.Type)
	if err != nil {
		return nil, exception.NewPersistenceError(moduleName, "failed to get dialector factory", err)
	}
	dialector, err := dialectorFactory(dbCfg)
	if err != nil {
		return nil, exception.NewPersistenceError(moduleName, fmt.Sprintf("failed to create dialector for %s", dbCfg.Type), err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 NewGormLogger(p.cfg.Persistence.System.Logging.Level),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, exception.NewSQLError(moduleName, "failed to open gorm connection", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, exception.NewSQLError(moduleName, "failed to get underlying sql.DB", err)
	}
	if dbCfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbCfg.Pool.MaxOpenConns)
	}
	if dbCfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbCfg.Pool.MaxIdleConns)
	}
	if dbCfg.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbCfg.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}

// CloseAll closes all sources managed by this provider.
func (p *BaseProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result *multierror.Error
	for name, src := range p.sources {
		if err := src.Close(); err != nil {
			logger.Errorf("Failed to close connection source '%s': %v", name, err)
			result = multierror.Append(result, err)
		}
		delete(p.sources, name)
	}
	return result.ErrorOrNil()
}

var _ database.ConnectionSourceProvider = (*BaseProvider)(nil)
