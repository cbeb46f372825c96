package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/sqldb"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
)

type executorProvider interface {
	Executor() sqldb.Executor
}

// Bind returns a session of db whose statements run on conn's current executor.
// The session captures the executor at call time: bind again after toggling auto-commit.
func Bind(ctx context.Context, db *gorm.DB, conn database.Connection) (*gorm.DB, error) {
	ep, ok := conn.(executorProvider)
	if !ok {
		return nil, exception.NewPersistenceError(moduleName,
			fmt.Sprintf("connection type %T cannot be bound to gorm", conn), exception.ErrUnsupportedOperation)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// a non-nil Context makes gorm clone the statement, so the pool-level db is left untouched
	session := db.Session(&gorm.Session{Context: ctx, NewDB: true, SkipDefaultTransaction: true})
	session.Statement.ConnPool = ep.Executor()
	return session, nil
}
