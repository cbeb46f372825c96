package tx

import (
	"context"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

// Callable is work executed on the transaction's connection.
type Callable func(ctx context.Context, conn database.Connection) error

// CallInTransaction runs fn inside a savepoint transaction. The transaction is committed when fn
// returns nil and rolled back when fn returns an error or panics; a panic is re-raised after the
// rollback. The error of fn takes precedence over a rollback error, which is only logged.
//
// fn receives a context holding the transaction's connection, so transactions it starts on the
// same source nest inside this one.
func CallInTransaction(ctx context.Context, factory *TransactionStateFactory, fn Callable) error {
	state, err := factory.TransactionStateInstance(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := state.DoRollback(ctx); rbErr != nil {
				logger.Errorf("Rollback of transaction id %d after panic failed - \"%s\"", state.TransactionID(), rbErr.Error())
			}
			factory.Recorder().RecordRollback(ctx, "panic")
			panic(r)
		}
	}()

	if err := fn(state.Context(ctx), state.Connection()); err != nil {
		if rbErr := state.DoRollback(ctx); rbErr != nil {
			logger.Errorf("Rollback of transaction id %d failed - \"%s\"", state.TransactionID(), rbErr.Error())
		}
		factory.Recorder().RecordRollback(ctx, "callable_failed")
		return err
	}
	return state.DoCommit(ctx)
}
