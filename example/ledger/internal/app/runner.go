package app

import (
	"context"
	"errors"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-persistence/example/ledger/internal/service"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

// RunnerParams defines the dependencies for StartDemo.
type RunnerParams struct {
	fx.In
	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Service    *service.TransferService
	AppCtx     context.Context `name:"appCtx"`
}

// StartDemo registers a hook that runs a deposit and two transfers after the schema is in place,
// then requests shutdown.
func StartDemo(p RunnerParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("Panic recovered in ledger demo: %v", r)
					}
					if err := p.Shutdowner.Shutdown(); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()
				runDemo(p.AppCtx, p.Service)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
}

func runDemo(ctx context.Context, svc *service.TransferService) {
	if err := svc.Deposit(ctx, "alice", 100); err != nil {
		logger.Errorf("Deposit failed: %v", err)
		return
	}

	transferID, err := svc.Transfer(ctx, "alice", "bob", 30)
	if err != nil {
		logger.Errorf("Transfer failed: %v", err)
		return
	}
	logger.Infof("Transfer %s committed.", transferID)

	if _, err := svc.Transfer(ctx, "bob", "alice", 500); errors.Is(err, service.ErrInsufficientFunds) {
		logger.Warnf("Transfer rejected as expected: %v", err)
	} else if err != nil {
		logger.Errorf("Transfer failed: %v", err)
	}

	for _, account := range []string{"alice", "bob"} {
		balance, err := svc.Balance(ctx, account)
		if err != nil {
			logger.Errorf("Balance of '%s' failed: %v", account, err)
			continue
		}
		logger.Infof("Balance of '%s': %d", account, balance)
	}
}

// RunnerModule runs the demo once the application has started.
var RunnerModule = fx.Options(
	fx.Invoke(StartDemo),
)
