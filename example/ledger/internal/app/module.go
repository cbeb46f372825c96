// Package app wires the ledger example: schema migration on start, the optional Prometheus
// endpoint and the demo run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	gormadapter "github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/gorm"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/config"
	inframetrics "github.com/tigerroll/surfin-persistence/pkg/persistence/infrastructure/metrics"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/migration"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

const moduleName = "ledger_app"

// MigrationsPath is the directory of the migration files inside the embedded FS.
const MigrationsPath = "resources/migrations"

// MigrationParams defines the dependencies for RunMigrations.
type MigrationParams struct {
	fx.In
	Lifecycle    fx.Lifecycle
	Source       database.ConnectionSource
	MigrationsFS fs.FS `name:"ledgerMigrationsFS"`
}

// RunMigrations applies the ledger schema before the application starts.
func RunMigrations(p MigrationParams) error {
	gormSrc, ok := p.Source.(*gormadapter.Source)
	if !ok {
		return exception.NewPersistenceError(moduleName,
			fmt.Sprintf("connection source %T is not gorm-backed", p.Source), exception.ErrUnsupportedOperation)
	}
	migrator := migration.NewMigrator(gormSrc.DB(), gormSrc.Config().Type, "")
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := migrator.Up(ctx, p.MigrationsFS, MigrationsPath); err != nil {
				return err
			}
			if version, dirty, ok, err := migrator.Version(p.MigrationsFS, MigrationsPath); err == nil && ok {
				logger.Infof("Ledger schema at version %d (dirty: %t).", version, dirty)
			}
			return nil
		},
	})
	return nil
}

// MetricsServerParams defines the dependencies for StartMetricsServer.
type MetricsServerParams struct {
	fx.In
	Lifecycle  fx.Lifecycle
	Cfg        *config.Config
	Prometheus *inframetrics.PrometheusRecorder
}

// StartMetricsServer serves /metrics on LEDGER_METRICS_ADDR when the Prometheus backend is selected.
func StartMetricsServer(p MetricsServerParams) {
	addr := os.Getenv("LEDGER_METRICS_ADDR")
	if addr == "" || p.Cfg.Persistence.Metrics.Backend != config.MetricsBackendPrometheus {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.Prometheus.GetRegistry(), promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Metrics server stopped: %v", err)
				}
			}()
			logger.Infof("Serving Prometheus metrics on %s/metrics", addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

// Module registers the migration and metrics hooks.
var Module = fx.Options(
	fx.Invoke(RunMigrations),
	fx.Invoke(StartMetricsServer),
)
