package main

import (
	"context"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-persistence/example/ledger/internal/app"
	"github.com/tigerroll/surfin-persistence/example/ledger/internal/service"
	gormadapter "github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/gorm"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/gorm/mysql"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/gorm/postgres"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/gorm/sqlite"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/config"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/metrics"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/transaction"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/tx"
	inframetrics "github.com/tigerroll/surfin-persistence/pkg/persistence/infrastructure/metrics"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/infrastructure/telemetry"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

// providerModules maps the DB_ADAPTORS names onto the dialect provider modules.
var providerModules = map[string]fx.Option{
	"sqlite":   sqlite.Module,
	"mysql":    mysql.Module,
	"postgres": postgres.Module,
}

// getDBProviderOptions selects the dialect providers listed in DB_ADAPTORS (comma separated).
// SQLite alone is used when the variable is unset.
func getDBProviderOptions() []fx.Option {
	adaptors := os.Getenv("DB_ADAPTORS")
	if adaptors == "" {
		adaptors = "sqlite"
	}

	options := make([]fx.Option, 0)
	for _, name := range strings.Split(adaptors, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if module, ok := providerModules[name]; ok {
			options = append(options, module)
			logger.Debugf("DB Provider '%s' selected and registered.", name)
		} else {
			logger.Warnf("DB Provider '%s' is configured but not recognized/supported. Skipping.", name)
		}
	}
	return options
}

// GetApplicationOptions builds the fx options of the ledger application.
func GetApplicationOptions(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, migrationsFS fs.FS) []fx.Option {
	var options []fx.Option

	options = append(options, fx.Supply(
		embeddedConfig,
		fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		fx.Annotate(migrationsFS, fx.As(new(fs.FS)), fx.ResultTags(`name:"ledgerMigrationsFS"`)),
		fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
	))
	options = append(options, logger.Module)
	options = append(options, config.Module)
	options = append(options, telemetry.Module)
	options = append(options, metrics.Module)
	options = append(options, inframetrics.Module)
	options = append(options, getDBProviderOptions()...)
	options = append(options, gormadapter.Module)
	options = append(options, tx.Module)
	options = append(options, transaction.Module)
	options = append(options, service.Module)
	options = append(options, app.Module)
	options = append(options, app.RunnerModule)
	return options
}
