package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/config"
)

// Providers exposes the installed providers to the fx graph.
type Providers struct {
	fx.Out
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// NewProviders sets up telemetry from configuration and shuts it down when the application stops.
func NewProviders(lc fx.Lifecycle, cfg *config.Config) (Providers, error) {
	t, err := Setup(context.Background(), cfg.Persistence.Telemetry)
	if err != nil {
		return Providers{}, err
	}
	if t.Enabled() {
		lc.Append(fx.Hook{OnStop: t.Shutdown})
	}
	return Providers{TracerProvider: t.TracerProvider, MeterProvider: t.MeterProvider}, nil
}

// Module provides trace.TracerProvider and metric.MeterProvider.
var Module = fx.Options(
	fx.Provide(NewProviders),
)
