// Package metrics provides the Prometheus and OpenTelemetry backends of the transaction
// recorder and tracer.
package metrics

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/config"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/metrics"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

// RecorderParams defines the dependencies for DecorateRecorder.
type RecorderParams struct {
	fx.In
	Cfg           *config.Config
	Base          metrics.TransactionRecorder
	Prometheus    *PrometheusRecorder
	MeterProvider metric.MeterProvider `optional:"true"`
}

// NewPrometheusRecorderProvider creates the PrometheusRecorder under the configured namespace.
func NewPrometheusRecorderProvider(cfg *config.Config) *PrometheusRecorder {
	return NewPrometheusRecorder(cfg.Persistence.Metrics.Namespace)
}

// DecorateRecorder replaces the NoOp recorder according to persistence.metrics.backend.
func DecorateRecorder(p RecorderParams) (metrics.TransactionRecorder, error) {
	switch p.Cfg.Persistence.Metrics.Backend {
	case config.MetricsBackendPrometheus:
		logger.Infof("Metrics: using Prometheus recorder (namespace '%s').", p.Cfg.Persistence.Metrics.Namespace)
		return p.Prometheus, nil
	case config.MetricsBackendOTel:
		logger.Infof("Metrics: using OpenTelemetry recorder (namespace '%s').", p.Cfg.Persistence.Metrics.Namespace)
		return NewOpenTelemetryRecorder(p.MeterProvider, p.Cfg.Persistence.Metrics.Namespace)
	default:
		return p.Base, nil
	}
}

// TracerParams defines the dependencies for DecorateTracer.
type TracerParams struct {
	fx.In
	Cfg            *config.Config
	Base           metrics.Tracer
	TracerProvider trace.TracerProvider `optional:"true"`
}

// DecorateTracer replaces the NoOp tracer with the OpenTelemetry tracer when the otel backend is selected.
func DecorateTracer(p TracerParams) metrics.Tracer {
	if p.Cfg.Persistence.Metrics.Backend != config.MetricsBackendOTel {
		return p.Base
	}
	if p.TracerProvider != nil {
		return NewOpenTelemetryTracerWithProvider(p.TracerProvider)
	}
	return NewOpenTelemetryTracer()
}

// Module decorates the core recorder and tracer. It must be used together with core/metrics.Module.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorderProvider),
	fx.Decorate(DecorateRecorder),
	fx.Decorate(DecorateTracer),
)
