package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/config"
	coremetrics "github.com/tigerroll/surfin-persistence/pkg/persistence/core/metrics"
	inframetrics "github.com/tigerroll/surfin-persistence/pkg/persistence/infrastructure/metrics"
)

func resolve(t *testing.T, backend string) (coremetrics.TransactionRecorder, coremetrics.Tracer) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Persistence.Metrics.Backend = backend

	var recorder coremetrics.TransactionRecorder
	var tracer coremetrics.Tracer
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		coremetrics.Module,
		inframetrics.Module,
		fx.Populate(&recorder, &tracer),
	)
	require.NoError(t, app.Err())
	return recorder, tracer
}

func TestModule_SelectsBackend(t *testing.T) {
	recorder, tracer := resolve(t, config.MetricsBackendNone)
	assert.IsType(t, &coremetrics.NoOpTransactionRecorder{}, recorder)
	assert.IsType(t, &coremetrics.NoOpTracer{}, tracer)

	recorder, tracer = resolve(t, config.MetricsBackendPrometheus)
	assert.IsType(t, &inframetrics.PrometheusRecorder{}, recorder)
	assert.IsType(t, &coremetrics.NoOpTracer{}, tracer)

	recorder, tracer = resolve(t, config.MetricsBackendOTel)
	assert.IsType(t, &inframetrics.OpenTelemetryRecorder{}, recorder)
	assert.IsType(t, &inframetrics.OpenTelemetryTracer{}, tracer)
}
