package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/metrics"
)

// OpenTelemetryRecorder records transaction metrics through an OpenTelemetry Meter.
type OpenTelemetryRecorder struct {
	begins           metric.Int64Counter
	commits          metric.Int64Counter
	rollbacks        metric.Int64Counter
	callbackFailures metric.Int64Counter
	duration         metric.Float64Histogram
}

// NewOpenTelemetryRecorder creates instruments named "<namespace>.transaction.*" on mp.
func NewOpenTelemetryRecorder(mp metric.MeterProvider, namespace string) (*OpenTelemetryRecorder, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(InstrumentationName)
	prefix := namespace + ".transaction."

	r := &OpenTelemetryRecorder{}
	var err error
	if r.begins, err = meter.Int64Counter(prefix+"begin", metric.WithDescription("Transactions started.")); err != nil {
		return nil, err
	}
	if r.commits, err = meter.Int64Counter(prefix+"commit", metric.WithDescription("Physical commits by result.")); err != nil {
		return nil, err
	}
	if r.rollbacks, err = meter.Int64Counter(prefix+"rollback", metric.WithDescription("Rollbacks by reason.")); err != nil {
		return nil, err
	}
	if r.callbackFailures, err = meter.Int64Counter(prefix+"callback_failure", metric.WithDescription("Failed pre/post commit callbacks.")); err != nil {
		return nil, err
	}
	if r.duration, err = meter.Float64Histogram(prefix+"duration", metric.WithUnit("s"), metric.WithDescription("Duration of transaction operations.")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OpenTelemetryRecorder) RecordBegin(ctx context.Context) {
	r.begins.Add(ctx, 1)
}

func (r *OpenTelemetryRecorder) RecordCommit(ctx context.Context, success bool) {
	r.commits.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func (r *OpenTelemetryRecorder) RecordRollback(ctx context.Context, reason string) {
	r.rollbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *OpenTelemetryRecorder) RecordCallbackFailure(ctx context.Context, phase string, reason string) {
	r.callbackFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("reason", reason),
	))
}

func (r *OpenTelemetryRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("name", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

var _ metrics.TransactionRecorder = (*OpenTelemetryRecorder)(nil)
