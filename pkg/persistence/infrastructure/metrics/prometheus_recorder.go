package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/metrics"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.TransactionRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	beginCounter           prometheus.Counter
	commitCounter          *prometheus.CounterVec
	rollbackCounter        *prometheus.CounterVec
	callbackFailureCounter *prometheus.CounterVec
	durationSeconds        *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder registering its collectors on a private registry.
// Metric names are "<namespace>_transaction_*".
func NewPrometheusRecorder(namespace string) *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		beginCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transaction",
			Name:      "begin_total",
			Help:      "Total number of transactions started.",
		}),
		commitCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transaction",
			Name:      "commit_total",
			Help:      "Total number of physical commits by result.",
		}, []string{"result"}),
		rollbackCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transaction",
			Name:      "rollback_total",
			Help:      "Total number of rollbacks by reason.",
		}, []string{"reason"}),
		callbackFailureCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transaction",
			Name:      "callback_failure_total",
			Help:      "Total number of failed pre/post commit callbacks.",
		}, []string{"phase", "reason"}),
		durationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transaction",
			Name:      "duration_seconds",
			Help:      "Duration of transaction operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name", "outcome"}),
	}

	registry.MustRegister(r.beginCounter)
	registry.MustRegister(r.commitCounter)
	registry.MustRegister(r.rollbackCounter)
	registry.MustRegister(r.callbackFailureCounter)
	registry.MustRegister(r.durationSeconds)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordBegin records the start of a transaction.
func (r *PrometheusRecorder) RecordBegin(ctx context.Context) {
	r.beginCounter.Inc()
}

// RecordCommit records the result of a physical commit.
func (r *PrometheusRecorder) RecordCommit(ctx context.Context, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	r.commitCounter.WithLabelValues(result).Inc()
}

// RecordRollback records a rollback and its reason.
func (r *PrometheusRecorder) RecordRollback(ctx context.Context, reason string) {
	r.rollbackCounter.WithLabelValues(reason).Inc()
	logger.Debugf("Metrics: rollback recorded (%s).", reason)
}

// RecordCallbackFailure records a failed pre-commit or post-commit callback.
func (r *PrometheusRecorder) RecordCallbackFailure(ctx context.Context, phase string, reason string) {
	r.callbackFailureCounter.WithLabelValues(phase, reason).Inc()
}

// RecordDuration records the execution time of a specific operation. Only the "outcome" tag is
// kept as a label.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.durationSeconds.WithLabelValues(name, tags["outcome"]).Observe(duration.Seconds())
}

var _ metrics.TransactionRecorder = (*PrometheusRecorder)(nil)
