package metrics

import (
	"context"
	"time"
)

// NoOpTransactionRecorder is an implementation of TransactionRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpTransactionRecorder struct{}

// NewNoOpTransactionRecorder creates a new instance of NoOpTransactionRecorder.
func NewNoOpTransactionRecorder() TransactionRecorder {
	return &NoOpTransactionRecorder{}
}

func (r *NoOpTransactionRecorder) RecordBegin(ctx context.Context)                    {}
func (r *NoOpTransactionRecorder) RecordCommit(ctx context.Context, success bool)     {}
func (r *NoOpTransactionRecorder) RecordRollback(ctx context.Context, reason string) {}
func (r *NoOpTransactionRecorder) RecordCallbackFailure(ctx context.Context, phase string, reason string) {
}
func (r *NoOpTransactionRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ TransactionRecorder = (*NoOpTransactionRecorder)(nil)

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartTransactionSpan returns ctx unchanged.
func (t *NoOpTracer) StartTransactionSpan(ctx context.Context, operation string, transactionID int64) (context.Context, func()) {
	return ctx, func() {}
}

// RecordError does nothing.
func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

// RecordEvent does nothing.
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {}

var _ Tracer = (*NoOpTracer)(nil)
