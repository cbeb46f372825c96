// Package metrics defines the observability abstractions used by the transaction layer.
package metrics

import (
	"context"
	"time"
)

// TransactionRecorder is an abstract interface for recording transaction metrics.
// It lets Prometheus and OpenTelemetry backends be swapped without touching the transaction code.
type TransactionRecorder interface {
	// RecordBegin records that a transaction was started.
	RecordBegin(ctx context.Context)

	// RecordCommit records a physical commit.
	//
	// ctx: The context for the operation.
	// success: false when the driver commit failed.
	RecordCommit(ctx context.Context, success bool)

	// RecordRollback records a physical rollback.
	//
	// ctx: The context for the operation.
	// reason: Why the rollback happened (e.g., "rollback_only", "pre_commit_declined", "explicit").
	RecordRollback(ctx context.Context, reason string)

	// RecordCallbackFailure records a failed pre- or post-commit callback.
	//
	// phase: "pre_commit" or "post_commit".
	// reason: The failure classification (e.g., "declined", "illegal_argument").
	RecordCallbackFailure(ctx context.Context, phase string, reason string)

	// RecordDuration records the duration of a named operation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
