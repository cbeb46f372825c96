package test

import (
	"context"
	"sync"
	"time"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/metrics"
)

// RecordingTransactionRecorder keeps every recorded event in memory.
type RecordingTransactionRecorder struct {
	mu               sync.Mutex
	Begins           int
	Commits          []bool
	Rollbacks        []string
	CallbackFailures []string // "phase:reason"
	Durations        []string
}

// NewRecordingTransactionRecorder creates an empty RecordingTransactionRecorder.
func NewRecordingTransactionRecorder() *RecordingTransactionRecorder {
	return &RecordingTransactionRecorder{}
}

func (r *RecordingTransactionRecorder) RecordBegin(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Begins++
}

func (r *RecordingTransactionRecorder) RecordCommit(ctx context.Context, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Commits = append(r.Commits, success)
}

func (r *RecordingTransactionRecorder) RecordRollback(ctx context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Rollbacks = append(r.Rollbacks, reason)
}

func (r *RecordingTransactionRecorder) RecordCallbackFailure(ctx context.Context, phase string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CallbackFailures = append(r.CallbackFailures, phase+":"+reason)
}

func (r *RecordingTransactionRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Durations = append(r.Durations, name+":"+tags["outcome"])
}

var _ metrics.TransactionRecorder = (*RecordingTransactionRecorder)(nil)
