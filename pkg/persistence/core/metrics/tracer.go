package metrics

import "context"

// Tracer is an abstract interface for distributed tracing of transaction boundaries.
type Tracer interface {
	// StartTransactionSpan starts a span for one transaction operation.
	//
	// ctx: The parent context.
	// operation: The operation name (e.g., "begin", "commit", "rollback").
	// transactionID: The transaction id, or 0 if not yet known.
	//
	// Returns: A context carrying the span and a function ending it.
	StartTransactionSpan(ctx context.Context, operation string, transactionID int64) (context.Context, func())

	// RecordError records an error in the current span.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
