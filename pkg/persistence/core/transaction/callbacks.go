package transaction

import (
	"context"
	"fmt"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
)

// PreCommit runs right before the physical commit. Returning false vetoes the commit.
// A returned error vetoes the commit as well, unless it is marked with exception.NewFault,
// in which case it propagates from Commit unchanged. A panic also propagates unchanged.
type PreCommit func(ctx context.Context, conn database.Connection) (bool, error)

// PostCommit runs after the physical commit or rollback. Its outcome is logged only.
type PostCommit func(ctx context.Context) (bool, error)

// PreCommitDecision is the closed set of pre-commit results.
type PreCommitDecision int

const (
	// Proceed means the callback returned true.
	Proceed PreCommitDecision = iota
	// Decline means the callback returned false without an error.
	Decline
	// Failed means the callback returned a classified error.
	Failed
	// Unexpected means the callback returned a fault or panicked.
	Unexpected
)

func (d PreCommitDecision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Decline:
		return "declined"
	case Failed:
		return "failed"
	case Unexpected:
		return "unexpected"
	default:
		return fmt.Sprintf("PreCommitDecision(%d)", int(d))
	}
}

// PreCommitOutcome is computed once per callback invocation.
type PreCommitOutcome struct {
	Decision PreCommitDecision
	// Kind classifies Cause or Fault.
	Kind exception.Kind
	// Cause is set for Failed.
	Cause error
	// Fault is set for Unexpected when the callback returned a fault error.
	Fault error
	// Panic holds the recovered value for Unexpected when the callback panicked.
	Panic    interface{}
	panicked bool
}

// RollbackRequired reports whether the transaction must be rolled back instead of committed.
func (o PreCommitOutcome) RollbackRequired() bool {
	return o.Decision != Proceed
}

// Panicked reports whether the callback panicked.
func (o PreCommitOutcome) Panicked() bool {
	return o.panicked
}

func (o PreCommitOutcome) reason() string {
	if o.Decision == Decline {
		return Decline.String()
	}
	return o.Kind.String()
}

func runPreCommit(ctx context.Context, cb PreCommit, conn database.Connection) (out PreCommitOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = PreCommitOutcome{Decision: Unexpected, Kind: exception.KindUnexpected, Panic: r, panicked: true}
		}
	}()

	ok, err := cb(ctx, conn)
	kind := exception.Classify(err)
	switch {
	case kind == exception.KindNone && ok:
		return PreCommitOutcome{Decision: Proceed, Kind: kind}
	case kind == exception.KindNone:
		return PreCommitOutcome{Decision: Decline, Kind: kind}
	case kind.Classified():
		return PreCommitOutcome{Decision: Failed, Kind: kind, Cause: err}
	default:
		return PreCommitOutcome{Decision: Unexpected, Kind: kind, Fault: err}
	}
}

// PostCommitOutcome records what the post-commit callback did.
type PostCommitOutcome struct {
	// Declined is true when the callback returned false without an error.
	Declined bool
	Kind     exception.Kind
	Cause    error
	Panic    interface{}
}

// Failed reports whether the outcome is worth logging.
func (o PostCommitOutcome) Failed() bool {
	return o.Declined || o.Cause != nil || o.Panic != nil
}

// Detail renders the outcome for logs.
func (o PostCommitOutcome) Detail() string {
	switch {
	case o.Panic != nil:
		return fmt.Sprintf("post commit operation panicked: %v", o.Panic)
	case o.Cause != nil:
		return fmt.Sprintf("post commit operation failed (%s): %s", o.Kind, o.Cause.Error())
	case o.Declined:
		return "post commit operation returned false"
	default:
		return "post commit operation succeeded"
	}
}

func runPostCommit(ctx context.Context, cb PostCommit) (out PostCommitOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = PostCommitOutcome{Kind: exception.KindUnexpected, Panic: r}
		}
	}()

	ok, err := cb(ctx)
	if err != nil {
		return PostCommitOutcome{Kind: exception.Classify(err), Cause: err}
	}
	return PostCommitOutcome{Declined: !ok}
}
