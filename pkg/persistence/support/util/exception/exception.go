// Package exception provides the error types shared by the persistence layer.
// Errors carry the module where they occurred and are classified into a closed set of kinds
// so transaction callbacks can be triaged with a single dispatch.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// Sentinel errors. Every error produced by this module wraps exactly one of them.
var (
	// ErrSQL marks a failure reported by the database driver.
	ErrSQL = errors.New("sql error")
	// ErrIllegalState marks an operation invoked in the wrong lifecycle state.
	ErrIllegalState = errors.New("illegal state")
	// ErrIllegalArgument marks an invalid argument.
	ErrIllegalArgument = errors.New("illegal argument")
	// ErrUnsupportedOperation marks an operation the component does not implement.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrFault marks a programming fault. Faults are never wrapped by the transaction layer.
	ErrFault = errors.New("unexpected fault")
)

// Kind is the classification of an error.
type Kind int

const (
	// KindNone is returned for a nil error.
	KindNone Kind = iota
	// KindPersistence is a domain persistence error (PersistenceError or ErrSQL).
	KindPersistence
	// KindIllegalArgument wraps ErrIllegalArgument.
	KindIllegalArgument
	// KindIllegalState wraps ErrIllegalState.
	KindIllegalState
	// KindUnsupported wraps ErrUnsupportedOperation.
	KindUnsupported
	// KindChecked is any other returned error.
	KindChecked
	// KindUnexpected is a fault that must propagate unchanged.
	KindUnexpected
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPersistence:
		return "persistence"
	case KindIllegalArgument:
		return "illegal_argument"
	case KindIllegalState:
		return "illegal_state"
	case KindUnsupported:
		return "unsupported"
	case KindChecked:
		return "checked"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Classified reports whether the kind belongs to the set the transaction layer handles itself.
func (k Kind) Classified() bool {
	return k != KindNone && k != KindUnexpected
}

// Classify maps err onto a Kind. Faults are checked first so a fault wrapping a SQL error
// still propagates unchanged.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrFault) {
		return KindUnexpected
	}
	switch {
	case errors.Is(err, ErrIllegalArgument):
		return KindIllegalArgument
	case errors.Is(err, ErrIllegalState):
		return KindIllegalState
	case errors.Is(err, ErrUnsupportedOperation):
		return KindUnsupported
	case errors.Is(err, ErrSQL):
		return KindPersistence
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return KindPersistence
	}
	return KindChecked
}

// PersistenceError is the error type raised by the transaction layer.
type PersistenceError struct {
	// Module indicates where the error occurred (e.g., "tx", "transaction", "sqldb").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped cause, possibly nil.
	OriginalErr error
	// StackTrace is the stack at construction time (for debugging).
	StackTrace string
}

// NewPersistenceError creates a new PersistenceError.
func NewPersistenceError(module, message string, originalErr error) *PersistenceError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return &PersistenceError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  string(buf[:n]),
	}
}

// NewPersistenceErrorf creates a PersistenceError with a formatted message.
// If the last argument is an error it becomes the cause and is not used for formatting.
func NewPersistenceErrorf(module, format string, a ...interface{}) *PersistenceError {
	var cause error
	if len(a) > 0 {
		if err, ok := a[len(a)-1].(error); ok {
			cause = err
			a = a[:len(a)-1]
		}
	}
	return NewPersistenceError(module, fmt.Sprintf(format, a...), cause)
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *PersistenceError) Unwrap() error {
	return e.OriginalErr
}

// NewIllegalStateError creates a PersistenceError wrapping ErrIllegalState.
func NewIllegalStateError(module, message string) *PersistenceError {
	return NewPersistenceError(module, message, ErrIllegalState)
}

// NewIllegalArgumentError creates a PersistenceError wrapping ErrIllegalArgument.
func NewIllegalArgumentError(module, message string) *PersistenceError {
	return NewPersistenceError(module, message, ErrIllegalArgument)
}

// NewSQLError wraps a driver error so that it classifies as a persistence failure.
func NewSQLError(module, message string, driverErr error) *PersistenceError {
	if driverErr == nil {
		return NewPersistenceError(module, message, ErrSQL)
	}
	return NewPersistenceError(module, message, errors.Join(ErrSQL, driverErr))
}

// NewFault marks err as a programming fault that must not be wrapped.
func NewFault(err error) error {
	if err == nil {
		return ErrFault
	}
	return &faultError{err: err}
}

type faultError struct {
	err error
}

func (f *faultError) Error() string { return f.err.Error() }

func (f *faultError) Unwrap() []error { return []error{ErrFault, f.err} }

// IsPersistenceError determines if the given error is a *PersistenceError.
func IsPersistenceError(err error) bool {
	if err == nil {
		return false
	}
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// ExtractErrorMessage returns the Message of a PersistenceError, or err.Error() otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
