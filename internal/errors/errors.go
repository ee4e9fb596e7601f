package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/leaderreps/leaderreps/internal/logger"
)

// Kind classifies failures of the rollover subsystem.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransient is a store read/write failure. The operation is abandoned
	// for this cycle and retried on the next natural trigger.
	KindTransient
	// KindDataShape is a malformed or incomplete document that was repaired.
	KindDataShape
	// KindConsistency is an internal invariant violation inside a pure
	// computation. The caller receives a best-effort fallback value.
	KindConsistency
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindDataShape:
		return "data-shape"
	case KindConsistency:
		return "consistency"
	default:
		return "unknown"
	}
}

// Error carries a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps a store failure.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// DataShape wraps a document anomaly.
func DataShape(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindDataShape, Op: op, Err: err}
}

// Consistency wraps an internal invariant violation.
func Consistency(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindConsistency, Op: op, Err: err}
}

// KindOf returns the Kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Report logs err at a level matching its Kind. Nothing in this subsystem
// is surfaced to the end user, so Report is the terminal handler.
func Report(err error, keyvals ...interface{}) {
	if err == nil {
		return
	}
	kv := append([]interface{}{"kind", KindOf(err).String(), "error", err}, keyvals...)
	switch KindOf(err) {
	case KindDataShape:
		logger.Warn("Recovered malformed document", kv...)
	case KindConsistency:
		logger.Error("Internal consistency violation", kv...)
	default:
		logger.Warn("Operation abandoned for this cycle", kv...)
	}
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
