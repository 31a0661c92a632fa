// Package failure defines the error kinds produced while fanning out change events.
// Kinds decide acknowledgement: permanent kinds are reported and dropped,
// retryable kinds leave the delivery unacknowledged so the source redelivers it.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a per-record failure.
type Kind string

const (
	// MalformedSnapshot means a required attribute is missing or has the wrong type.
	MalformedSnapshot Kind = "MalformedSnapshot"
	// UnrecognizedAlertClass means alertClass is not one of the known classes.
	UnrecognizedAlertClass Kind = "UnrecognizedAlertClass"
	// TransportUnavailable is a transient transport failure, including timeouts.
	TransportUnavailable Kind = "TransportUnavailable"
	// Throttled means the transport rejected the call for rate reasons.
	Throttled Kind = "Throttled"
	// InvalidAddress means the transport rejected the address as malformed.
	InvalidAddress Kind = "InvalidAddress"
)

// Retryable reports whether redelivering the record could succeed.
func (k Kind) Retryable() bool {
	return k == TransportUnavailable || k == Throttled
}

func (k Kind) String() string {
	return string(k)
}

// Error carries a Kind together with the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf returns an *Error of the given kind with a formatted cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind of err. Unclassified errors, including context
// deadlines, are TransportUnavailable so the record is redelivered rather
// than dropped.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return TransportUnavailable
}
