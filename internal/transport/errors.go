package transport

import (
	"errors"
	"fmt"
)

// Outcome classifies the result of a single device call.
type Outcome int

const (
	// OutcomeOK means the device accepted the command.
	OutcomeOK Outcome = iota
	// OutcomeRetryable means the call failed in a way that is safe to repeat.
	OutcomeRetryable
	// OutcomeFatal means the call must not be repeated.
	OutcomeFatal
)

// String returns the lowercase outcome name used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Sentinel causes wrapped inside *Error.
var (
	// ErrStatus indicates the device answered with a non-success HTTP status.
	ErrStatus = errors.New("transport: unexpected status")

	// ErrMalformedRequest indicates the request could not be built or sent as given.
	ErrMalformedRequest = errors.New("transport: malformed request")

	// ErrAmbiguous indicates a non-idempotent request was written but no
	// response arrived, so the device may already have acted.
	ErrAmbiguous = errors.New("transport: request written without response")

	// ErrTimeout indicates a serial command did not complete within its boundary.
	ErrTimeout = errors.New("transport: command timed out")

	// ErrPortBroken indicates a previous serial command timed out and the
	// port can no longer be trusted.
	ErrPortBroken = errors.New("transport: serial port unusable")

	// ErrNotOpen indicates a serial command was sent before Open succeeded.
	ErrNotOpen = errors.New("transport: serial port not open")
)

// Error is a classified transport failure.
type Error struct {
	Outcome Outcome
	Op      string // e.g. "PUT /ccapi/ver100/shooting/settings/av" or "serial /dev/ttyUSB0"
	Status  int    // HTTP status, zero when no response was received
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "transport error"
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Outcome, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Outcome, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable wraps err as a retryable failure of op.
func Retryable(op string, err error) *Error {
	return &Error{Outcome: OutcomeRetryable, Op: op, Err: err}
}

// Fatal wraps err as a fatal failure of op.
func Fatal(op string, err error) *Error {
	return &Error{Outcome: OutcomeFatal, Op: op, Err: err}
}

// OutcomeOf reports how err should be treated by a caller.
// A nil error is OK; an error that carries no classification is Fatal.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Outcome
	}
	return OutcomeFatal
}

// IsRetryable reports whether err is a retryable transport failure.
func IsRetryable(err error) bool {
	return OutcomeOf(err) == OutcomeRetryable
}
