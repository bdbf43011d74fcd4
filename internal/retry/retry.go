package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/ugoku-core/internal/transport"
)

// Sentinel errors returned by Executor.Do.
var (
	// ErrRetriesExhausted is matched by *ExhaustedError.
	ErrRetriesExhausted = errors.New("retry: retries exhausted")

	// ErrFatal wraps a transport failure that must not be repeated.
	ErrFatal = errors.New("retry: fatal failure")

	// ErrCancelled indicates the parent context ended between attempts.
	ErrCancelled = errors.New("retry: cancelled")
)

// Policy bounds a retried call.
type Policy struct {
	// Attempts is the maximum number of calls, including the first. Values
	// below 1 are treated as 1.
	Attempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration

	// Timeout bounds each attempt. Zero means no per-attempt deadline.
	Timeout time.Duration
}

// ExhaustedError reports that every attempt failed with a retryable error.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error // last attempt's failure
}

func (e *ExhaustedError) Error() string {
	if e == nil {
		return "retries exhausted"
	}
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches ErrRetriesExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// Logger defines the logging interface used by the Executor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AttemptObserver is notified after every attempt.
type AttemptObserver interface {
	ObserveAttempt(kind string, outcome transport.Outcome, elapsed time.Duration)
}

// Executor wraps a single-shot call with bounded, fixed-delay retries.
//
// Each attempt runs under a context that ignores the caller's cancellation
// but carries the per-attempt timeout: a stop request never severs a
// request already on the wire. Cancellation is honoured before an attempt
// starts and during the delay between attempts.
type Executor struct {
	logger   Logger
	observer AttemptObserver
	wait     func(ctx context.Context, d time.Duration) error
}

// New creates an Executor.
func New() *Executor {
	return &Executor{
		logger: noopLogger{},
		wait:   sleep,
	}
}

// SetLogger sets the logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	e.logger = logger
}

// SetObserver sets the attempt observer, typically a metrics recorder.
func (e *Executor) SetObserver(o AttemptObserver) {
	e.observer = o
}

// Do calls fn until it succeeds, fails fatally, or the policy's attempts run out.
//
// Returns:
//   - nil on the first successful attempt
//   - an error wrapping ErrFatal (and the transport error) on a fatal failure
//   - *ExhaustedError when every attempt was retryable
//   - an error wrapping ErrCancelled when ctx ends before or between attempts
func (e *Executor) Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %s before attempt %d: %w", ErrCancelled, op, attempt, err)
		}

		start := time.Now()
		err := e.attempt(ctx, p.Timeout, fn)
		outcome := transport.OutcomeOf(err)
		if e.observer != nil {
			e.observer.ObserveAttempt("http", outcome, time.Since(start))
		}

		switch outcome {
		case transport.OutcomeOK:
			if attempt > 1 {
				e.logger.Info("request succeeded after retry", "op", op, "attempt", attempt)
			}
			return nil
		case transport.OutcomeFatal:
			e.logger.Error("request failed", "op", op, "attempt", attempt, "error", err)
			return fmt.Errorf("%w: %w", ErrFatal, err)
		}

		lastErr = err
		e.logger.Warn("request failed, retrying",
			"op", op,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)

		if attempt == attempts {
			break
		}
		if err := e.wait(ctx, p.Delay); err != nil {
			return fmt.Errorf("%w: %s after attempt %d: %w", ErrCancelled, op, attempt, err)
		}
	}

	e.logger.Error("retries exhausted", "op", op, "attempts", attempts, "error", lastErr)
	return &ExhaustedError{Op: op, Attempts: attempts, Err: lastErr}
}

func (e *Executor) attempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	actx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(actx, timeout)
		defer cancel()
	}
	return fn(actx)
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
