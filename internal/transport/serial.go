package transport

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Port is an open serial link.
type Port interface {
	io.Writer
	Close() error
}

// Opener opens the named serial port at the given baud rate.
type Opener func(name string, baud int) (Port, error)

// Serial sends turntable commands over a serial port.
//
// Every open and write runs behind a timeout boundary: the underlying driver
// can block forever on a wedged USB adapter, so the call runs in its own
// goroutine and Serial stops waiting once the timeout elapses. A call that
// timed out leaves the port marked broken; all later calls fail fast with
// ErrPortBroken. Every failure is Fatal, turntable commands are never retried.
//
// Thread Safety:
//   - All methods are safe for concurrent use; commands are serialised.
type Serial struct {
	name    string
	baud    int
	timeout time.Duration
	open    Opener

	mu     sync.Mutex
	port   Port
	broken bool
}

// NewSerial creates a serial transport. The port is not opened until Open.
func NewSerial(name string, baud int, timeout time.Duration, open Opener) *Serial {
	return &Serial{
		name:    name,
		baud:    baud,
		timeout: timeout,
		open:    open,
	}
}

// Name returns the serial port name.
func (s *Serial) Name() string {
	return s.name
}

// Open opens the port, closing any previous connection first.
func (s *Serial) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := s.op()
	if s.broken {
		return Fatal(op, ErrPortBroken)
	}
	if s.port != nil {
		_ = s.port.Close() //nolint:errcheck // reconnecting, old handle is discarded
		s.port = nil
	}

	var port Port
	err := s.bounded(func() error {
		p, err := s.open(s.name, s.baud)
		port = p
		return err
	}, func() {
		// An open that finally succeeds after the boundary is not ours to keep.
		if port != nil {
			_ = port.Close() //nolint:errcheck // abandoned handle
		}
	})
	if err != nil {
		return Fatal(op, fmt.Errorf("opening port: %w", err))
	}
	s.port = port
	return nil
}

// Send writes one command frame.
func (s *Serial) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := s.op()
	if s.broken {
		return Fatal(op, ErrPortBroken)
	}
	if s.port == nil {
		return Fatal(op, ErrNotOpen)
	}

	port := s.port
	err := s.bounded(func() error {
		n, err := port.Write(frame)
		if err == nil && n != len(frame) {
			err = io.ErrShortWrite
		}
		return err
	}, nil)
	if err != nil {
		return Fatal(op, err)
	}
	return nil
}

// Close closes the port. It is safe to call on a port that was never opened.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// bounded runs fn and waits at most s.timeout for it. On timeout the port
// is marked broken and fn is abandoned; if late is non-nil it runs once fn
// eventually returns, so a result that arrives too late can be released.
// Callers hold s.mu.
func (s *Serial) bounded(fn func() error, late func()) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		s.broken = true
		if late != nil {
			go func() {
				<-done
				late()
			}()
		}
		return fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
	}
}

func (s *Serial) op() string {
	return "serial " + s.name
}
