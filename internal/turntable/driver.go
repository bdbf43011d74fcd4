package turntable

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/ugoku-core/internal/device"
)

// ErrInvalidSpeed is returned for a non-positive rotation speed.
var ErrInvalidSpeed = errors.New("turntable: speed must be positive")

// Logger defines the logging interface used by the Driver.
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

// Link is the serial connection a Driver writes frames to.
// *transport.Serial satisfies it.
type Link interface {
	Open() error
	Send(frame []byte) error
	Close() error
}

// Driver controls one turntable. It keeps no position state: every move is
// relative to wherever the table currently is.
//
// Thread Safety:
//   - All methods are safe for concurrent use; moves are serialised.
type Driver struct {
	tt     *device.Turntable
	link   Link
	settle bool
	sleep  func(ctx context.Context, d time.Duration) bool
	logger Logger

	mu sync.Mutex
}

// NewDriver creates a driver. When settle is true, Turn blocks for the time
// the move takes at the configured speed.
func NewDriver(tt *device.Turntable, link Link, settle bool) *Driver {
	return &Driver{
		tt:     tt,
		link:   link,
		settle: settle,
		sleep:  sleep,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the driver.
func (d *Driver) SetLogger(logger Logger) {
	d.logger = logger
}

// Turntable returns the device handle this driver controls.
func (d *Driver) Turntable() *device.Turntable {
	return d.tt
}

// Init opens the port and puts the motor in a known state: LED off (it
// shows up in photos), motion disabled, speed set, no acceleration curve.
func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.link.Open(); err != nil {
		return fmt.Errorf("turntable %s: %w", d.tt.ID, err)
	}

	frames := [][]byte{
		SetLEDFrame(ledOff, 0, 0, 0),
		DisableActionFrame(),
		SetSpeedFrame(RPMToRadPerSec(float64(d.tt.SpeedRPM()))),
		SetCurveTypeFrame(0),
	}
	for _, f := range frames {
		if err := d.link.Send(f); err != nil {
			return fmt.Errorf("turntable %s: init: %w", d.tt.ID, err)
		}
	}

	d.logger.Info("turntable initialised", "turntable", d.tt.ID, "port", d.tt.Port, "rpm", d.tt.SpeedRPM())
	return nil
}

// Turn rotates by degrees relative to the current position. Clockwise is a
// negative distance on the motor.
//
// With settle enabled Turn then waits for the move to finish. Cancelling ctx
// cuts that wait short but is not an error: the frames were sent and the
// table keeps moving, so the caller sees a completed move and stops at its
// next safe point.
func (d *Driver) Turn(ctx context.Context, clockwise bool, degrees int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	deg := float64(degrees)
	if clockwise {
		deg = -deg
	}

	if err := d.link.Send(EnableActionFrame()); err != nil {
		return fmt.Errorf("turntable %s: enable: %w", d.tt.ID, err)
	}
	if err := d.link.Send(MoveByDistFrame(DegToRad(deg))); err != nil {
		return fmt.Errorf("turntable %s: move: %w", d.tt.ID, err)
	}

	rpm := d.tt.SpeedRPM()
	wait := time.Duration(SettleTime(deg, rpm) * float64(time.Second))
	if d.settle && wait > 0 && !d.sleep(ctx, wait) {
		d.logger.Warn("turntable settle interrupted, table may still be moving",
			"turntable", d.tt.ID,
			"degrees", degrees,
			"settle", wait,
		)
	}

	direction := "counter-clockwise"
	if clockwise {
		direction = "clockwise"
	}
	d.logger.Info("turntable turned",
		"turntable", d.tt.ID,
		"degrees", degrees,
		"direction", direction,
		"rpm", rpm,
		"settle", wait,
	)
	return nil
}

// SetSpeed changes the rotation speed and records it on the handle so later
// settle waits use the new value.
func (d *Driver) SetSpeed(rpm int) error {
	if rpm <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSpeed, rpm)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.link.Send(SetSpeedFrame(RPMToRadPerSec(float64(rpm)))); err != nil {
		return fmt.Errorf("turntable %s: set speed: %w", d.tt.ID, err)
	}
	d.tt.SetSpeedRPM(rpm)
	d.logger.Info("turntable speed set", "turntable", d.tt.ID, "rpm", rpm)
	return nil
}

// Close disables motion and closes the port. The disable is best effort.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.link.Send(DisableActionFrame()); err != nil {
		d.logger.Warn("turntable disable on close failed", "turntable", d.tt.ID, "error", err)
	}
	return d.link.Close()
}

// sleep waits for dur and reports whether it ran to the end.
func sleep(ctx context.Context, dur time.Duration) bool {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
