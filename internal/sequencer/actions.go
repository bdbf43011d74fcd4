package sequencer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/ugoku-core/internal/camera"
	"github.com/nerrad567/ugoku-core/internal/device"
	"github.com/nerrad567/ugoku-core/internal/task"
	"github.com/nerrad567/ugoku-core/internal/transport"
)

// Action names accepted in the task list.
const (
	ActionGet      = "get"
	ActionPost     = "post"
	ActionPut      = "put"
	ActionDelete   = "delete"
	ActionShutter  = "shutter"
	ActionSettings = "settings"
	ActionCW       = "cw"
	ActionCCW      = "ccw"
	ActionSpeed    = "speed"
	ActionWait     = "wait"
	ActionSleep    = "sleep"
)

// settingActions are the camera setter actions. Each is passed to the camera
// client as a setting name.
var settingActions = map[string]bool{
	"aperture":          true,
	"shutterspeed":      true,
	"shutter_speed":     true,
	"iso":               true,
	"exposure":          true,
	"whitebalance":      true,
	"white_balance":     true,
	"color_temperature": true,
	"colortemperature":  true,
}

// Resolver looks up registered devices. *device.Registry satisfies it.
type Resolver interface {
	Resolve(id string) (device.Handle, error)
}

// CameraClient is what the dispatcher needs from a camera. Commands are
// built first and sent separately so dry runs can stop after building.
// *camera.Client satisfies it.
type CameraClient interface {
	Raw(method, path, payload string) (camera.Command, error)
	Shutter(autofocus bool) (camera.Command, error)
	SetSetting(name, value string) (camera.Command, error)
	RefreshSettings() (camera.Command, error)
	Run(ctx context.Context, cmd camera.Command) (*transport.Response, int, error)
}

// TurntableDriver is what the dispatcher needs from a turntable.
// *turntable.Driver satisfies it.
type TurntableDriver interface {
	Turn(ctx context.Context, clockwise bool, degrees int) error
	SetSpeed(rpm int) error
}

// step is a resolved, fully built task action. A nil send is a no-op.
type step struct {
	send func(ctx context.Context) (attempts int, err error)
}

// build resolves t's target and maps its action to a step. It never touches
// a device, so every error it returns is a resolution error.
func (d *Dispatcher) build(t task.Task) (step, error) {
	if t.Target == device.TargetAll {
		switch t.Action {
		case ActionWait, ActionSleep:
			return step{}, nil
		default:
			return step{}, fmt.Errorf("%w: %q is not allowed for target %q", ErrUnknownAction, t.Action, device.TargetAll)
		}
	}

	h, err := d.devices.Resolve(t.Target)
	if err != nil {
		return step{}, fmt.Errorf("%w: %q", ErrUnknownTarget, t.Target)
	}

	switch h.Kind() {
	case device.KindCamera:
		client, ok := d.cameras[t.Target]
		if !ok {
			return step{}, fmt.Errorf("%w: no client for camera %q", ErrUnknownTarget, t.Target)
		}
		return buildCamera(client, t)
	case device.KindTurntable:
		driver, ok := d.turntables[t.Target]
		if !ok {
			return step{}, fmt.Errorf("%w: no driver for turntable %q", ErrUnknownTarget, t.Target)
		}
		return buildTurntable(driver, t)
	default:
		return step{}, fmt.Errorf("%w: %q has unsupported kind %s", ErrUnknownTarget, t.Target, h.Kind())
	}
}

func buildCamera(client CameraClient, t task.Task) (step, error) {
	var (
		cmd camera.Command
		err error
	)

	switch {
	case t.Action == ActionGet || t.Action == ActionPost || t.Action == ActionPut || t.Action == ActionDelete:
		if t.Param == "" {
			return step{}, fmt.Errorf("%w: %s needs a request path", ErrInvalidParam, t.Action)
		}
		cmd, err = client.Raw(t.Action, t.Param, t.Payload)

	case t.Action == ActionShutter:
		af := false
		if t.Param != "" {
			if af, err = task.ParseBool(t.Param); err != nil {
				return step{}, fmt.Errorf("%w: autofocus: %w", ErrInvalidParam, err)
			}
		}
		cmd, err = client.Shutter(af)

	case t.Action == ActionSettings:
		cmd, err = client.RefreshSettings()

	case settingActions[t.Action]:
		cmd, err = client.SetSetting(t.Action, t.Param)

	default:
		return step{}, fmt.Errorf("%w: %q is not a camera action", ErrUnknownAction, t.Action)
	}
	if err != nil {
		return step{}, fmt.Errorf("%w: %w", ErrInvalidParam, err)
	}

	return step{send: func(ctx context.Context) (int, error) {
		_, attempts, err := client.Run(ctx, cmd)
		return attempts, err
	}}, nil
}

func buildTurntable(driver TurntableDriver, t task.Task) (step, error) {
	switch t.Action {
	case ActionCW, ActionCCW:
		deg, err := parseInt(t.Param)
		if err != nil {
			return step{}, fmt.Errorf("%w: degrees: %w", ErrInvalidParam, err)
		}
		clockwise := t.Action == ActionCW
		return step{send: func(ctx context.Context) (int, error) {
			return 1, driver.Turn(ctx, clockwise, deg)
		}}, nil

	case ActionSpeed:
		rpm, err := parseInt(t.Param)
		if err != nil {
			return step{}, fmt.Errorf("%w: rpm: %w", ErrInvalidParam, err)
		}
		if rpm <= 0 {
			return step{}, fmt.Errorf("%w: rpm must be positive, got %d", ErrInvalidParam, rpm)
		}
		return step{send: func(context.Context) (int, error) {
			return 1, driver.SetSpeed(rpm)
		}}, nil

	default:
		return step{}, fmt.Errorf("%w: %q is not a turntable action", ErrUnknownAction, t.Action)
	}
}

// parseInt accepts integers and whole-number floats ("90", "90.0").
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty value")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}
