package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/ugoku-core/internal/camera"
	"github.com/nerrad567/ugoku-core/internal/device"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/config"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/logging"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/metrics"
	"github.com/nerrad567/ugoku-core/internal/retry"
	"github.com/nerrad567/ugoku-core/internal/sequencer"
	"github.com/nerrad567/ugoku-core/internal/task"
	"github.com/nerrad567/ugoku-core/internal/transport"
	"github.com/nerrad567/ugoku-core/internal/turntable"
)

// session is a loaded device list and task list wired to a dispatcher.
// Nothing in it has touched a device yet.
type session struct {
	log        *logging.Logger
	registry   *device.Registry
	list       *task.List
	dispatcher *sequencer.Dispatcher
	cameras    []*camera.Client
	drivers    []*turntable.Driver
}

func newSession(cfg *config.Config, log *logging.Logger, m *metrics.Metrics) (*session, error) {
	devices, err := device.LoadFile(cfg.Session.DevicesFile)
	if err != nil {
		return nil, fmt.Errorf("loading devices: %w", err)
	}
	registry, err := device.NewRegistry(devices, device.Defaults{
		Tuning: device.Tuning{
			Attempts: cfg.Camera.MaxAttempts,
			Delay:    cfg.RetryDelay(),
			Timeout:  cfg.AttemptTimeout(),
		},
		BaudRate: cfg.Motor.BaudRate,
		SpeedRPM: cfg.Motor.SpeedRPM,
	})
	if err != nil {
		return nil, fmt.Errorf("building device registry: %w", err)
	}

	list, err := task.LoadFile(cfg.Session.TasksFile)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	log.Info("session loaded",
		"cameras", len(registry.Cameras()),
		"turntables", len(registry.Turntables()),
		"tasks", list.Len(),
	)

	exec := retry.New()
	exec.SetLogger(log)
	exec.SetObserver(m)
	httpT := transport.NewHTTP(cfg.ConnectTimeout())

	s := &session{
		log:        log,
		registry:   registry,
		list:       list,
		dispatcher: sequencer.NewDispatcher(registry, log),
	}

	for _, cam := range registry.Cameras() {
		c := camera.NewClient(cam, httpT, exec, camera.Options{
			APIRoot:             cfg.Camera.APIRoot,
			APIVersion:          cfg.Camera.APIVersion,
			DisableAutoPowerOff: cfg.Camera.DisableAutoPowerOff,
		})
		c.SetLogger(log.With("camera", cam.ID))
		s.dispatcher.AddCamera(cam.ID, c)
		s.cameras = append(s.cameras, c)
	}

	for _, tt := range registry.Turntables() {
		link := transport.NewSerial(tt.Port, tt.BaudRate, cfg.MotorTimeout(), turntable.OpenPort)
		d := turntable.NewDriver(tt, link, cfg.Motor.Settle)
		d.SetLogger(log.With("turntable", tt.ID))
		s.dispatcher.AddTurntable(tt.ID, d)
		s.drivers = append(s.drivers, d)
	}

	return s, nil
}

// connectCameras discovers every camera so the preflight can check settings
// against what each body reports. It only reads from the cameras.
func (s *session) connectCameras(ctx context.Context) error {
	for _, c := range s.cameras {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}
	return nil
}

// prepare readies every device for the run: camera run-time settings first,
// then turntable initialisation. The first failure aborts before any row runs.
func (s *session) prepare(ctx context.Context) error {
	for _, c := range s.cameras {
		if err := c.Prepare(ctx); err != nil {
			return err
		}
	}
	for _, d := range s.drivers {
		if err := d.Init(); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) close() {
	for _, d := range s.drivers {
		if err := d.Close(); err != nil {
			s.log.Warn("closing turntable", "turntable", d.Turntable().ID, "error", err)
		}
	}
}
