package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/ugoku-core/internal/api"
	"github.com/nerrad567/ugoku-core/internal/audit"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/config"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/database"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/logging"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/metrics"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ugoku-core/internal/journal"
	"github.com/nerrad567/ugoku-core/migrations"
)

// services are the side channels of a live run. Only the journal is
// required; the broker, time-series store and API degrade to a warning.
type services struct {
	log    *logging.Logger
	db     *database.DB
	audit  audit.Repository
	mqtt   *mqtt.Client
	influx *influxdb.Client
	api    *api.Server
}

// startServices opens every configured side channel and registers it as a
// dispatcher observer. The returned value is never nil and must be closed
// even when an error is returned.
func startServices(ctx context.Context, cfg *config.Config, log *logging.Logger, sess *session, m *metrics.Metrics, stop func()) (*services, error) {
	s := &services{log: log}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return s, fmt.Errorf("opening journal: %w", err)
	}
	s.db = db
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return s, fmt.Errorf("migrating journal: %w", err)
	}
	repo := journal.NewSQLiteRepository(db.DB)
	s.audit = audit.NewSQLiteRepository(db.DB)
	sess.dispatcher.AddObserver(journal.NewRecorder(repo, log.With("component", "journal")))
	sess.dispatcher.AddObserver(m)

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("mqtt unavailable, continuing without it", "error", err)
		} else {
			s.mqtt = client
			mlog := log.With("component", "mqtt")
			client.SetLogger(mlog)
			sess.dispatcher.AddObserver(mqtt.NewRunPublisher(client, byte(cfg.MQTT.QoS), mlog))
			remoteStop := func() {
				s.record(ctx, &audit.Entry{
					Action: audit.ActionRunStop,
					RunID:  sess.dispatcher.Snapshot().ID,
					Source: audit.SourceMQTT,
				})
				stop()
			}
			if err := client.Subscribe(mqtt.Topics{}.ControlStop(), byte(cfg.MQTT.QoS), mqtt.StopHandler(remoteStop, mlog)); err != nil {
				log.Warn("remote stop unavailable", "error", err)
			}
			log.Info("mqtt connected", "broker", cfg.MQTT.Broker.Host)
		}
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(cfg.InfluxDB)
		switch {
		case errors.Is(err, influxdb.ErrDisabled):
		case err != nil:
			log.Warn("influxdb unavailable, continuing without it", "error", err)
		default:
			s.influx = client
			client.SetOnError(func(err error) {
				log.Warn("influxdb write failed", "error", err)
			})
			sess.dispatcher.AddObserver(client)
			log.Info("influxdb connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.With("component", "api"),
			Runs:     sess.dispatcher,
			Devices:  sess.registry,
			Stop:     stop,
			Journal:  repo,
			Audit:    s.audit,
			DB:       db,
			Metrics:  m,
			Version:  version,
		}
		if s.mqtt != nil {
			deps.MQTT = s.mqtt
		}
		srv, err := api.New(deps)
		if err != nil {
			return s, fmt.Errorf("creating api server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			log.Warn("api unavailable, continuing without it", "error", err)
		} else {
			s.api = srv
			sess.dispatcher.AddObserver(srv.Hub())
			log.Info("api listening", "addr", srv.Addr().String())
		}
	}

	return s, nil
}

// record stores an audit entry. Failures are logged only.
func (s *services) record(ctx context.Context, e *audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(context.WithoutCancel(ctx), e); err != nil {
		s.log.Warn("recording audit entry", "action", e.Action, "error", err)
	}
}

// close shuts services down in reverse order of start.
func (s *services) close() {
	if s.api != nil {
		if err := s.api.Close(); err != nil {
			s.log.Warn("closing api", "error", err)
		}
	}
	if s.influx != nil {
		if err := s.influx.Close(); err != nil {
			s.log.Warn("closing influxdb", "error", err)
		}
	}
	if s.mqtt != nil {
		if err := s.mqtt.Close(); err != nil {
			s.log.Warn("closing mqtt", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("closing journal", "error", err)
		}
	}
}
