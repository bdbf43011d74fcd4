package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/ugoku-core/internal/audit"
	"github.com/nerrad567/ugoku-core/internal/device"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/config"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/database"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/logging"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/metrics"
	"github.com/nerrad567/ugoku-core/internal/journal"
	"github.com/nerrad567/ugoku-core/internal/sequencer"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// RunView exposes the dispatcher's live state.
type RunView interface {
	Snapshot() sequencer.Execution
}

// ConnectionState reports a broker connection, e.g. *mqtt.Client.
type ConnectionState interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Runs     RunView
	Devices  *device.Registry
	Stop     func()

	// Optional.
	Journal journal.Repository
	Audit   audit.Repository
	DB      *database.DB
	Metrics *metrics.Metrics
	MQTT    ConnectionState
	Version string
}

// Server is the status and control API.
//
// Thread Safety: All methods are safe for concurrent use.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	runs      RunView
	devices   *device.Registry
	stop      func()
	journal   journal.Repository
	audit     audit.Repository
	db        *database.DB
	metrics   *metrics.Metrics
	mqtt      ConnectionState
	version   string
	startTime time.Time

	hub    *Hub
	server *http.Server
	addr   net.Addr
	cancel context.CancelFunc
}

// New creates a server. The websocket hub exists from construction so it
// can be registered as a dispatcher observer before Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Runs == nil {
		return nil, fmt.Errorf("run view is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Stop == nil {
		return nil, fmt.Errorf("stop function is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		runs:      deps.Runs,
		devices:   deps.Devices,
		stop:      deps.Stop,
		journal:   deps.Journal,
		audit:     deps.Audit,
		db:        deps.DB,
		metrics:   deps.Metrics,
		mqtt:      deps.MQTT,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Hub returns the websocket hub. It implements sequencer.Observer.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		s.cancel()
		return fmt.Errorf("api listen: %w", err)
	}
	s.addr = ln.Addr()

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.addr.String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close stops the hub and waits for in-flight requests.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
