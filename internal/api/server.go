// Package api provides the HTTP REST API for the Gray Logic TV Bridge.
//
// It exposes the display's cached state, direct control operations, command
// history, and diagnostics to local tooling and the Core admin UI.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-tv/internal/bridges/aquos"
	"github.com/nerrad567/gray-logic-tv/internal/history"
	"github.com/nerrad567/gray-logic-tv/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tv/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-tv/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// TVController is the subset of bridge operations the API exposes.
// *aquos.Bridge satisfies this; tests substitute a mock.
type TVController interface {
	DeviceID() string
	State() aquos.TVState
	Inputs() []aquos.Input
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
	SelectInput(ctx context.Context, id int) error
	RefreshState(ctx context.Context) error
}

// MQTTStatus reports broker connectivity for health and metrics endpoints.
type MQTTStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Device  config.DeviceConfig // hardware identity reported under /health
	Logger  *logging.Logger
	TV      TVController
	Sender  aquos.Sender       // optional: dispatcher stats for /metrics
	Link    aquos.Link         // optional: serial link stats for /metrics and /health
	MQTT    MQTTStatus         // optional: broker status for /metrics and /health
	DB      *database.DB       // optional: pool stats for /metrics
	History history.Repository // optional: /history returns 500 when absent
	Version string
}

// Server is the HTTP API server for the TV bridge.
//
// It manages the HTTP listener, routes, and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	device    config.DeviceConfig
	logger    *logging.Logger
	tv        TVController
	sender    aquos.Sender
	link      aquos.Link
	mqtt      MQTTStatus
	db        *database.DB
	histRepo  history.Repository
	version   string
	startTime time.Time
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, TV controller)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.TV == nil {
		return nil, fmt.Errorf("tv controller is required")
	}

	return &Server{
		cfg:       deps.Config,
		device:    deps.Device,
		logger:    deps.Logger,
		tv:        deps.TV,
		sender:    deps.Sender,
		link:      deps.Link,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		histRepo:  deps.History,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
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

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
