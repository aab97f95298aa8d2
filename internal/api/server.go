package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/streamdeck-api/internal/button"
	"github.com/nerrad567/streamdeck-api/internal/infrastructure/config"
	"github.com/nerrad567/streamdeck-api/internal/infrastructure/logging"
	"github.com/nerrad567/streamdeck-api/internal/protocol"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Buttons lists the registered buttons in slot order.
type Buttons interface {
	List(ctx context.Context) []button.Button
}

// Decks reports the attached devices.
type Decks interface {
	Devices() []protocol.Device
}

// Icons reads and replaces button icons.
type Icons interface {
	Get(ctx context.Context, uuid string) (string, error)
	Set(ctx context.Context, uuid, svg string) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Application protocol.Application
	Logger      *logging.Logger
	Buttons     Buttons
	Decks       Decks // optional; no devices are reported when nil
	Icons       Icons
	Version     string
}

// Server is the Stream Deck HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	app     protocol.Application
	logger  *logging.Logger
	buttons Buttons
	decks   Decks
	icons   Icons
	version string
	hub     *Hub

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc // stops the internal hub on Close()
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Buttons == nil {
		return nil, fmt.Errorf("button registry is required")
	}
	if deps.Icons == nil {
		return nil, fmt.Errorf("icon service is required")
	}

	s := &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		app:     deps.Application,
		logger:  deps.Logger,
		buttons: deps.Buttons,
		decks:   deps.Decks,
		icons:   deps.Icons,
		version: deps.Version,
	}

	s.hub = NewHub(deps.WS, deps.Logger)
	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves HTTP in a background goroutine.
// Bind errors are returned; serve errors after that are logged.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadHeaderTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	s.server = nil
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
