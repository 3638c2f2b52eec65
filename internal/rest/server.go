package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/otaflow/ota-agent/api"
	"github.com/otaflow/ota-agent/internal/trigger"
)

// StatusSource returns the current update configuration and state.
type StatusSource interface {
	UpdateStatus() api.UpdateStatus
}

// Trigger starts update cycles in the background.
type Trigger interface {
	Go(ctx context.Context, source trigger.Source) bool
}

// Server holds the internal state of the REST API server.
type Server struct {
	socketPath string
	status     StatusSource
	trigger    Trigger
	metrics    http.Handler

	// ctx is handed to the update cycles started through the API.
	ctx context.Context //nolint:containedctx
}

// NewServer returns a REST API server object. metrics may be nil.
func NewServer(socketPath string, status StatusSource, t Trigger, metrics http.Handler) (*Server, error) {
	// Define the struct.
	server := Server{
		socketPath: socketPath,
		status:     status,
		trigger:    t,
		metrics:    metrics,
		ctx:        context.Background(),
	}

	// Create runtime path if missing.
	err := os.MkdirAll(filepath.Dir(socketPath), 0o700)
	if err != nil {
		return nil, err
	}

	return &server, nil
}

// Handler returns the API router. Update cycles started through it run under ctx.
func (s *Server) Handler(ctx context.Context) http.Handler {
	s.ctx = ctx

	router := http.NewServeMux()

	router.HandleFunc("/", s.apiRoot)
	router.HandleFunc("/1.0", s.apiRoot10)
	router.HandleFunc("/1.0/update", s.apiUpdate)
	router.HandleFunc("/1.0/update/:check", s.apiUpdateCheck)

	if s.metrics != nil {
		router.Handle("/1.0/metrics", s.metrics)
	}

	return router
}

// Serve starts the REST API server and stops it when ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	// Setup listener.
	_ = os.Remove(s.socketPath)
	lc := &net.ListenConfig{}

	listener, err := lc.Listen(ctx, "unix", s.socketPath)
	if err != nil {
		return err
	}

	// Setup server.
	server := &http.Server{
		Handler: s.Handler(ctx),

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
