package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"

	"github.com/AndreasM009/entitystore-go/store"
)

const (
	contentTypeJSON          = "application/json"
	defaultHTTPPort          = 8080
	defaultReadHeaderTimeout = time.Second
	defaultShutdownTimeout   = time.Second * 5
)

// Resource is a set of routes mounted under /api/{Name}
type Resource interface {
	Name() string
	Routes(r chi.Router)
}

// Server exposes repositories over HTTP
type Server struct {
	resources         []Resource
	httpServer        *http.Server
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
	URL               string
	addr              string
}

// Option configures a Server
type Option func(*Server)

// WithTimeouts overrides the read header and shutdown timeouts
func WithTimeouts(readHeader, shutdown time.Duration) Option {
	return func(s *Server) {
		if readHeader > 0 {
			s.readHeaderTimeout = readHeader
		}
		if shutdown > 0 {
			s.shutdownTimeout = shutdown
		}
	}
}

// NewServer creates a new server instance
func NewServer(port int, resources []Resource, opts ...Option) *Server {
	if port == 0 {
		port = defaultHTTPPort
	}
	s := &Server{
		resources:         resources,
		readHeaderTimeout: defaultReadHeaderTimeout,
		shutdownTimeout:   defaultShutdownTimeout,
		URL:               "http://localhost:" + strconv.Itoa(port),
		addr:              ":" + strconv.Itoa(port),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the port and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", "addr", s.URL)
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// Handler builds the chi router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	for _, res := range s.resources {
		r.Route("/api/"+res.Name(), res.Routes)
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewOKResponse())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

// writeError maps store error kinds to status codes
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch store.TypeOf(err) {
	case store.InvalidArgument:
		status = http.StatusBadRequest
	case store.EntityNotFound:
		status = http.StatusNotFound
	case store.VersionConflict:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path, "error", err, "request_id", RequestIDFrom(r.Context()))
	}
	writeJSON(w, status, NewErrorResponse(err.Error()))
}
