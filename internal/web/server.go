package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

const (
	// DefaultAddr is the default server address.
	DefaultAddr = "127.0.0.1:8000"

	// DefaultShutdownTimeout bounds graceful shutdown when none is configured.
	DefaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr   string
	Logger *slog.Logger

	// Tracks serves /spotify/track-id and is required.
	Tracks TrackResolver

	// Recommender serves /recommendations. The route is not mounted when nil.
	Recommender Recommender

	// Saved serves /recommendations/{id}. The route is not mounted when nil.
	Saved RecommendationReader

	ShutdownTimeout time.Duration
}

// Server is the HTTP server for the lookup proxy.
type Server struct {
	router          chi.Router
	server          *http.Server
	handlers        *Handlers
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Tracks == nil {
		return nil, errors.New("web: track resolver is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	router := chi.NewRouter()

	s := &Server{
		router:          router,
		handlers:        NewHandlers(cfg.Tracks, cfg.Recommender, cfg.Saved, cfg.Logger),
		logger:          cfg.Logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	// Configure middleware
	s.setupMiddleware()

	// Configure routes
	s.setupRoutes()

	// Create HTTP server
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes() {
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(r.Context(), w, "Not found", http.StatusNotFound)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(r.Context(), w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	s.router.Get("/healthz", s.handlers.Healthz)
	s.router.Get("/spotify/track-id", s.handlers.TrackID)

	if s.handlers.recommender != nil {
		s.router.Get("/recommendations", s.handlers.Recommend)
	}
	if s.handlers.saved != nil {
		s.router.Get("/recommendations/{id}", s.handlers.GetRecommendation)
	}
}

// requestLogger logs HTTP requests with method, path, status, and duration.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema: httplog.SchemaECS.Concise(true),

		// Query strings carry song titles only; headers and bodies are never logged.
		LogRequestHeaders:  []string{"Origin"},
		LogResponseHeaders: []string{},
		LogRequestBody:     nil,
		LogResponseBody:    nil,

		RecoverPanics: false, // chi Recoverer handles panics
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Run starts the server and shuts it down gracefully once ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for cancellation or error
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
