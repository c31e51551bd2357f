package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"srtfix/internal/batch"
	"srtfix/internal/history"
	"srtfix/internal/logging"
	"srtfix/internal/mapping"
)

const defaultMaxUpload = 16 << 20

// Engine is the repair surface the server needs.
type Engine interface {
	batch.Processor
	Table() *mapping.Table
}

// Options configures a Server.
type Options struct {
	Bind           string
	Token          string
	MaxUploadBytes int64
	Suffix         string
	ArchiveName    string
	Workers        int
	// History is optional; nil disables journaling and the history routes.
	History *history.Store
	Logger  *slog.Logger
}

// Server is the HTTP front end for the repair engine.
type Server struct {
	engine  Engine
	opts    Options
	logger  *slog.Logger
	router  *chi.Mux
	server  *http.Server
	addr    net.Addr
	started chan struct{}
}

// New builds a server and its routes. Call Run to start listening.
func New(engine Engine, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if strings.TrimSpace(opts.ArchiveName) == "" {
		opts.ArchiveName = "subtitle.zip"
	}
	s := &Server{
		engine:  engine,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "web"),
		router:  chi.NewRouter(),
		started: make(chan struct{}),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.opts.Token))
		r.Get("/mapping", s.handleMapping)
		r.Post("/repair", s.handleRepair)
		r.Post("/repair/text", s.handleRepairText)
		if s.opts.History != nil {
			r.Get("/history", s.handleHistory)
			r.Get("/history/{runID}", s.handleHistoryRun)
		}
	})
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound listener address once Run has started listening.
func (s *Server) Addr() net.Addr {
	select {
	case <-s.started:
		return s.addr
	default:
		return nil
	}
}

// Started is closed once the listener is bound.
func (s *Server) Started() <-chan struct{} {
	return s.started
}

// Run listens on the configured bind address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Bind, err)
	}
	s.addr = listener.Addr()
	close(s.started)
	s.logger.Info("http server listening", logging.String("address", s.addr.String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
