// Package ops exposes the operational HTTP surface: a health endpoint with a
// readiness snapshot and the Prometheus metrics endpoint.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkonio/doppelbot/internal/corpus"
	"github.com/inkonio/doppelbot/internal/provider"
	"github.com/inkonio/doppelbot/internal/session"
)

// Config holds the ops server configuration.
type Config struct {
	Bind            string        `yaml:"bind"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Defaults applies default values to unset fields. The server binds to
// loopback unless configured otherwise.
func (c *Config) Defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8090"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Validate checks the bind address.
func (c *Config) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
		return fmt.Errorf("ops: invalid bind address %q", c.Bind)
	}
	return nil
}

// Server is the operational HTTP server.
type Server struct {
	config    Config
	corpus    *corpus.Corpus
	sessions  *session.Registry
	generator provider.Generator
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// NewServer creates a Server. gatherer is the metrics registry to expose.
func NewServer(cfg Config, corp *corpus.Corpus, sessions *session.Registry, generator provider.Generator, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:    cfg,
		corpus:    corp,
		sessions:  sessions,
		generator: generator,
		gatherer:  gatherer,
		logger:    logger.With("component", "ops"),
	}
}

// Handler returns the HTTP handler with all routes wired.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth())
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// healthJSON is the health endpoint response.
type healthJSON struct {
	Status         string `json:"status"`
	Enabled        bool   `json:"enabled"`
	CorpusExamples int    `json:"corpus_examples"`
	Sessions       int    `json:"sessions"`
	Model          string `json:"model"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthJSON{
			Status:        "ok",
			Model:         s.generator.ModelName(),
			Sessions:      s.sessions.Len(),
			UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		}

		enabled, err := s.corpus.Enabled(r.Context())
		if err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		resp.Enabled = enabled

		count, err := s.corpus.Count(r.Context())
		if err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		resp.CorpusExamples = count

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.startedAt = time.Now()

	s.server = &http.Server{
		Addr:         s.config.Bind,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.config.Bind)
	if err != nil {
		return fmt.Errorf("ops: listen failed: %w", err)
	}

	go func() {
		s.logger.Info("ops server listening", "addr", s.config.Bind)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully with the configured timeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("ops server shutting down")
	return s.server.Shutdown(shutdownCtx)
}
