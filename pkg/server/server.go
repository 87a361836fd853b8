// Package server exposes the calculator over HTTP.
//
// Routes:
//
//	POST /calculate  volume and sample grid for one expression and rectangle
//	GET  /examples   demonstration surfaces
//	GET  /healthz    liveness
//	GET  /metrics    Prometheus exposition
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/AvilaCamacho/CalculadoraFunciones/internal/governance"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/config"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/volume"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultMaxBodyBytes bounds request bodies when the configuration leaves it unset.
const DefaultMaxBodyBytes = 1 << 20

// Server serves calculation requests.
type Server struct {
	calculator *volume.Calculator
	limiter    *governance.RateLimiter
	metrics    *Metrics
	logger     *slog.Logger

	maxBody atomic.Int64
}

// New builds a Server from cfg. A nil logger falls back to slog.Default.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	calculator, err := volume.NewCalculator(volume.Config{
		Logger:            logger,
		Integration:       cfg.Integration.Options(),
		Timeout:           cfg.Integration.Timeout,
		DefaultResolution: cfg.Grid.DefaultResolution,
		Source:            "http",
	})
	if err != nil {
		return nil, fmt.Errorf("create calculator: %w", err)
	}

	s := &Server{
		calculator: calculator,
		limiter: governance.NewRateLimiter(governance.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.Burst,
		}),
		metrics: NewMetrics(),
		logger:  logger,
	}
	s.setMaxBody(cfg.Server.MaxBodyBytes)
	return s, nil
}

// Calculator returns the calculator behind the handlers.
func (s *Server) Calculator() *volume.Calculator {
	return s.calculator
}

// Metrics returns the Prometheus metrics of the server.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /calculate", s.handleCalculate)
	mux.HandleFunc("GET /examples", s.handleExamples)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	var handler http.Handler = mux
	handler = s.recoverMiddleware(handler)
	handler = s.metrics.MetricsMiddleware(handler)
	return otelhttp.NewHandler(handler, "volcalc",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// ApplyConfig swaps in reloaded integration, grid, timeout, body and rate
// settings. On error nothing is changed.
func (s *Server) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := s.calculator.Reconfigure(cfg.Integration.Options(), cfg.Grid.DefaultResolution, cfg.Integration.Timeout); err != nil {
		return fmt.Errorf("reconfigure calculator: %w", err)
	}
	s.limiter.Configure(governance.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.Burst,
	})
	s.setMaxBody(cfg.Server.MaxBodyBytes)
	return nil
}

// WatchConfig applies every configuration received on updates until ctx is
// done or the channel is closed.
func (s *Server) WatchConfig(ctx context.Context, updates <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			if err := s.ApplyConfig(cfg); err != nil {
				s.metrics.RecordConfigReload("error")
				s.logger.Error("failed to apply configuration", "error", err)
				continue
			}
			s.metrics.RecordConfigReload("success")
			s.logger.Info("configuration applied",
				"abs_tol", cfg.Integration.AbsTol,
				"rel_tol", cfg.Integration.RelTol,
				"max_depth", cfg.Integration.MaxDepth,
				"workers", cfg.Integration.Workers,
				"timeout", cfg.Integration.Timeout,
				"rate_limit", cfg.RateLimit.RequestsPerSecond,
			)
		}
	}
}

func (s *Server) setMaxBody(n int64) {
	if n <= 0 {
		n = DefaultMaxBodyBytes
	}
	s.maxBody.Store(n)
}

// NewHTTPServer wraps handler with the configured timeouts.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
}
