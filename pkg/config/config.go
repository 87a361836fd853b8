// Package config provides configuration structures and loading logic for the
// volume calculator service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/quadrature"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvListenAddr   = "VOLCALC_LISTEN_ADDR"
	EnvLogLevel     = "VOLCALC_LOG_LEVEL"
	EnvOTLPEndpoint = "VOLCALC_OTLP_ENDPOINT"
	EnvOTLPInsecure = "VOLCALC_OTLP_INSECURE"
	EnvAbsTol       = "VOLCALC_ABS_TOL"
	EnvRelTol       = "VOLCALC_REL_TOL"
	EnvMaxDepth     = "VOLCALC_MAX_DEPTH"
	EnvWorkers      = "VOLCALC_WORKERS"
	EnvTimeout      = "VOLCALC_TIMEOUT"
)

// Config holds the global configuration for the service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Integration IntegrationConfig `yaml:"integration"`
	Grid        GridConfig        `yaml:"grid"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	ListenAddress   string        `yaml:"listen_address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	Insecure     bool    `yaml:"insecure"`
	ServiceName  string  `yaml:"service_name"`
	Environment  string  `yaml:"environment"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// IntegrationConfig tunes the quadrature and bounds its wall time.
type IntegrationConfig struct {
	AbsTol   float64       `yaml:"abs_tol"`
	RelTol   float64       `yaml:"rel_tol"`
	MaxDepth int           `yaml:"max_depth"`
	Workers  int           `yaml:"workers"`
	Timeout  time.Duration `yaml:"timeout"`
}

// GridConfig holds the sampling defaults.
type GridConfig struct {
	DefaultResolution int `yaml:"default_resolution"`
}

// RateLimitConfig configures admission of calculation requests. A zero rate
// disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	opts := quadrature.DefaultOptions()
	return &Config{
		Server: ServerConfig{
			ListenAddress:   ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "volcalc",
		},
		Integration: IntegrationConfig{
			AbsTol:   opts.AbsTol,
			RelTol:   opts.RelTol,
			MaxDepth: opts.MaxDepth,
			Workers:  opts.Workers,
			Timeout:  30 * time.Second,
		},
		Grid: GridConfig{
			DefaultResolution: domain.DefaultResolution,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
	}
}

// Load reads configuration from a file and applies environment variable overrides.
// An empty path yields the defaults with overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv(EnvListenAddr); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv(EnvLogLevel); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv(EnvOTLPEndpoint); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv(EnvOTLPInsecure); val == "true" {
		cfg.Telemetry.Insecure = true
	}

	var err error
	if val := os.Getenv(EnvAbsTol); val != "" {
		if cfg.Integration.AbsTol, err = strconv.ParseFloat(val, 64); err != nil {
			return fmt.Errorf("%s: %w", EnvAbsTol, err)
		}
	}
	if val := os.Getenv(EnvRelTol); val != "" {
		if cfg.Integration.RelTol, err = strconv.ParseFloat(val, 64); err != nil {
			return fmt.Errorf("%s: %w", EnvRelTol, err)
		}
	}
	if val := os.Getenv(EnvMaxDepth); val != "" {
		if cfg.Integration.MaxDepth, err = strconv.Atoi(val); err != nil {
			return fmt.Errorf("%s: %w", EnvMaxDepth, err)
		}
	}
	if val := os.Getenv(EnvWorkers); val != "" {
		if cfg.Integration.Workers, err = strconv.Atoi(val); err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
	}
	if val := os.Getenv(EnvTimeout); val != "" {
		if cfg.Integration.Timeout, err = time.ParseDuration(val); err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
	}
	return nil
}

// Validate performs validation of the entire configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry configuration: %w", err)
	}
	if err := c.Integration.Validate(); err != nil {
		return fmt.Errorf("integration configuration: %w", err)
	}
	if err := c.Grid.Validate(); err != nil {
		return fmt.Errorf("grid configuration: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration: %w", err)
	}
	return nil
}

// Validate performs validation of server configuration
func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8080"
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	return nil
}

// Validate performs validation of logging configuration
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
		return nil
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Level)
	}
}

// Validate performs validation of telemetry configuration
func (c *TelemetryConfig) Validate() error {
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio must be within [0, 1], got %g", c.SampleRatio)
	}
	return nil
}

// Validate checks the quadrature settings and the computation deadline.
func (c *IntegrationConfig) Validate() error {
	if err := c.Options().Validate(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// Options converts the settings into integrator options.
func (c IntegrationConfig) Options() quadrature.Options {
	return quadrature.Options{
		AbsTol:   c.AbsTol,
		RelTol:   c.RelTol,
		MaxDepth: c.MaxDepth,
		Workers:  c.Workers,
	}
}

// Validate performs validation of grid configuration
func (c *GridConfig) Validate() error {
	if c.DefaultResolution == 0 {
		c.DefaultResolution = domain.DefaultResolution
	}
	return domain.ValidateResolution(c.DefaultResolution)
}

// Validate performs validation of rate limit configuration
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative, got %g", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		c.Burst = 1
	}
	return nil
}
