package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/config"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/logging"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/server"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/telemetry"
	"github.com/spf13/cobra"
)

const telemetryShutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calculator over HTTP",
		Long: `Starts the HTTP service: POST /calculate, GET /examples, GET /healthz and
GET /metrics.

With --config the file is watched and integration, grid, timeout and rate
limit settings are applied on change without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, nil)
		},
	}

	cmd.Flags().StringP("config", "c", "", "Path to configuration file (YAML)")
	cmd.Flags().String("listen", "", "Address to listen on (overrides the configuration)")
	return cmd
}

// runServe blocks until ctx is done. ready, when set, receives the bound
// listener address.
func runServe(ctx context.Context, cmd *cobra.Command, ready func(addr string)) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	listenAddr, err := cmd.Flags().GetString("listen")
	if err != nil {
		return fmt.Errorf("failed to get listen flag: %w", err)
	}

	var (
		cfg      *config.Config
		provider *config.FileProvider
	)
	if configPath != "" {
		provider, err = config.NewFileProvider(configPath, slog.Default())
		if err != nil {
			return err
		}
		defer func() {
			if err := provider.Close(); err != nil {
				slog.Error("Failed to close config provider", "error", err)
			}
		}()
		cfg = provider.Current()
	} else {
		cfg, err = config.Load("")
		if err != nil {
			return fmt.Errorf("configuration load failed: %w", err)
		}
	}
	if listenAddr != "" {
		cfg.Server.ListenAddress = listenAddr
	}

	// The configuration file chooses the log format unless the flags did.
	if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("pretty") {
		logger := logging.NewLogger(logging.Config{
			Level:  cfg.Logging.Level,
			Pretty: cfg.Logging.Pretty,
			Output: cmd.ErrOrStderr(),
		})
		slog.SetDefault(logger)
	}
	logger := slog.Default()

	shutdownTelemetry, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("telemetry initialization failed: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("Telemetry shutdown error", "error", err)
		}
	}()

	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}
	if provider != nil {
		go srv.WatchConfig(ctx, provider.Subscribe())
	}

	httpServer := server.NewHTTPServer(cfg.Server, srv.Handler())
	listener, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to bind listener on %s: %w", cfg.Server.ListenAddress, err)
	}
	logger.Info("Server listening", "addr", listener.Addr().String())
	if ready != nil {
		ready(listener.Addr().String())
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
