// Package main is the entry point for the volcalc binary. It computes the
// volume under z = f(x, y) over a rectangle from the command line and serves
// the same calculation over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultLogLevel = "warn"

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "volcalc",
		Short: "Volume under a surface z = f(x, y)",
		Long: `Computes the volume under z = f(x, y) over a rectangle [a, b] x [c, d]
with adaptive Gauss-Legendre quadrature.

Expressions may use x, y, pi, e, numbers, + - * / ** and the functions
sin, cos, tan, exp, log, sqrt and abs.

Example:
  volcalc integrate -f "x**2 + y**2" --a -1 --b 1 --c -1 --d 1`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := cmd.Flags().GetString("log-level")
			if err != nil {
				return fmt.Errorf("failed to get log-level flag: %w", err)
			}
			pretty, err := cmd.Flags().GetBool("pretty")
			if err != nil {
				return fmt.Errorf("failed to get pretty flag: %w", err)
			}
			setupLogging(cmd, level, pretty)
			return nil
		},
	}

	rootCmd.PersistentFlags().String("log-level", defaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "Enable pretty console logging")

	rootCmd.AddCommand(
		newIntegrateCmd(),
		newGridCmd(),
		newExamplesCmd(),
		newServeCmd(),
	)
	return rootCmd
}

func setupLogging(cmd *cobra.Command, level string, pretty bool) {
	cfg := logging.Config{
		Level:  level,
		Pretty: pretty,
		Output: cmd.ErrOrStderr(),
	}
	slog.SetDefault(logging.NewLogger(cfg))
	logging.SetupLogger(cfg)
}

// calculationError prefixes a calculator failure with its error code.
func calculationError(err error) error {
	return fmt.Errorf("%s: %w", domain.ErrorCode(err), err)
}
