package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/quadrature"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/volume"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var boundNames = []string{"a", "b", "c", "d"}

var boundUsage = map[string]string{
	"a": "Lower x bound",
	"b": "Upper x bound",
	"c": "Lower y bound",
	"d": "Upper y bound",
}

func addFunctionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("function", "f", "", "Expression in x and y, e.g. \"x**2 + y**2\"")
	for _, name := range boundNames {
		cmd.Flags().Float64(name, 0, boundUsage[name])
	}
}

// readBounds returns a, b, c, d. Every bound must be given explicitly.
func readBounds(cmd *cobra.Command) ([4]float64, error) {
	var bounds [4]float64
	for i, name := range boundNames {
		if !cmd.Flags().Changed(name) {
			return bounds, fmt.Errorf("missing flag --%s", name)
		}
		v, err := cmd.Flags().GetFloat64(name)
		if err != nil {
			return bounds, fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		bounds[i] = v
	}
	return bounds, nil
}

type integrateOutput struct {
	Function      string  `json:"function"`
	Canonical     string  `json:"canonical"`
	A             float64 `json:"a"`
	B             float64 `json:"b"`
	C             float64 `json:"c"`
	D             float64 `json:"d"`
	Volume        float64 `json:"volume"`
	ErrorEstimate float64 `json:"error"`
	Evaluations   int     `json:"evaluations"`
	DurationMS    float64 `json:"duration_ms"`
}

func newIntegrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrate",
		Short: "Compute the volume under f over [a, b] x [c, d]",
		Long: `Computes the double integral of f over the rectangle [a, b] x [c, d].

Without --function the expression and the four bounds are read interactively
from standard input.`,
		Args: cobra.NoArgs,
		RunE: runIntegrate,
	}

	addFunctionFlags(cmd)
	defaults := quadrature.DefaultOptions()
	cmd.Flags().Float64("abs-tol", defaults.AbsTol, "Absolute error tolerance")
	cmd.Flags().Float64("rel-tol", defaults.RelTol, "Relative error tolerance")
	cmd.Flags().Int("max-depth", defaults.MaxDepth, "Maximum bisection depth per axis")
	cmd.Flags().Int("workers", defaults.Workers, "Outer nodes evaluated in parallel")
	cmd.Flags().Duration("timeout", 30*time.Second, "Computation deadline (0 disables)")
	cmd.Flags().Bool("json", false, "Print the result as JSON")
	return cmd
}

func integrationOptions(cmd *cobra.Command) (quadrature.Options, time.Duration, error) {
	var opts quadrature.Options
	var err error
	if opts.AbsTol, err = cmd.Flags().GetFloat64("abs-tol"); err != nil {
		return opts, 0, err
	}
	if opts.RelTol, err = cmd.Flags().GetFloat64("rel-tol"); err != nil {
		return opts, 0, err
	}
	if opts.MaxDepth, err = cmd.Flags().GetInt("max-depth"); err != nil {
		return opts, 0, err
	}
	if opts.Workers, err = cmd.Flags().GetInt("workers"); err != nil {
		return opts, 0, err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return opts, 0, err
	}
	return opts, timeout, nil
}

func runIntegrate(cmd *cobra.Command, _ []string) error {
	opts, timeout, err := integrationOptions(cmd)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	function, err := cmd.Flags().GetString("function")
	if err != nil {
		return err
	}
	var bounds [4]float64
	if function == "" {
		function, bounds, err = promptCalculation(cmd.InOrStdin(), cmd.OutOrStdout())
	} else {
		bounds, err = readBounds(cmd)
	}
	if err != nil {
		return err
	}

	calc, err := volume.NewCalculator(volume.Config{
		Logger:      slog.Default(),
		Integration: opts,
		Timeout:     timeout,
		Source:      "cli",
	})
	if err != nil {
		return calculationError(err)
	}

	res, err := calc.Calculate(cmd.Context(), volume.Request{
		Function: function,
		A:        bounds[0],
		B:        bounds[1],
		C:        bounds[2],
		D:        bounds[3],
		SkipGrid: true,
	})
	if err != nil {
		// The calculator already logged the failure.
		return calculationError(err)
	}

	log.Debug().
		Str("function", res.Canonical).
		Int("evaluations", res.Evaluations).
		Dur("duration", res.Duration).
		Msg("volume computed")

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(integrateOutput{
			Function:      res.Function,
			Canonical:     res.Canonical,
			A:             res.Domain.XMin,
			B:             res.Domain.XMax,
			C:             res.Domain.YMin,
			D:             res.Domain.YMax,
			Volume:        res.Volume,
			ErrorEstimate: res.ErrorEstimate,
			Evaluations:   res.Evaluations,
			DurationMS:    float64(res.Duration.Microseconds()) / 1000,
		})
	}

	fmt.Fprintf(out, "f(x, y)     = %s\n", res.Canonical)
	fmt.Fprintf(out, "domain      = %s\n", res.Domain)
	fmt.Fprintf(out, "volume      = %.10g\n", res.Volume)
	fmt.Fprintf(out, "error       = %.3g\n", res.ErrorEstimate)
	fmt.Fprintf(out, "evaluations = %d\n", res.Evaluations)
	return nil
}

// promptCalculation reads the expression and the four bounds from in,
// asking again after an unparsable number.
func promptCalculation(in io.Reader, out io.Writer) (string, [4]float64, error) {
	var bounds [4]float64
	scanner := bufio.NewScanner(in)

	readLine := func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("read input: %w", err)
			}
			return "", fmt.Errorf("unexpected end of input")
		}
		return strings.TrimSpace(scanner.Text()), nil
	}

	function, err := readLine("f(x, y) = ")
	if err != nil {
		return "", bounds, err
	}

	for i, name := range boundNames {
		for {
			line, err := readLine(fmt.Sprintf("%s (%s): ", name, strings.ToLower(boundUsage[name])))
			if err != nil {
				return "", bounds, err
			}
			v, err := strconv.ParseFloat(line, 64)
			if err == nil {
				bounds[i] = v
				break
			}
			fmt.Fprintf(out, "%q is not a number\n", line)
		}
	}
	return function, bounds, nil
}
