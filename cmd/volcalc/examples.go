package main

import (
	"fmt"
	"log/slog"
	"math"
	"text/tabwriter"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/quadrature"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/volume"
	"github.com/spf13/cobra"
)

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Compute the demonstration surfaces",
		Args:  cobra.NoArgs,
		RunE:  runExamples,
	}
}

func runExamples(cmd *cobra.Command, _ []string) error {
	calc, err := volume.NewCalculator(volume.Config{
		Logger:      slog.Default(),
		Integration: quadrature.DefaultOptions(),
		Source:      "cli",
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFUNCTION\tDOMAIN\tVOLUME\tEXPECTED\tDIFF")
	for _, ex := range volume.Examples() {
		req := ex.Request()
		req.SkipGrid = true
		res, err := calc.Calculate(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("example %s: %w", ex.Name, calculationError(err))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.10g\t%.10g\t%.2g\n",
			ex.Name, res.Canonical, res.Domain, res.Volume, ex.Expected, math.Abs(res.Volume-ex.Expected))
	}
	return w.Flush()
}
