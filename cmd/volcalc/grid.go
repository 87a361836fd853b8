package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/expr"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/grid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newGridCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Sample f on an N x N grid over [a, b] x [c, d]",
		Long: `Samples the surface on an evenly spaced N x N grid for plotting.

The json format prints {"n", "x", "y", "z"} matrices; csv prints one x,y,z
row per grid point, row-major.`,
		Args: cobra.NoArgs,
		RunE: runGrid,
	}

	addFunctionFlags(cmd)
	cmd.Flags().IntP("points", "n", domain.DefaultResolution, "Grid points per axis")
	cmd.Flags().String("format", "json", "Output format (json, csv)")
	return cmd
}

func runGrid(cmd *cobra.Command, _ []string) error {
	function, err := cmd.Flags().GetString("function")
	if err != nil {
		return err
	}
	if function == "" {
		return fmt.Errorf("missing flag --function")
	}
	bounds, err := readBounds(cmd)
	if err != nil {
		return err
	}
	n, err := cmd.Flags().GetInt("points")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "json" && format != "csv" {
		return fmt.Errorf("unsupported format %q (want json or csv)", format)
	}

	f, err := expr.Parse(function)
	if err != nil {
		return calculationError(err)
	}
	g, err := grid.Sample(f, bounds[0], bounds[1], bounds[2], bounds[3], n)
	if err != nil {
		return calculationError(err)
	}
	log.Debug().Str("function", f.String()).Int("n", g.N).Msg("grid sampled")

	if format == "csv" {
		return writeGridCSV(cmd.OutOrStdout(), g)
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(g)
}

func writeGridCSV(out io.Writer, g domain.SampleGrid) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"x", "y", "z"}); err != nil {
		return err
	}
	format := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for i := range g.N {
		for j := range g.N {
			if err := w.Write([]string{format(g.X[i][j]), format(g.Y[i][j]), format(g.Z[i][j])}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}
