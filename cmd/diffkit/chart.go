package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"diffkit/internal/chart"
)

var (
	chartRange = chart.DefaultRange
	chartOut   string
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render the electron wavelength curve to an HTML page",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		// validate before truncating an existing page
		if _, err := chartRange.Voltages(); err != nil {
			return err
		}

		f, err := os.Create(chartOut)
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()

		if err := chart.Render(f, chartRange); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "chart written to %s\n", chartOut)
		return nil
	},
}

func init() {
	chartCmd.Flags().Float64Var(&chartRange.From, "from", chart.DefaultRange.From, "first voltage (kV)")
	chartCmd.Flags().Float64Var(&chartRange.To, "to", chart.DefaultRange.To, "last voltage (kV)")
	chartCmd.Flags().Float64Var(&chartRange.Step, "step", chart.DefaultRange.Step, "voltage step (kV)")
	chartCmd.Flags().StringVar(&chartOut, "out", "wavelength.html", "output HTML file")
	rootCmd.AddCommand(chartCmd)
}
