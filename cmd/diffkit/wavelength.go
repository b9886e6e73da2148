package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"diffkit/internal/physics"
	"diffkit/internal/service"
)

var (
	wavelengthKV   bool
	wavelengthJSON bool
)

var wavelengthCmd = &cobra.Command{
	Use:   "wavelength <voltage>...",
	Short: "Print the relativistic electron wavelength for accelerating voltages",
	Long: `Print the relativistic electron wavelength for one or more accelerating ` +
		`voltages, given in volts (or kilovolts with --kv).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		volts := make([]float64, len(args))
		for i, arg := range args {
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("voltage %q is not a number", arg)
			}
			if wavelengthKV {
				v *= float64(physics.KiloVolt)
			}
			volts[i] = v
		}

		entries, err := service.Wavelengths(volts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if wavelengthJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "VOLTAGE (kV)\tWAVELENGTH (pm)\t")
		for _, e := range entries {
			fmt.Fprintf(tw, "%g\t%.5f\t\n", e.Voltage/float64(physics.KiloVolt), e.WavelengthPM)
		}
		return tw.Flush()
	},
}

func init() {
	wavelengthCmd.Flags().BoolVar(&wavelengthKV, "kv", false, "voltages are in kV")
	wavelengthCmd.Flags().BoolVar(&wavelengthJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(wavelengthCmd)
}
