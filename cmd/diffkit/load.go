package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"diffkit/internal/domain"
	"diffkit/internal/loader"
)

var loadNoRecord bool

var loadCmd = &cobra.Command{
	Use:   "load <file>...",
	Short: "Load diffraction files and record them in the catalog",
	Long: `Load .hspy or .blo files (other files are identified by content) and ` +
		`record them in the catalog. Merlin .mib scans need the mib command. ` +
		`With --no-record the files are only summarised; several files are then ` +
		`loaded as generic signals.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		if loadNoRecord {
			opts := []loader.Option{loader.WithCastToElectronDiffraction(cfg.Loader.Cast())}
			var results []*loader.Result
			if len(args) == 1 {
				res, err := loader.Load(ctx, args[0], opts...)
				if err != nil {
					return err
				}
				results = append(results, res)
			} else {
				var err error
				if results, err = loader.LoadMany(ctx, args, opts...); err != nil {
					return err
				}
			}
			for i, res := range results {
				printSignal(out, args[i], res.Format.String(), res.Kind.String(), res.Signal, res.Notice)
			}
			return nil
		}

		svc, closeCatalog, err := openCatalog(nil)
		if err != nil {
			return err
		}
		defer closeCatalog()

		for _, path := range args {
			d, err := svc.Ingest(ctx, path)
			if err != nil {
				return err
			}
			printDataset(out, d)
		}
		return nil
	},
}

func init() {
	loadCmd.Flags().BoolVar(&loadNoRecord, "no-record", false, "summarise without writing to the catalog")
	rootCmd.AddCommand(loadCmd)
}

func printSignal(w io.Writer, path, format, kind string, s *domain.Signal, notice string) {
	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  format:      %s (%s)\n", format, kind)
	fmt.Fprintf(w, "  signal type: %s\n", s.Type)
	fmt.Fprintf(w, "  shape:       %v (navigation %v, signal %v)\n", s.Shape, s.NavigationShape(), s.SignalShape())
	if keV, ok := s.Metadata.GetFloat(domain.MetaBeamEnergy); ok {
		fmt.Fprintf(w, "  beam energy: %g keV\n", keV)
	}
	if notice != "" {
		fmt.Fprintf(w, "  notice:      %s\n", notice)
	}
}

func printDataset(w io.Writer, d *domain.Dataset) {
	fmt.Fprintf(w, "%s  %s\n", d.ID, d.Path)
	fmt.Fprintf(w, "  format:      %s (%s)\n", d.Format, d.LoadKind)
	fmt.Fprintf(w, "  signal type: %s\n", d.SignalType)
	fmt.Fprintf(w, "  shape:       %v (navigation dims %d)\n", d.Shape, d.NavigationDim)
	if d.BeamEnergyKeV != nil {
		fmt.Fprintf(w, "  beam energy: %g keV\n", *d.BeamEnergyKeV)
	}
	if d.WavelengthPM != nil {
		fmt.Fprintf(w, "  wavelength:  %.5f pm\n", *d.WavelengthPM)
	}
	if d.Notice != "" {
		fmt.Fprintf(w, "  notice:      %s\n", d.Notice)
	}
}
