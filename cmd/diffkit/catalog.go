package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"diffkit/internal/domain"
)

var (
	listFormat     string
	listSignalType string
	listLoadKind   string
	listLimit      int

	metadataFormat string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and manage recorded datasets",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded datasets, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter := domain.DatasetFilter{
			Format:   listFormat,
			LoadKind: domain.LoadKind(listLoadKind),
			Limit:    listLimit,
		}
		if cmd.Flags().Changed("signal-type") {
			name := listSignalType
			if name == "generic" {
				name = ""
			}
			t, err := domain.ParseSignalType(name)
			if err != nil {
				return err
			}
			filter.SignalType = &t
		}

		svc, closeCatalog, err := openCatalog(nil)
		if err != nil {
			return err
		}
		defer closeCatalog()

		datasets, err := svc.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(datasets) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no datasets")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFORMAT\tTYPE\tSHAPE\tWAVELENGTH (pm)\tPATH")
		for _, d := range datasets {
			lambda := "-"
			if d.WavelengthPM != nil {
				lambda = fmt.Sprintf("%.5f", *d.WavelengthPM)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\t%s\n", d.ID, d.Format, d.SignalType, d.Shape, lambda, d.Path)
		}
		return tw.Flush()
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a dataset as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeCatalog, err := openCatalog(nil)
		if err != nil {
			return err
		}
		defer closeCatalog()

		d, err := svc.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	},
}

var catalogMetadataCmd = &cobra.Command{
	Use:   "metadata <id>",
	Short: "Export a dataset's metadata tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeCatalog, err := openCatalog(nil)
		if err != nil {
			return err
		}
		defer closeCatalog()

		return svc.Metadata(cmd.Context(), args[0], metadataFormat, cmd.OutOrStdout())
	},
}

var catalogDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a dataset from the catalog (the file is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeCatalog, err := openCatalog(nil)
		if err != nil {
			return err
		}
		defer closeCatalog()

		if err := svc.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func init() {
	catalogListCmd.Flags().StringVar(&listFormat, "source-format", "", "only datasets loaded from this file format (hspy, blo, mib)")
	catalogListCmd.Flags().StringVar(&listSignalType, "signal-type", "", "only datasets of this signal type (generic for untyped)")
	catalogListCmd.Flags().StringVar(&listLoadKind, "kind", "", "only typed or generic loads")
	catalogListCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum number of datasets (0 for all)")

	catalogMetadataCmd.Flags().StringVar(&metadataFormat, "format", "yaml", "output format (yaml or json)")

	catalogCmd.AddCommand(catalogListCmd, catalogShowCmd, catalogMetadataCmd, catalogDeleteCmd)
	rootCmd.AddCommand(catalogCmd)
}
