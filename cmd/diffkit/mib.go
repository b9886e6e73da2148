package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"diffkit/internal/loader"
)

var (
	mibScanSize  int
	mibSumLength int
	mibNoFlip    bool
	mibOut       string
	mibRecord    bool
)

var mibCmd = &cobra.Command{
	Use:   "mib <file.mib|file.hdr>",
	Short: "Load a Merlin scan with flyback correction",
	Long: `Load a square Merlin .mib scan, drop the flyback column and first row, ` +
		`and optionally save the result as .hspy or record it in the catalog.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		opts := mibOptions()
		if mibSumLength > 0 {
			opts = append(opts, loader.WithSumLength(mibSumLength))
		}
		if mibNoFlip {
			opts = append(opts, loader.WithFlipPatterns(false))
		}

		s, err := loader.LoadMIB(cmd.Context(), path, mibScanSize, opts...)
		if err != nil {
			return err
		}
		printSignal(cmd.OutOrStdout(), path, loader.FormatMIB.String(), loader.KindTyped.String(), s, "")

		if mibOut != "" {
			if err := loader.SaveHSPY(mibOut, s); err != nil {
				return err
			}
			log.WithField("path", mibOut).Info("scan saved")
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", mibOut)
		}

		if mibRecord {
			svc, closeCatalog, err := openCatalog(nil)
			if err != nil {
				return err
			}
			defer closeCatalog()

			d, err := svc.RecordMIB(cmd.Context(), path, s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s\n", d.ID)
		}
		return nil
	},
}

func init() {
	mibCmd.Flags().IntVar(&mibScanSize, "scan-size", 0, "scan side length in beam positions")
	mibCmd.Flags().IntVar(&mibSumLength, "sum-length", 0, "rows summed to find the flyback column (default from config)")
	mibCmd.Flags().BoolVar(&mibNoFlip, "no-flip", false, "keep patterns in detector orientation")
	mibCmd.Flags().StringVar(&mibOut, "out", "", "save the corrected scan to this .hspy file")
	mibCmd.Flags().BoolVar(&mibRecord, "record", false, "record the scan in the catalog")
	_ = mibCmd.MarkFlagRequired("scan-size")
	rootCmd.AddCommand(mibCmd)
}
