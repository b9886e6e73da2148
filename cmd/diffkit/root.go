package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"diffkit/internal/config"
	"diffkit/internal/loader"
	"diffkit/internal/repository/sqlite"
	"diffkit/internal/service"
)

var (
	cfgFile string
	dbPath  string

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "diffkit",
	Short: "Electron wavelength calculator and diffraction file catalog.",
	Long: `diffkit computes relativistic electron wavelengths and loads electron ` +
		`diffraction data (.hspy, .blo and Merlin .mib scans) into a searchable catalog.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: search "+config.EnvConfigPath+", ./diffkit.yaml, ~/.config/diffkit)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "catalog database path (overrides config)")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	source := cfgFile
	if cfgFile != "" {
		if err = config.LoadDotEnv(); err != nil {
			return err
		}
		if cfg, _, err = config.LoadFromPath(cfgFile); err != nil {
			return err
		}
		cfg.ApplyEnv()
	} else {
		if cfg, source, err = config.Load(); err != nil {
			return err
		}
	}

	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	log.SetOutput(cmd.ErrOrStderr())
	if err := cfg.Log.ConfigureStandardLogger(); err != nil {
		return err
	}
	if source == "" {
		source = "defaults"
	}
	log.WithField("config", source).Debug("configuration loaded")
	return nil
}

// mibOptions maps the loader.mib config section onto LoadMIB options.
func mibOptions() []loader.MIBOption {
	return []loader.MIBOption{
		loader.WithSumLength(cfg.Loader.MIB.SumLength),
		loader.WithFlipPatterns(cfg.Loader.MIB.Flip()),
	}
}

// openCatalog opens the configured database. The returned func closes it.
func openCatalog(bus *service.EventBus, opts ...service.CatalogOption) (*service.CatalogService, func(), error) {
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	log.WithField("path", cfg.Database.Path).Debug("catalog opened")

	if bus == nil {
		bus = service.NewEventBus()
	}
	opts = append([]service.CatalogOption{
		service.WithCast(cfg.Loader.Cast()),
		service.WithMIBOptions(mibOptions()...),
	}, opts...)
	svc := service.NewCatalogService(repo, bus, opts...)
	closer := func() {
		if err := repo.Close(); err != nil {
			log.WithError(err).Warn("failed to close catalog")
		}
	}
	return svc, closer, nil
}
