package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/aidalocal/internal/config"
	"github.com/spf13/cobra"
)

// settings is shared by the subcommands once PersistentPreRunE has run.
type settings struct {
	configPath string
	logLevel   string
	dataDir    string
	cfg        *config.Config
}

func NewRootCmd() *cobra.Command {
	s := &settings{}

	cmd := &cobra.Command{
		Use:   "aidalocal",
		Short: "Local image catalog and annotation store for the AIDA viewer",
		Long: `aidalocal serves images from a local data directory to the AIDA annotation
viewer and stores the annotations it produces.

Raster annotation layers sent inline by the viewer are written out as image
files and referenced by URL, so saved annotation documents stay small and can
be opened from any machine on the network.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return s.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&s.configPath, "config", config.DefaultFile, "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&s.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&s.dataDir, "data", "", "Data directory (default \"data\")")

	cmd.AddCommand(newServeCmd(s))
	cmd.AddCommand(newCatalogCmd(s))

	return cmd
}

func (s *settings) load(cmd *cobra.Command) error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = s.logLevel
	}
	if cmd.Flags().Changed("data") {
		cfg.DataDir = s.dataDir
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	s.cfg = cfg
	return nil
}
