package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/machine-events-service/internal/config"
)

// globalFlags are shared by every subcommand and override config/env.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}

	serve := newServeCommand(g)
	root := &cobra.Command{
		Use:   "api",
		Short: "Machine events service - batch ingestion and defect analytics",
		Long: `Machine events service accepts batches of machine telemetry events,
deduplicates and merges them by event id, and serves defect statistics.

Storage is either in-process memory or Postgres (STORE_DRIVER).`,
		SilenceUsage: true,
		// Run the serve command by default if no subcommand is specified
		RunE: serve.RunE,
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file (env vars override it)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(serve)
	root.AddCommand(newIngestCommand(g))
	root.AddCommand(newBenchCommand(g))
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (g *globalFlags) loadConfig() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	return cfg, nil
}
