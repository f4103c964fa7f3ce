package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"geoetl/pkg/config"
	"geoetl/pkg/logger"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "geoetl",
	Short: "Convert whole-slide segmentation marks into GeoSPARQL turtle",
	Long: `geoetl converts segmentation marks stored in MongoDB into compressed
GeoSPARQL turtle artifacts, one directory per analysis/image unit.

Runs are checkpointed: an interrupted conversion resumes where it left off,
and the reconcile command audits the checkpoint against the source to find
and replay any units that fell through the cracks.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig reads the config file and applies global flag overrides, then
// initializes the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}
