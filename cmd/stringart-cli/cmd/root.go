// Package cmd implements the stringart-cli command tree, following
// this module's teacher pack's flag/config/logger bring-up sequencing
// (cmd/api/main.go) wrapped in the cobra command-tree shape the pack's
// image-pipeline CLI uses (tgimg's cli/cmd package).
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/your-org/stringart/internal/config"
	"github.com/your-org/stringart/internal/observability"
)

var (
	version    = "0.1.0"
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "stringart-cli",
	Short: "Generate physical string-art threading plans from images",
	Long: `stringart-cli turns a source image into a pin-and-thread plan: a
circular, square, or rectangular board of pins and an ordered sequence of
straight-line thread connections that, composited together, approximate
the source image.`,
	Version:           version,
	PersistentPreRunE: loadConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to config file")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"stringart-cli %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// loadConfig mirrors the teacher's cmd/*/main.go bring-up: load .env
// overrides (if present), load YAML config, install the slog default
// logger. A missing config file falls back to in-process defaults rather
// than exiting, since the CLI is useful without one for quick local runs.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		loaded = &config.Config{}
		loaded.Logging.Level = "info"
		loaded.Logging.Format = "text"
	}
	cfg = loaded

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("config loaded", "path", configPath)
	return nil
}
