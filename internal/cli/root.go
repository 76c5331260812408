// Package cli implements the scenedex command tree. One-shot commands talk
// to the hosted platform directly; serve runs the local agent daemon.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/cloud"
	"github.com/scenedex/scenedex-agent/internal/config"
	"github.com/scenedex/scenedex-agent/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	jsonOut  bool

	cfg    *config.Config
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "scenedex",
	Short: "Plan, cut, index and search video with the Scenedex platform",
	Long: `scenedex plans clip windows for videos, cuts them with ffmpeg, and runs
the upload / index / summarize / search lifecycle against the hosted
video-understanding platform.

One-shot commands (submit, summarize, ask, search, embed, ...) need only an
API key. "scenedex serve" runs the background agent: a local catalog, a job
runner, an optional watch folder, and a loopback HTTP API.

Example:
  scenedex setup
  scenedex submit talk.mp4
  scenedex search "speaker demos the product" --edl demo.edl`,
	SilenceUsage: true,
}

// Execute runs the root command. It is the only entry point main needs.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print machine-readable JSON where supported")
}

func initConfig() {
	cfg, cfgErr = config.Load(cfgFile)
	if cfgErr == nil && logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

// getConfig returns the configuration loaded during command init.
func getConfig() (*config.Config, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, fmt.Errorf("failed to load config: %w", cfgErr)
		}
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}

// cliLogger builds the logger for one-shot commands. Without an explicit
// --log-level these stay on warn so command output is the only thing that
// normally reaches the terminal.
func cliLogger() *slog.Logger {
	level := "warn"
	if logLevel != "" {
		level = logLevel
	}
	return logging.NewLogger(level)
}

// newClient builds the platform client, failing early when no API key is
// configured.
func newClient(cfg *config.Config, logger *slog.Logger) (*cloud.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured: set %s or run `scenedex setup`", config.EnvAPIKey)
	}
	return cloud.New(cfg.BaseURL, cfg.APIKey, logger), nil
}

func waitOptions(cfg *config.Config) cloud.WaitOptions {
	return cloud.WaitOptions{
		Interval: cfg.PollInterval,
		Timeout:  cfg.PollTimeout,
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
