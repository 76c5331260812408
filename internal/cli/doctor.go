package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/extract"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check local tooling and platform reachability",
	Long: `Report whether ffmpeg and ffprobe are installed and whether the platform
API answers with the configured key. Exits non-zero when extraction tooling
is missing.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	logger := cliLogger()

	caps := extract.NewDoctor(logger).Get(cmd.Context())
	fmt.Println("Local tools:")
	printTool("ffmpeg", caps.FFmpeg)
	printTool("ffprobe", caps.FFprobe)

	fmt.Println("Platform:")
	if cfg.APIKey == "" {
		fmt.Println("  api       no API key configured (run `scenedex setup`)")
	} else {
		client, err := newClient(cfg, logger)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			fmt.Printf("  api       unreachable: %v\n", err)
		} else {
			fmt.Printf("  api       ok        %s\n", cfg.BaseURL)
		}
	}

	if !caps.Ready() {
		return fmt.Errorf("ffmpeg and ffprobe are required for clip extraction")
	}
	return nil
}

func printTool(name string, tool extract.Tool) {
	if tool.Available {
		version := tool.Version
		if version == "" {
			version = "unknown version"
		}
		fmt.Printf("  %-9s ok        %s (%s)\n", name, tool.Path, version)
		return
	}
	fmt.Printf("  %-9s missing   %s\n", name, tool.Error)
}
