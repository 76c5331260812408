package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/clip"
	"github.com/scenedex/scenedex-agent/internal/extract"
)

var (
	extractOut             string
	extractClipLength      float64
	extractPolicy          string
	extractIncludeOriginal bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Cut a local video into clips with ffmpeg",
	Long: `Probe a local video, plan its clip windows, and cut one file per window.

Example:
  scenedex extract talk.mp4
  scenedex extract talk.mp4 --clip-length 10 --policy truncate --out ./clips`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extractOut, "out", "", "Output directory (default <data-dir>/clips/adhoc)")
	extractCmd.Flags().Float64Var(&extractClipLength, "clip-length", 0, "Clip length in seconds (default from config)")
	extractCmd.Flags().StringVar(&extractPolicy, "policy", "", "Trailing policy: truncate, overlap_previous or keep_short (default from config)")
	extractCmd.Flags().BoolVar(&extractIncludeOriginal, "include-original", false, "Also copy the unsplit source as a clip")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	src := args[0]
	ex := extract.New(cliLogger())

	probe, err := ex.Probe(cmd.Context(), src)
	if err != nil {
		return fmt.Errorf("failed to probe %s: %w", src, err)
	}

	length, policy, err := clipParams(cfg, extractClipLength, extractPolicy)
	if err != nil {
		return err
	}

	specs, err := clip.Plan(probe.Duration, length, policy, extractIncludeOriginal)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		fmt.Println("nothing to extract: the plan produced no segments")
		return nil
	}

	outDir := extractOut
	if outDir == "" {
		outDir = filepath.Join(cfg.ClipsDir(), "adhoc")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	asset := clip.Asset{Path: src, Duration: probe.Duration}
	clips, err := ex.Extract(cmd.Context(), asset, specs, outDir)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(os.Stdout, clips)
	}
	for _, c := range clips {
		fmt.Printf("%s  [%.2fs - %.2fs]\n", c.Path, c.Spec.StartTime, c.Spec.EndTime)
	}
	fmt.Printf("\n%d clips written to %s\n", len(clips), outDir)
	return nil
}
