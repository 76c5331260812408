package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/clip"
	"github.com/scenedex/scenedex-agent/internal/config"
	"github.com/scenedex/scenedex-agent/internal/extract"
)

var (
	planDuration        float64
	planInput           string
	planClipLength      float64
	planPolicy          string
	planIncludeOriginal bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan clip windows for a video without cutting anything",
	Long: `Compute the clip windows the agent would extract from a video.

The source is described either by --duration in seconds or by --input,
which probes a local file with ffprobe.

Example:
  scenedex plan --duration 95
  scenedex plan --input talk.mp4 --clip-length 10 --policy overlap_previous --json`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().Float64Var(&planDuration, "duration", 0, "Source duration in seconds")
	planCmd.Flags().StringVar(&planInput, "input", "", "Local video file to probe for duration")
	planCmd.Flags().Float64Var(&planClipLength, "clip-length", 0, "Clip length in seconds (default from config)")
	planCmd.Flags().StringVar(&planPolicy, "policy", "", "Trailing policy: truncate, overlap_previous or keep_short (default from config)")
	planCmd.Flags().BoolVar(&planIncludeOriginal, "include-original", false, "Append the unsplit source as an extra entry")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	if (planDuration == 0) == (planInput == "") {
		return fmt.Errorf("exactly one of --duration or --input is required")
	}

	duration := planDuration
	if planInput != "" {
		probe, err := extract.New(cliLogger()).Probe(cmd.Context(), planInput)
		if err != nil {
			return fmt.Errorf("failed to probe %s: %w", planInput, err)
		}
		duration = probe.Duration
	}

	length, policy, err := clipParams(cfg, planClipLength, planPolicy)
	if err != nil {
		return err
	}

	specs, err := clip.Plan(duration, length, policy, planIncludeOriginal)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(os.Stdout, specs)
	}
	renderPlanTable(os.Stdout, specs)
	return nil
}

// clipParams resolves clip length and trailing policy from flags, falling
// back to the configured defaults.
func clipParams(cfg *config.Config, length float64, policy string) (float64, clip.Policy, error) {
	if length <= 0 {
		length = cfg.ClipLength
	}
	p := cfg.TrailingClipPolicy()
	if policy != "" {
		parsed, err := clip.ParsePolicy(policy)
		if err != nil {
			return 0, "", err
		}
		p = parsed
	}
	return length, p, nil
}

func renderPlanTable(w io.Writer, specs []clip.Spec) {
	fmt.Fprintf(w, "%-6s %10s %10s %10s\n", "INDEX", "START", "END", "LENGTH")
	for _, s := range specs {
		idx := strconv.Itoa(s.Index)
		if s.IsOriginal() {
			idx = "orig"
		}
		fmt.Fprintf(w, "%-6s %10.2f %10.2f %10.2f\n", idx, s.StartTime, s.EndTime, s.Duration())
	}
	fmt.Fprintf(w, "\n%d segments planned\n", len(specs))
}
