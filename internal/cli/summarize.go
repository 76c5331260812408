package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/cloud"
)

var (
	summarizeType        string
	summarizePrompt      string
	summarizeTemperature float64
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <video-id>",
	Short: "Generate a summary, chapters or highlights for an indexed video",
	Long: `Generate text about an indexed video. The video id is the platform id
printed by "scenedex submit" or "scenedex task wait".

Example:
  scenedex summarize tlvid_abc123
  scenedex summarize tlvid_abc123 --type chapter
  scenedex summarize tlvid_abc123 --prompt "focus on the product demo"`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().StringVar(&summarizeType, "type", cloud.SummaryTypeSummary, "One of summary, chapter or highlight")
	summarizeCmd.Flags().StringVar(&summarizePrompt, "prompt", "", "Steer the output with a custom instruction")
	summarizeCmd.Flags().Float64Var(&summarizeTemperature, "temperature", -1, "Generation temperature in [0.0, 1.0] (default from config)")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, cliLogger())
	if err != nil {
		return err
	}

	temperature := cfg.Temperature
	if summarizeTemperature >= 0 {
		temperature = summarizeTemperature
	}

	result, err := client.Generate().Summarize(cmd.Context(), cloud.SummarizeRequest{
		VideoID:     args[0],
		Type:        summarizeType,
		Prompt:      summarizePrompt,
		Temperature: temperature,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(os.Stdout, result)
	}
	switch summarizeType {
	case cloud.SummaryTypeChapter:
		for _, ch := range result.Chapters {
			fmt.Printf("[%7.1fs - %7.1fs] %s\n", ch.Start, ch.End, ch.Title)
			if ch.Summary != "" {
				fmt.Printf("    %s\n", ch.Summary)
			}
		}
	case cloud.SummaryTypeHighlight:
		for _, h := range result.Highlights {
			fmt.Printf("[%7.1fs - %7.1fs] %s\n", h.Start, h.End, h.Highlight)
		}
	default:
		fmt.Println(result.Summary)
	}
	return nil
}
