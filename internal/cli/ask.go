package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/cloud"
)

var askTemperature float64

var askCmd = &cobra.Command{
	Use:   "ask <video-id> <question...>",
	Short: "Ask an open-ended question about an indexed video",
	Long: `Ask a free-form question about an indexed video and print the answer.

Example:
  scenedex ask tlvid_abc123 "what product is being demoed?"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().Float64Var(&askTemperature, "temperature", -1, "Generation temperature in [0.0, 1.0] (default from config)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, cliLogger())
	if err != nil {
		return err
	}

	temperature := cfg.Temperature
	if askTemperature >= 0 {
		temperature = askTemperature
	}

	result, err := client.Generate().Text(cmd.Context(), cloud.TextRequest{
		VideoID:     args[0],
		Prompt:      strings.Join(args[1:], " "),
		Temperature: temperature,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(os.Stdout, result)
	}
	fmt.Println(result.Data)
	return nil
}
