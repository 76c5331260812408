package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/catalog"
	"github.com/scenedex/scenedex-agent/internal/cloud"
	"github.com/scenedex/scenedex-agent/internal/config"
)

var submitIndexID string

var submitCmd = &cobra.Command{
	Use:   "submit <path-or-url>",
	Short: "Index a video on the platform in one blocking call",
	Long: `Run the ingest flow without the agent daemon: resolve or create the
target index, create an indexing task from a local file or URL, and wait
until the platform reports the video ready.

Example:
  scenedex submit talk.mp4
  scenedex submit https://youtu.be/dQw4w9WgXcQ --index idx_123`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVar(&submitIndexID, "index", "", "Target index id (default from config, created when missing)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, cliLogger())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	req := cloud.CreateTaskRequest{}
	source := args[0]
	if strings.Contains(source, "://") {
		if _, err := catalog.ClassifyURL(source); err != nil {
			return err
		}
		req.VideoURL = source
	} else {
		if _, err := os.Stat(source); err != nil {
			return fmt.Errorf("cannot read %s: %w", source, err)
		}
		req.VideoPath = source
	}

	req.IndexID, err = resolveIndex(ctx, cfg, client, submitIndexID)
	if err != nil {
		return err
	}

	task, err := client.Tasks().Create(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Indexing task %s created on index %s\n", task.ID, req.IndexID)

	opts := waitOptions(cfg)
	opts.OnPoll = func(status string, elapsed time.Duration) {
		fmt.Fprintf(os.Stderr, "  %-12s %4.0fs\n", status, elapsed.Seconds())
	}
	final, err := client.Tasks().WaitForReady(ctx, task.ID, opts)
	if err != nil {
		var failed *cloud.TaskFailedError
		if errors.As(err, &failed) {
			return fmt.Errorf("platform indexing failed with status %q", failed.Status)
		}
		return fmt.Errorf("indexing did not finish: %w", err)
	}

	if jsonOut {
		return printJSON(os.Stdout, final)
	}
	fmt.Printf("Video indexed. Platform video id: %s\n", final.VideoID)
	return nil
}

// resolveIndex picks the index to ingest into: the explicit flag, the
// configured id, or a freshly created index under the configured name.
func resolveIndex(ctx context.Context, cfg *config.Config, client *cloud.Client, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if cfg.IndexID != "" {
		return cfg.IndexID, nil
	}

	idx, err := client.Indexes().Create(ctx, cloud.CreateIndexRequest{
		Name: cfg.IndexName,
		Models: []cloud.IndexModel{
			{Name: cfg.AnalysisModel, Options: cfg.ModelOptions},
			{Name: cfg.EmbeddingModel, Options: cfg.ModelOptions},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create index %q: %w", cfg.IndexName, err)
	}
	fmt.Fprintf(os.Stderr, "Created index %s (%s); pin it with %s=%s\n",
		idx.ID, cfg.IndexName, config.EnvIndexID, idx.ID)
	return idx.ID, nil
}
