package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/cloud"
	"github.com/scenedex/scenedex-agent/internal/config"
	"github.com/scenedex/scenedex-agent/internal/export"
	"github.com/scenedex/scenedex-agent/internal/vectors"
)

var (
	embedClipLength float64
	embedStore      bool
	embedExportKey  string
	embedOut        string
	embedVideoID    string
)

var embedCmd = &cobra.Command{
	Use:   "embed <path-or-url>",
	Short: "Create video embeddings and deliver them to a sink",
	Long: `Create an embedding task for a video, wait for it to finish, and deliver
the segment vectors. By default segments are printed as NDJSON; --out writes
them to a file, --store inserts them into the configured Postgres vector
store, and --export uploads NDJSON to the configured object store bucket
under the given key.

Example:
  scenedex embed talk.mp4 > talk.ndjson
  scenedex embed talk.mp4 --store --video-id vid_123
  scenedex embed https://cdn.example.com/talk.mp4 --export embeds/talk.ndjson`,
	Args: cobra.ExactArgs(1),
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().Float64Var(&embedClipLength, "clip-length", 0, "Segment length in seconds (default from config)")
	embedCmd.Flags().BoolVar(&embedStore, "store", false, "Insert segments into the Postgres vector store")
	embedCmd.Flags().StringVar(&embedExportKey, "export", "", "Upload NDJSON to the object store under this key")
	embedCmd.Flags().StringVar(&embedOut, "out", "", "Write NDJSON to this file instead of stdout")
	embedCmd.Flags().StringVar(&embedVideoID, "video-id", "", "Video id recorded with the segments (default the task id)")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	logger := cliLogger()
	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	req := cloud.CreateVideoTaskRequest{
		Model:      cfg.EmbeddingModel,
		ClipLength: cfg.ClipLength,
	}
	if embedClipLength > 0 {
		req.ClipLength = embedClipLength
	}
	source := args[0]
	if strings.Contains(source, "://") {
		req.VideoURL = source
	} else {
		if _, err := os.Stat(source); err != nil {
			return fmt.Errorf("cannot read %s: %w", source, err)
		}
		req.VideoPath = source
	}

	task, err := client.Embed().CreateVideoTask(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Embedding task %s created\n", task.ID)

	opts := waitOptions(cfg)
	opts.OnPoll = func(status string, elapsed time.Duration) {
		fmt.Fprintf(os.Stderr, "  %-12s %4.0fs\n", status, elapsed.Seconds())
	}
	if _, err := client.Embed().WaitForVideoTask(ctx, task.ID, opts); err != nil {
		return fmt.Errorf("embedding did not finish: %w", err)
	}

	result, err := client.Embed().RetrieveVideoTask(ctx, task.ID)
	if err != nil {
		return err
	}

	segments := result.VideoEmbedding.Segments
	videoID := embedVideoID
	if videoID == "" {
		videoID = task.ID
	}
	model := result.ModelName
	if model == "" {
		model = cfg.EmbeddingModel
	}
	fmt.Fprintf(os.Stderr, "%d segments embedded with %s\n", len(segments), model)

	switch {
	case embedStore:
		if cfg.PostgresURL == "" {
			return fmt.Errorf("no postgres url configured: set %s or run `scenedex setup`", config.EnvPostgresURL)
		}
		dims := 0
		if len(segments) > 0 {
			dims = len(segments[0].Float)
		}
		store, err := vectors.Open(ctx, cfg.PostgresURL, dims, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		n, err := store.InsertSegments(ctx, videoID, model, segments)
		if err != nil {
			return err
		}
		fmt.Printf("%d segments stored for %s\n", n, videoID)
		return nil

	case embedExportKey != "":
		store, err := export.NewObjectStore(export.ObjectStoreConfig{
			Endpoint:  cfg.ObjectEndpoint,
			AccessKey: cfg.ObjectAccess,
			SecretKey: cfg.ObjectSecret,
			Bucket:    cfg.ObjectBucket,
			UseSSL:    cfg.ObjectUseSSL,
		}, logger)
		if err != nil {
			return err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}
		if err := store.PutNDJSON(ctx, embedExportKey, videoID, model, segments); err != nil {
			return err
		}
		fmt.Printf("Segments uploaded to %s/%s\n", cfg.ObjectBucket, embedExportKey)
		return nil

	case embedOut != "":
		if err := export.WriteNDJSONFile(embedOut, videoID, model, segments); err != nil {
			return err
		}
		fmt.Printf("Segments written to %s\n", embedOut)
		return nil

	default:
		return export.WriteNDJSON(os.Stdout, videoID, model, segments)
	}
}
