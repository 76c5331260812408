package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/uploader"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a video to the platform as a reusable asset",
	Long: `Upload a local video with the chunked multipart flow and print the
resulting asset id and URL. The asset URL can be fed to "scenedex submit"
or used as a task source without re-uploading the file.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	logger := cliLogger()
	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	up := uploader.New(client.Assets(), logger, uploader.Options{
		Workers:     cfg.UploadWorkers,
		ReportBatch: cfg.ReportBatch,
		Wait:        waitOptions(cfg),
	})

	fmt.Fprintf(os.Stderr, "Uploading %s...\n", filepath.Base(args[0]))
	result, err := up.Upload(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	if jsonOut {
		return printJSON(os.Stdout, result)
	}
	fmt.Printf("Asset ID:  %s\n", result.AssetID)
	fmt.Printf("Asset URL: %s\n", result.AssetURL)
	fmt.Printf("Uploaded:  %.2f MB in %d chunks\n", float64(result.Bytes)/1024/1024, result.TotalChunks)
	return nil
}
