package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/cloud"
	"github.com/scenedex/scenedex-agent/internal/config"
	"github.com/scenedex/scenedex-agent/internal/export"
)

var (
	searchIndexID string
	searchLimit   int
	searchEDLPath string
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search an index for moments matching a text query",
	Long: `Search the configured index for video moments matching a text query.

With --edl the hits are also written as a CMX 3600 cutlist whose clip names
are the platform video ids, ready to relink in an editor.

Example:
  scenedex search "speaker demos the product"
  scenedex search crowd cheering --limit 5 --edl cheers.edl`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchIndexID, "index", "", "Index id to query (default from config)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum hits to return")
	searchCmd.Flags().StringVar(&searchEDLPath, "edl", "", "Also write the hits as a CMX 3600 EDL to this path")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, cliLogger())
	if err != nil {
		return err
	}

	indexID, err := requireIndex(cfg, searchIndexID)
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	result, err := client.Search().Query(cmd.Context(), cloud.SearchRequest{
		IndexID:   indexID,
		QueryText: query,
		Options:   cfg.ModelOptions,
		PageLimit: searchLimit,
	})
	if err != nil {
		return err
	}

	if searchEDLPath != "" {
		if err := writeSearchEDL(searchEDLPath, query, result.Data); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Cutlist written to %s\n", searchEDLPath)
	}

	if jsonOut {
		return printJSON(os.Stdout, result)
	}
	if len(result.Data) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for i, hit := range result.Data {
		fmt.Printf("%2d. %-28s %8.2fs - %8.2fs  score %.2f", i+1, hit.VideoID, hit.Start, hit.End, hit.Score)
		if hit.Confidence != "" {
			fmt.Printf("  (%s)", hit.Confidence)
		}
		fmt.Println()
	}
	if result.PageInfo.TotalResults > len(result.Data) {
		fmt.Printf("\nshowing %d of %d results\n", len(result.Data), result.PageInfo.TotalResults)
	}
	return nil
}

// requireIndex returns the index to query. Search never creates one: an
// empty result from a fresh index would look like a bad query.
func requireIndex(cfg *config.Config, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if cfg.IndexID != "" {
		return cfg.IndexID, nil
	}
	return "", fmt.Errorf("no index configured: pass --index or set %s", config.EnvIndexID)
}

// writeSearchEDL renders hits as a cutlist in result order. Platform video
// ids stand in for media paths; the editor relinks them to local files.
func writeSearchEDL(path, query string, hits []cloud.SearchHit) error {
	clips := make([]export.ResolvedClip, 0, len(hits))
	for _, hit := range hits {
		clips = append(clips, export.ResolvedClip{
			ClipName:  hit.VideoID,
			MediaPath: hit.VideoID,
			StartSec:  hit.Start,
			EndSec:    hit.End,
		})
	}

	title := export.SanitizeName("search "+query, 60)
	edl := export.GenerateEDL(clips, title, 30)
	if err := os.WriteFile(path, []byte(edl), 0o644); err != nil {
		return fmt.Errorf("failed to write cutlist: %w", err)
	}
	return nil
}
