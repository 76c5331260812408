package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/cloud"
	"github.com/scenedex/scenedex-agent/internal/config"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage platform indexes",
}

var indexCreateName string

var indexCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a platform index with the configured models",
	RunE:  runIndexCreate,
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the indexes visible to the API key",
	RunE:  runIndexList,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexCreateCmd)
	indexCmd.AddCommand(indexListCmd)
	indexCreateCmd.Flags().StringVar(&indexCreateName, "name", "", "Index name (default from config)")
}

func runIndexCreate(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, cliLogger())
	if err != nil {
		return err
	}

	name := indexCreateName
	if name == "" {
		name = cfg.IndexName
	}

	idx, err := client.Indexes().Create(cmd.Context(), cloud.CreateIndexRequest{
		Name: name,
		Models: []cloud.IndexModel{
			{Name: cfg.AnalysisModel, Options: cfg.ModelOptions},
			{Name: cfg.EmbeddingModel, Options: cfg.ModelOptions},
		},
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(os.Stdout, idx)
	}
	fmt.Printf("Index created: %s (%s)\n", idx.ID, name)
	fmt.Printf("Pin it with %s=%s or index_id in config.yaml\n", config.EnvIndexID, idx.ID)
	return nil
}

func runIndexList(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, cliLogger())
	if err != nil {
		return err
	}

	indexes, err := client.Indexes().List(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(os.Stdout, indexes)
	}
	if len(indexes) == 0 {
		fmt.Println("no indexes")
		return nil
	}
	fmt.Printf("%-28s %-24s %7s  %s\n", "ID", "NAME", "VIDEOS", "CREATED")
	for _, idx := range indexes {
		fmt.Printf("%-28s %-24s %7d  %s\n", idx.ID, idx.Name, idx.VideoCount, idx.CreatedAt)
	}
	return nil
}
