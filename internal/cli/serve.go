package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/api"
	"github.com/scenedex/scenedex-agent/internal/catalog"
	"github.com/scenedex/scenedex-agent/internal/cloud"
	"github.com/scenedex/scenedex-agent/internal/config"
	"github.com/scenedex/scenedex-agent/internal/db"
	"github.com/scenedex/scenedex-agent/internal/extract"
	"github.com/scenedex/scenedex-agent/internal/logging"
	"github.com/scenedex/scenedex-agent/internal/playback"
	"github.com/scenedex/scenedex-agent/internal/ui"
	"github.com/scenedex/scenedex-agent/internal/uploader"
	"github.com/scenedex/scenedex-agent/internal/vectors"
	"github.com/scenedex/scenedex-agent/internal/watcher"
)

var serveHeadless bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent daemon",
	Long: `Run the background agent: the local catalog, the job runner, the watch
folder scanner, the loopback HTTP API, and the system tray. Stops on SIGINT,
SIGTERM, or Quit from the tray.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveHeadless, "headless", false, "Run without the system tray")
}

func runServe(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	cfg, err := getConfig()
	if err != nil {
		return err
	}

	for _, dir := range []string{cfg.DataDir, cfg.ClipsDir(), cfg.ExportsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting scenedex agent",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := catalog.NewRepository(database.Conn())
	catalogSvc := catalog.NewService(repo, logger)

	var client *cloud.Client
	if cfg.APIKey != "" {
		client = cloud.New(cfg.BaseURL, cfg.APIKey, logger)
	} else {
		logger.Warn("no platform API key configured, ingest jobs will fail until one is set")
	}

	extractor := extract.New(logger)
	doctor := extract.NewDoctor(logger)
	if caps := doctor.Get(cmd.Context()); !caps.Ready() {
		logger.Warn("ffmpeg tooling incomplete, clip extraction is disabled until installed",
			"ffmpeg", caps.FFmpeg.Available,
			"ffprobe", caps.FFprobe.Available,
		)
	}

	var fileUp catalog.FileUploader
	if client != nil {
		fileUp = uploader.New(client.Assets(), logger, uploader.Options{
			Workers:     cfg.UploadWorkers,
			ReportBatch: cfg.ReportBatch,
			Wait:        waitOptions(cfg),
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store *vectors.Store
	if cfg.PostgresURL != "" {
		s, err := vectors.Open(ctx, cfg.PostgresURL, 0, logger)
		if err != nil {
			logger.Warn("vector store unavailable, search falls back to the platform", "error", err)
		} else {
			defer s.Close()
			store = s
		}
	}

	var runnerVectors catalog.VectorStore
	if store != nil {
		runnerVectors = store
	}

	runner := catalog.NewRunner(repo, client, fileUp, extractor, runnerVectors, cfg, logger)
	go runner.Start(ctx)

	if cfg.WatchDir != "" {
		scanner := watcher.NewScanner(catalogSvc, cfg.WatchDir, cfg.ScanInterval, logger)
		go scanner.Run(ctx)
	}

	srvCfg := api.ServerConfig{
		Port:           cfg.Port,
		Config:         cfg,
		CatalogService: catalogSvc,
		Repository:     repo,
		Runner:         runner,
		Doctor:         doctor,
		Prober:         extractor,
		Playback:       playback.NewServer(logger),
		Logger:         logger,
		StartTime:      startTime,
	}
	if client != nil {
		srvCfg.Generator = client.Generate()
		srvCfg.Embedder = client.Embed()
		srvCfg.Searcher = client.Search()
	}
	if store != nil {
		srvCfg.Vectors = store
	}

	apiServer := api.NewServer(srvCfg)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("http server error", "error", err)
		}
	}()

	printBanner(cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig.String())
			quit()
		case <-quitCh:
		}
	}()

	if cfg.Headless || serveHeadless {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			CatalogService: catalogSvc,
			Runner:         runner,
			Logger:         logger,
			OnOpenDataDir:  func() error { return openFolder(cfg.DataDir) },
			OnQuit:         quit,
		})
		go updateTrayStats(ctx, tray, catalogSvc)
		go tray.Run()
	}

	<-quitCh

	logger.Info("starting graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down http server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func printBanner(cfg *config.Config) {
	token := cfg.APIToken
	if token == "" {
		token = "(disabled, loopback only)"
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   SCENEDEX AGENT v0.1.0                    ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:   http://127.0.0.1:%-29d ║\n", cfg.Port)
	fmt.Printf("║  API Token: %-46s ║\n", token)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// updateTrayStats refreshes the tray's status and video counters on a slow
// tick until ctx is cancelled.
func updateTrayStats(ctx context.Context, tray *ui.Tray, svc catalog.CatalogService) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := svc.Stats(ctx)
			if err != nil {
				continue
			}
			ready := stats.Videos[catalog.VideoStatusReady]
			queued := stats.TotalVideos - ready - stats.Videos[catalog.VideoStatusFailed]
			if queued < 0 {
				queued = 0
			}
			tray.UpdateVideoCount(ready, queued)
			if stats.ActiveJobs > 0 {
				tray.UpdateStatus("Working")
			} else {
				tray.UpdateStatus("Idle")
			}
		}
	}
}

// openFolder opens dir in the OS file manager.
func openFolder(dir string) error {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", dir)
	case "windows":
		c = exec.Command("explorer", dir)
	default:
		c = exec.Command("xdg-open", dir)
	}
	return c.Start()
}
