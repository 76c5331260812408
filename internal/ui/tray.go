package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
	"github.com/scenedex/scenedex-agent/internal/catalog"
)

type Tray struct {
	catalogSvc catalog.CatalogService
	runner     *catalog.Runner
	logger     *slog.Logger

	statusItem *systray.MenuItem
	videosItem *systray.MenuItem
	pauseItem  *systray.MenuItem

	mu sync.Mutex

	onOpenDataDir func() error
	onQuit        func()
}

type TrayConfig struct {
	CatalogService catalog.CatalogService
	Runner         *catalog.Runner
	Logger         *slog.Logger
	OnOpenDataDir  func() error
	OnQuit         func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		catalogSvc:    cfg.CatalogService,
		runner:        cfg.Runner,
		logger:        cfg.Logger,
		onOpenDataDir: cfg.OnOpenDataDir,
		onQuit:        cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Scenedex")
	systray.SetTooltip("Scenedex Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.videosItem = systray.AddMenuItem("Videos: 0", "Cataloged videos")
	t.videosItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause processing")

	openDataItem := systray.AddMenuItem("Open Data Folder...", "Open the agent data folder")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Scenedex Agent")

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-openDataItem.ClickedCh:
				t.handleOpenDataDir()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) handleOpenDataDir() {
	if t.onOpenDataDir != nil {
		if err := t.onOpenDataDir(); err != nil {
			t.logger.Error("failed to open data folder", "error", err)
		}
	}
}

// UpdateStatus refreshes the status line unless the runner is paused,
// in which case the pause label wins. Safe to call before the tray is
// ready; menu items exist only after systray runs onReady.
func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}
	if t.runner != nil && t.runner.IsPaused() {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) UpdateVideoCount(ready, queued int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.videosItem == nil {
		return
	}
	if queued > 0 {
		t.videosItem.SetTitle(fmt.Sprintf("Videos: %d ready, %d queued", ready, queued))
		return
	}
	t.videosItem.SetTitle(fmt.Sprintf("Videos: %d", ready))
}

func (t *Tray) Quit() {
	systray.Quit()
}
