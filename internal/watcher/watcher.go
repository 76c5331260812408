package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/scenedex/scenedex-agent/internal/catalog"
)

// Scanner polls a watch folder and submits new video files to the catalog.
// A file is only submitted once its size is unchanged between two consecutive
// scans, which keeps half-copied files out of the pipeline. The catalog's
// fingerprint dedupe makes repeat submissions across restarts harmless.
type Scanner struct {
	catalogSvc catalog.CatalogService
	dir        string
	interval   time.Duration
	logger     *slog.Logger

	mu    sync.Mutex
	sizes map[string]int64
	done  map[string]bool
}

func NewScanner(svc catalog.CatalogService, dir string, interval time.Duration, logger *slog.Logger) *Scanner {
	return &Scanner{
		catalogSvc: svc,
		dir:        dir,
		interval:   interval,
		logger:     logger,
		sizes:      make(map[string]int64),
		done:       make(map[string]bool),
	}
}

// Run scans once immediately, then on every tick until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	s.logger.Info("watch folder scanner started", "dir", s.dir, "interval", s.interval.String())

	s.Scan(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watch folder scanner stopped")
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan walks the watch folder once. Exported so callers can force a pass
// without waiting for the ticker.
func (s *Scanner) Scan(ctx context.Context) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("failed to read watch folder", "dir", s.dir, "error", err)
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || !catalog.IsVideoFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("failed to stat watched file", "name", entry.Name(), "error", err)
			continue
		}
		s.consider(ctx, filepath.Join(s.dir, entry.Name()), info.Size())
	}
}

func (s *Scanner) consider(ctx context.Context, path string, size int64) {
	s.mu.Lock()
	if s.done[path] {
		s.mu.Unlock()
		return
	}
	prev, seen := s.sizes[path]
	s.sizes[path] = size
	s.mu.Unlock()

	// First sighting, or still growing: wait for the next pass.
	if !seen || prev != size {
		return
	}

	video, job, err := s.catalogSvc.SubmitPath(ctx, path)
	if err != nil {
		s.logger.Warn("failed to submit watched file", "path", path, "error", err)
		return
	}

	s.mu.Lock()
	s.done[path] = true
	s.mu.Unlock()

	if job == nil {
		s.logger.Debug("watched file already cataloged", "path", path, "video_id", video.ID)
		return
	}
	s.logger.Info("watched file submitted", "path", path, "video_id", video.ID, "job_id", job.ID)
}
