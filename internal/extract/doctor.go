package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const doctorCacheTTL = 5 * time.Minute

// Tool describes one external media binary.
type Tool struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Capabilities reports which media binaries the agent can call.
type Capabilities struct {
	FFmpeg   Tool      `json:"ffmpeg"`
	FFprobe  Tool      `json:"ffprobe"`
	ProbedAt time.Time `json:"probed_at"`
}

// Ready reports whether clip extraction can run at all.
func (c *Capabilities) Ready() bool {
	return c.FFmpeg.Available && c.FFprobe.Available
}

// Doctor probes for ffmpeg and ffprobe and caches the result with a TTL so
// status endpoints do not spawn subprocesses on every request.
type Doctor struct {
	logger *slog.Logger
	ttl    time.Duration

	mu     sync.RWMutex
	cached *Capabilities
}

func NewDoctor(logger *slog.Logger) *Doctor {
	return &Doctor{logger: logger, ttl: doctorCacheTTL}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *Doctor) Get(ctx context.Context) *Capabilities {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Peek returns the cached capabilities without probing, or nil.
func (d *Doctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new probe regardless of cache freshness.
func (d *Doctor) Refresh(ctx context.Context) *Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps := &Capabilities{
		FFmpeg:   probeTool(ctx, "ffmpeg"),
		FFprobe:  probeTool(ctx, "ffprobe"),
		ProbedAt: time.Now(),
	}
	d.cached = caps

	d.logger.Info("media tool probe complete",
		"ffmpeg", caps.FFmpeg.Available,
		"ffprobe", caps.FFprobe.Available,
	)
	return caps
}

func probeTool(ctx context.Context, name string) Tool {
	path, err := exec.LookPath(name)
	if err != nil {
		return Tool{Error: fmt.Sprintf("%s not found on PATH", name)}
	}

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return Tool{Path: path, Error: fmt.Sprintf("failed to run %s -version: %v", name, err)}
	}

	return Tool{Available: true, Path: path, Version: parseToolVersion(string(out))}
}

// parseToolVersion pulls the version token out of the banner line, e.g.
// "ffmpeg version 6.1.1 Copyright ..." -> "6.1.1".
func parseToolVersion(out string) string {
	line := out
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}
