// Package extract renders clip plans into mp4 files and probes media
// metadata, shelling out to ffmpeg and ffprobe through ffmpeg-go.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/scenedex/scenedex-agent/internal/clip"
)

const (
	probeTimeout = 30 * time.Second

	// maxStderrBytes bounds how much ffmpeg stderr is kept for diagnostics.
	maxStderrBytes = 8 * 1024

	// Resolution floor below which the platform's indexing degrades. Sources
	// under it (in both orientations) are upscaled during extraction.
	minSourceWidth  = 480
	minSourceHeight = 360

	upscaleWidth  = 854
	upscaleHeight = 480
)

// ProbeResult holds the container metadata the agent cares about.
type ProbeResult struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec,omitempty"`
}

// NeedsUpscale reports whether the source sits below the resolution floor in
// both landscape and portrait orientation.
func (p *ProbeResult) NeedsUpscale() bool {
	if p.Width >= minSourceWidth && p.Height >= minSourceHeight {
		return false
	}
	if p.Width >= minSourceHeight && p.Height >= minSourceWidth {
		return false
	}
	return true
}

// ExtractedClip pairs a planned segment with the file it was rendered to.
type ExtractedClip struct {
	Spec     clip.Spec `json:"spec"`
	Path     string    `json:"path"`
	Duration float64   `json:"duration"`
}

// Extractor cuts segments out of local video files. It memoizes the most
// recent probe so extracting a full plan costs one ffprobe run, not one per
// clip.
type Extractor struct {
	logger *slog.Logger

	mu        sync.Mutex
	probedSrc string
	probed    *ProbeResult
}

func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Probe reads duration, resolution and codec from the first video stream.
func (e *Extractor) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := ffmpeg.ProbeWithTimeout(path, probeTimeout, ffmpeg.KwArgs{})
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", filepath.Base(path), err)
	}

	result, err := parseProbe(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	e.mu.Lock()
	e.probedSrc, e.probed = path, result
	e.mu.Unlock()

	return result, nil
}

// parseProbe extracts the fields we need from ffprobe's JSON output. Some
// containers (notably webm) only report duration at the format level, so the
// stream duration falls back to it.
func parseProbe(raw string) (*ProbeResult, error) {
	var payload struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
			Duration  string `json:"duration"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse probe output: %w", err)
	}

	result := &ProbeResult{}
	found := false
	for _, s := range payload.Streams {
		if s.CodecType != "video" {
			continue
		}
		result.Width = s.Width
		result.Height = s.Height
		result.Codec = s.CodecName
		result.Duration = parseSeconds(s.Duration)
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("no video stream found")
	}

	if result.Duration == 0 {
		result.Duration = parseSeconds(payload.Format.Duration)
	}
	if result.Duration == 0 {
		return nil, fmt.Errorf("could not determine video duration")
	}

	return result, nil
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// ExtractClip renders one planned segment of src into outDir and returns the
// written file path. The original-span sentinel re-encodes the whole video
// without seeking.
func (e *Extractor) ExtractClip(ctx context.Context, src string, spec clip.Spec, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create clip directory: %w", err)
	}

	outPath := filepath.Join(outDir, ClipFilename(src, spec))

	inputArgs := ffmpeg.KwArgs{}
	outputArgs := ffmpeg.KwArgs{
		"c:v":      "libx264",
		"preset":   "ultrafast",
		"tune":     "fastdecode",
		"pix_fmt":  "yuv420p",
		"movflags": "+faststart",
		"c:a":      "aac",
		"b:a":      "128k",
	}
	if spec.Index != clip.OriginalIndex {
		// Seeking before the input is decoded is much faster than an
		// output-side seek on long sources.
		inputArgs["ss"] = spec.StartTime
		outputArgs["t"] = spec.Duration()
	}

	if probe := e.sourceProbe(ctx, src); probe != nil && probe.NeedsUpscale() {
		if probe.Height > probe.Width {
			outputArgs["vf"] = fmt.Sprintf("scale=%d:%d", upscaleHeight, upscaleWidth)
		} else {
			outputArgs["vf"] = fmt.Sprintf("scale=%d:%d", upscaleWidth, upscaleHeight)
		}
	}

	stderr := &tailWriter{limit: maxStderrBytes}
	stream := ffmpeg.Input(src, inputArgs).
		Output(outPath, outputArgs).
		OverWriteOutput().
		Silent(true)
	stream.Context = ctx
	stream = stream.WithErrorOutput(stderr)

	e.logger.Debug("extracting clip",
		"src", filepath.Base(src),
		"index", spec.Index,
		"start", spec.StartTime,
		"end", spec.EndTime,
	)

	if err := stream.Run(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("ffmpeg failed for clip %d: %w: %s", spec.Index, err, tail(stderr.String(), 512))
	}

	return outPath, nil
}

// Extract renders every planned segment of asset into outDir, in order. The
// first failure aborts the batch and returns the clips written so far.
func (e *Extractor) Extract(ctx context.Context, asset clip.Asset, specs []clip.Spec, outDir string) ([]ExtractedClip, error) {
	clips := make([]ExtractedClip, 0, len(specs))
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return clips, err
		}
		path, err := e.ExtractClip(ctx, asset.Path, spec, outDir)
		if err != nil {
			return clips, err
		}
		clips = append(clips, ExtractedClip{Spec: spec, Path: path, Duration: spec.Duration()})
	}
	return clips, nil
}

// sourceProbe returns the memoized probe for src, probing once when the memo
// holds a different file. Extraction proceeds unscaled when the probe fails;
// ffmpeg will surface real input errors itself.
func (e *Extractor) sourceProbe(ctx context.Context, src string) *ProbeResult {
	e.mu.Lock()
	if e.probedSrc == src && e.probed != nil {
		p := e.probed
		e.mu.Unlock()
		return p
	}
	e.mu.Unlock()

	p, err := e.Probe(ctx, src)
	if err != nil {
		e.logger.Warn("probe before extraction failed", "src", filepath.Base(src), "error", err)
		return nil
	}
	return p
}

// ClipFilename derives the output name for a planned segment:
// <base>_clip_<index>_<start>-<end>.mp4. The original-span sentinel becomes
// <base>_clip_full.mp4. Offsets are rounded to a tenth of a second so float
// noise from the planner never leaks into names.
func ClipFilename(src string, spec clip.Spec) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	base = sanitizeBase(base)
	if spec.Index == clip.OriginalIndex {
		return base + "_clip_full.mp4"
	}
	return fmt.Sprintf("%s_clip_%d_%s-%s.mp4",
		base, spec.Index, formatOffset(spec.StartTime), formatOffset(spec.EndTime))
}

func formatOffset(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

var (
	unsafeNameChars     = regexp.MustCompile(`[^a-zA-Z0-9-_.]`)
	repeatedUnderscores = regexp.MustCompile(`_+`)
)

func sanitizeBase(name string) string {
	s := unsafeNameChars.ReplaceAllString(name, "_")
	s = repeatedUnderscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "video"
	}
	return s
}

func tail(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// tailWriter keeps only the last `limit` bytes written to it.
type tailWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *tailWriter) Write(p []byte) (int, error) {
	n := len(p)
	w.buf.Write(p)
	if w.buf.Len() > w.limit {
		b := w.buf.Bytes()
		trimmed := make([]byte, w.limit)
		copy(trimmed, b[len(b)-w.limit:])
		w.buf.Reset()
		w.buf.Write(trimmed)
	}
	return n, nil
}

func (w *tailWriter) String() string {
	return w.buf.String()
}
