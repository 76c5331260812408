package extract

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/scenedex/scenedex-agent/internal/clip"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClipFilename(t *testing.T) {
	tests := []struct {
		name string
		src  string
		spec clip.Spec
		want string
	}{
		{
			name: "first clip",
			src:  "/videos/keynote.mp4",
			spec: clip.Spec{Index: 0, StartTime: 0, EndTime: 6},
			want: "keynote_clip_0_0-6.mp4",
		},
		{
			name: "fractional tail",
			src:  "/videos/keynote.mp4",
			spec: clip.Spec{Index: 3, StartTime: 18, EndTime: 20.5},
			want: "keynote_clip_3_18-20.5.mp4",
		},
		{
			name: "float noise is rounded away",
			src:  "/videos/keynote.mp4",
			spec: clip.Spec{Index: 1, StartTime: 6.000000000001, EndTime: 11.999999999999},
			want: "keynote_clip_1_6-12.mp4",
		},
		{
			name: "original span sentinel",
			src:  "/videos/keynote.mp4",
			spec: clip.Spec{Index: clip.OriginalIndex, StartTime: 0, EndTime: 42},
			want: "keynote_clip_full.mp4",
		},
		{
			name: "messy base name",
			src:  "/videos/My Video (final) [v2].mov",
			spec: clip.Spec{Index: 0, StartTime: 0, EndTime: 6},
			want: "My_Video_final_v2_clip_0_0-6.mp4",
		},
		{
			name: "all unsafe characters",
			src:  "/videos/???.mp4",
			spec: clip.Spec{Index: 0, StartTime: 0, EndTime: 6},
			want: "video_clip_0_0-6.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClipFilename(tt.src, tt.spec)
			if got != tt.want {
				t.Errorf("ClipFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNeedsUpscale(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		want   bool
	}{
		{"full hd", 1920, 1080, false},
		{"exactly at floor", 480, 360, false},
		{"portrait at floor", 360, 480, false},
		{"portrait hd", 1080, 1920, false},
		{"tiny landscape", 426, 240, true},
		{"tiny portrait", 240, 426, true},
		{"old webcam", 320, 240, true},
		{"just under floor", 479, 360, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &ProbeResult{Width: tt.width, Height: tt.height}
			if got := p.NeedsUpscale(); got != tt.want {
				t.Errorf("NeedsUpscale() for %dx%d = %v, want %v", tt.width, tt.height, got, tt.want)
			}
		})
	}
}

func TestParseProbe(t *testing.T) {
	raw := `{
		"streams": [
			{"index": 0, "codec_name": "aac", "codec_type": "audio", "duration": "18.022000"},
			{"index": 1, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080, "duration": "18.000000"}
		],
		"format": {"filename": "in.mp4", "duration": "18.022000"}
	}`

	got, err := parseProbe(raw)
	if err != nil {
		t.Fatalf("parseProbe() error = %v", err)
	}
	if got.Duration != 18.0 {
		t.Errorf("Duration = %v, want 18", got.Duration)
	}
	if got.Width != 1920 || got.Height != 1080 {
		t.Errorf("resolution = %dx%d, want 1920x1080", got.Width, got.Height)
	}
	if got.Codec != "h264" {
		t.Errorf("Codec = %q, want h264", got.Codec)
	}
}

func TestParseProbe_FormatDurationFallback(t *testing.T) {
	// webm containers often omit per-stream durations.
	raw := `{
		"streams": [
			{"index": 0, "codec_name": "vp9", "codec_type": "video", "width": 640, "height": 360}
		],
		"format": {"duration": "93.480000"}
	}`

	got, err := parseProbe(raw)
	if err != nil {
		t.Fatalf("parseProbe() error = %v", err)
	}
	if got.Duration != 93.48 {
		t.Errorf("Duration = %v, want 93.48", got.Duration)
	}
}

func TestParseProbe_NoVideoStream(t *testing.T) {
	raw := `{
		"streams": [{"index": 0, "codec_name": "mp3", "codec_type": "audio", "duration": "10.0"}],
		"format": {"duration": "10.0"}
	}`

	if _, err := parseProbe(raw); err == nil {
		t.Fatal("expected error for audio-only input")
	}
}

func TestParseProbe_NoDuration(t *testing.T) {
	raw := `{
		"streams": [{"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1280, "height": 720}],
		"format": {}
	}`

	if _, err := parseProbe(raw); err == nil {
		t.Fatal("expected error when no duration is reported")
	}
}

func TestParseToolVersion(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{
			name: "ffmpeg banner",
			out:  "ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023 the FFmpeg developers\nbuilt with gcc 13",
			want: "6.1.1-3ubuntu5",
		},
		{
			name: "ffprobe banner",
			out:  "ffprobe version n7.0 Copyright (c) 2007-2024 the FFmpeg developers",
			want: "n7.0",
		},
		{
			name: "unexpected output",
			out:  "command not found",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseToolVersion(tt.out); got != tt.want {
				t.Errorf("parseToolVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDoctorCache(t *testing.T) {
	d := NewDoctor(testLogger())

	fresh := &Capabilities{
		FFmpeg:   Tool{Available: true, Version: "6.0"},
		FFprobe:  Tool{Available: true, Version: "6.0"},
		ProbedAt: time.Now(),
	}
	d.cached = fresh

	if got := d.Get(context.Background()); got != fresh {
		t.Error("Get() should return the fresh cache without re-probing")
	}

	// A stale cache forces a re-probe.
	d.cached = &Capabilities{ProbedAt: time.Now().Add(-time.Hour)}
	got := d.Get(context.Background())
	if got == nil {
		t.Fatal("Get() returned nil after stale cache")
	}
	if time.Since(got.ProbedAt) > time.Minute {
		t.Error("Get() should have refreshed the stale cache")
	}
	if d.Peek() != got {
		t.Error("Peek() should return the refreshed cache")
	}
}

func TestTailWriter(t *testing.T) {
	w := &tailWriter{limit: 10}

	if _, err := w.Write([]byte("abcdefghij0123456789")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := w.String(); got != "0123456789" {
		t.Errorf("String() = %q, want last 10 bytes", got)
	}

	if _, err := w.Write([]byte("XY")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := w.String(); !strings.HasSuffix(got, "XY") || len(got) != 10 {
		t.Errorf("String() = %q, want 10-byte tail ending in XY", got)
	}
}
