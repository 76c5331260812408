package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scenedex/scenedex-agent/internal/cloud"
)

func TestWriteNDJSON(t *testing.T) {
	segments := []cloud.Segment{
		{StartOffsetSec: 0, EndOffsetSec: 6, Scope: "clip", Float: []float32{0.1, 0.2}},
		{StartOffsetSec: 6, EndOffsetSec: 12, Scope: "clip", Float: []float32{0.3, 0.4}},
	}

	var buf bytes.Buffer
	if err := WriteNDJSON(&buf, "vid_1", "marengo-retrieval-2.7", segments); err != nil {
		t.Fatalf("WriteNDJSON() error = %v", err)
	}

	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		t.Error("output should end with a newline")
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var rec SegmentRecord
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("line 2 is not valid JSON: %v", err)
	}
	if rec.VideoID != "vid_1" {
		t.Errorf("VideoID = %q, want vid_1", rec.VideoID)
	}
	if rec.Model != "marengo-retrieval-2.7" {
		t.Errorf("Model = %q", rec.Model)
	}
	if rec.ClipIndex != 1 {
		t.Errorf("ClipIndex = %d, want 1", rec.ClipIndex)
	}
	if rec.StartOffsetSec != 6 || rec.EndOffsetSec != 12 {
		t.Errorf("offsets = %v-%v, want 6-12", rec.StartOffsetSec, rec.EndOffsetSec)
	}
	if len(rec.Embedding) != 2 {
		t.Errorf("Embedding has %d values, want 2", len(rec.Embedding))
	}
}

func TestWriteNDJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteNDJSON(&buf, "vid_1", "", nil); err != nil {
		t.Fatalf("WriteNDJSON() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty output, got %q", buf.String())
	}
}

func TestWriteNDJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "vid_1.ndjson")

	segments := []cloud.Segment{
		{StartOffsetSec: 0, EndOffsetSec: 6, Scope: "video", Float: []float32{1}},
	}
	if err := WriteNDJSONFile(path, "vid_1", "m", segments); err != nil {
		t.Fatalf("WriteNDJSONFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("export file not written: %v", err)
	}
	if !strings.Contains(string(data), `"scope":"video"`) {
		t.Errorf("unexpected file content: %s", data)
	}
}
