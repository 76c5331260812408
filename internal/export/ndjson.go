package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/scenedex/scenedex-agent/internal/cloud"
)

// SegmentRecord is one NDJSON line of an embedding export.
type SegmentRecord struct {
	VideoID        string    `json:"video_id"`
	Model          string    `json:"model,omitempty"`
	ClipIndex      int       `json:"clip_index"`
	StartOffsetSec float64   `json:"start_offset_sec"`
	EndOffsetSec   float64   `json:"end_offset_sec"`
	Scope          string    `json:"scope"`
	Embedding      []float32 `json:"embedding"`
}

// WriteNDJSON streams segments to w, one JSON object per line.
func WriteNDJSON(w io.Writer, videoID, model string, segments []cloud.Segment) error {
	enc := json.NewEncoder(w)
	for i, seg := range segments {
		rec := SegmentRecord{
			VideoID:        videoID,
			Model:          model,
			ClipIndex:      i,
			StartOffsetSec: seg.StartOffsetSec,
			EndOffsetSec:   seg.EndOffsetSec,
			Scope:          seg.Scope,
			Embedding:      seg.Float,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode segment %d: %w", i, err)
		}
	}
	return nil
}

// WriteNDJSONFile renders segments to path, creating parent directories as
// needed.
func WriteNDJSONFile(path, videoID, model string, segments []cloud.Segment) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	if err := WriteNDJSON(f, videoID, model, segments); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
