package catalog

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SourceTypeFile    = "file"
	SourceTypeURL     = "url"
	SourceTypeYouTube = "youtube"
)

// Video statuses follow the ingest lifecycle. A file source moves through
// pending -> uploading -> indexing -> ready; a URL source skips uploading.
const (
	VideoStatusPending   = "pending"
	VideoStatusUploading = "uploading"
	VideoStatusIndexing  = "indexing"
	VideoStatusReady     = "ready"
	VideoStatusFailed    = "failed"
)

type Video struct {
	ID              string    `json:"id"`
	SourceType      string    `json:"source_type"`
	Path            string    `json:"path,omitempty"`
	URL             string    `json:"url,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	Size            int64     `json:"size,omitempty"`
	Fingerprint     string    `json:"fingerprint,omitempty"`
	Duration        float64   `json:"duration_sec,omitempty"`
	Title           string    `json:"title,omitempty"`
	Status          string    `json:"status"`
	AssetID         string    `json:"asset_id,omitempty"`
	AssetURL        string    `json:"asset_url,omitempty"`
	TaskID          string    `json:"task_id,omitempty"`
	PlatformVideoID string    `json:"platform_video_id,omitempty"`
	IndexID         string    `json:"index_id,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RemoteURL is the address the platform can pull this video from: the
// uploaded asset for file sources, the original URL otherwise.
func (v *Video) RemoteURL() string {
	if v.AssetURL != "" {
		return v.AssetURL
	}
	return v.URL
}

type Upload struct {
	ID          string    `json:"id"`
	VideoID     string    `json:"video_id"`
	AssetID     string    `json:"asset_id,omitempty"`
	TotalChunks int       `json:"total_chunks"`
	Bytes       int64     `json:"bytes"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	UploadStatusRunning   = "running"
	UploadStatusCompleted = "completed"
	UploadStatusFailed    = "failed"
)

type Clip struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video_id"`
	Index     int       `json:"index"`
	StartSec  float64   `json:"start_sec"`
	EndSec    float64   `json:"end_sec"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Filename is the clip file's base name, which /v1/clips/{name} serves by.
func (c *Clip) Filename() string {
	return filepath.Base(c.Path)
}

const (
	JobTypeUpload  = "upload_video"
	JobTypeIndex   = "index_video"
	JobTypeExtract = "extract_clips"
	JobTypeEmbed   = "embed_video"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video_id,omitempty"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Attempts  int       `json:"attempts"`
	Payload   string    `json:"payload,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExtractParams override the configured clip-planning defaults for a single
// extract_clips job. Zero values fall back to config.
type ExtractParams struct {
	ClipLength      float64 `json:"clip_length,omitempty"`
	Policy          string  `json:"policy,omitempty"`
	IncludeOriginal bool    `json:"include_original,omitempty"`
}

var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
	".webm": true,
}

// NewID returns a prefixed identifier like "vid_6f1b...".
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

func IsVideoFile(filename string) bool {
	return VideoExtensions[strings.ToLower(path.Ext(filename))]
}

var youtubeHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
}

// ClassifyURL decides how a submitted URL can be ingested: YouTube pages get
// SourceTypeYouTube, links ending in a known video extension get
// SourceTypeURL, anything else is rejected.
func ClassifyURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url has no host")
	}

	if youtubeHosts[strings.ToLower(u.Host)] {
		return SourceTypeYouTube, nil
	}
	if IsVideoFile(u.Path) {
		return SourceTypeURL, nil
	}
	return "", fmt.Errorf("url does not point at a video file: %s", raw)
}
