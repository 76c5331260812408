package api

import (
	"time"

	"github.com/scenedex/scenedex-agent/internal/catalog"
	"github.com/scenedex/scenedex-agent/internal/clip"
	"github.com/scenedex/scenedex-agent/internal/cloud"
	"github.com/scenedex/scenedex-agent/internal/extract"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State       string         `json:"state"`
	LastError   string         `json:"last_error,omitempty"`
	Videos      map[string]int `json:"videos"`
	TotalVideos int            `json:"total_videos"`
	QueueDepth  int            `json:"queue_depth"`
	ActiveJob   *JobResponse   `json:"active_job,omitempty"`
	Tools       *ToolsResponse `json:"tools,omitempty"`
}

type ToolsResponse struct {
	FFmpeg      ToolResponse `json:"ffmpeg"`
	FFprobe     ToolResponse `json:"ffprobe"`
	Ready       bool         `json:"ready"`
	LastProbeAt string       `json:"last_probe_at,omitempty"`
}

type ToolResponse struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

type SubmitVideoRequest struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
}

type SubmitVideoResponse struct {
	Video VideoResponse `json:"video"`
	Job   *JobResponse  `json:"job,omitempty"`
}

type VideoResponse struct {
	ID              string  `json:"id"`
	SourceType      string  `json:"source_type"`
	Path            string  `json:"path,omitempty"`
	URL             string  `json:"url,omitempty"`
	Filename        string  `json:"filename,omitempty"`
	Size            int64   `json:"size,omitempty"`
	DurationSec     float64 `json:"duration_sec,omitempty"`
	Title           string  `json:"title,omitempty"`
	Status          string  `json:"status"`
	AssetID         string  `json:"asset_id,omitempty"`
	PlatformVideoID string  `json:"platform_video_id,omitempty"`
	IndexID         string  `json:"index_id,omitempty"`
	Error           string  `json:"error,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type VideosResponse struct {
	Videos []VideoResponse `json:"videos"`
}

type VideoDetailResponse struct {
	VideoResponse
	Clips []ClipResponse `json:"clips"`
}

type ClipResponse struct {
	ID       string  `json:"id"`
	VideoID  string  `json:"video_id"`
	Filename string  `json:"filename"`
	Index    int     `json:"index"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Size     int64   `json:"size,omitempty"`
}

type JobResponse struct {
	ID        string `json:"id"`
	VideoID   string `json:"video_id,omitempty"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type EnqueueResponse struct {
	Job JobResponse `json:"job"`
}

type ClipPlanRequest struct {
	ClipLength      float64 `json:"clip_length,omitempty"`
	Policy          string  `json:"policy,omitempty"`
	IncludeOriginal bool    `json:"include_original,omitempty"`
}

type ClipSpecResponse struct {
	Index    int     `json:"index"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
}

type ClipPlanResponse struct {
	Job  JobResponse        `json:"job"`
	Plan []ClipSpecResponse `json:"plan,omitempty"`
}

type SummarizeVideoRequest struct {
	Type        string   `json:"type,omitempty"`
	Prompt      string   `json:"prompt,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type SummaryResponse struct {
	VideoID    string            `json:"video_id"`
	Type       string            `json:"type"`
	Summary    string            `json:"summary,omitempty"`
	Chapters   []cloud.Chapter   `json:"chapters,omitempty"`
	Highlights []cloud.Highlight `json:"highlights,omitempty"`
}

type AskVideoRequest struct {
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type AnswerResponse struct {
	VideoID string `json:"video_id"`
	Answer  string `json:"answer"`
}

type SearchAPIRequest struct {
	Query     string `json:"query"`
	PageLimit int    `json:"page_limit,omitempty"`
}

type SearchHitResponse struct {
	VideoID         string  `json:"video_id,omitempty"`
	PlatformVideoID string  `json:"platform_video_id,omitempty"`
	Filename        string  `json:"filename,omitempty"`
	StartSec        float64 `json:"start_sec"`
	EndSec          float64 `json:"end_sec"`
	Score           float64 `json:"score"`
	Confidence      string  `json:"confidence,omitempty"`
}

type SearchAPIResponse struct {
	Source string              `json:"source"`
	Hits   []SearchHitResponse `json:"hits"`
	Total  int                 `json:"total"`
}

type ControlResponse struct {
	State string `json:"state"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func VideoToResponse(v *catalog.Video) VideoResponse {
	return VideoResponse{
		ID:              v.ID,
		SourceType:      v.SourceType,
		Path:            v.Path,
		URL:             v.URL,
		Filename:        v.Filename,
		Size:            v.Size,
		DurationSec:     v.Duration,
		Title:           v.Title,
		Status:          v.Status,
		AssetID:         v.AssetID,
		PlatformVideoID: v.PlatformVideoID,
		IndexID:         v.IndexID,
		Error:           v.Error,
		CreatedAt:       v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       v.UpdatedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *catalog.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		VideoID:   j.VideoID,
		Type:      j.Type,
		Status:    j.Status,
		Progress:  j.Progress,
		Attempts:  j.Attempts,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}

func ClipToResponse(c *catalog.Clip) ClipResponse {
	return ClipResponse{
		ID:       c.ID,
		VideoID:  c.VideoID,
		Filename: c.Filename(),
		Index:    c.Index,
		StartSec: c.StartSec,
		EndSec:   c.EndSec,
		Size:     c.Size,
	}
}

func PlanToResponse(specs []clip.Spec) []ClipSpecResponse {
	out := make([]ClipSpecResponse, len(specs))
	for i, s := range specs {
		out[i] = ClipSpecResponse{Index: s.Index, StartSec: s.StartTime, EndSec: s.EndTime}
	}
	return out
}

func ToolsToResponse(caps *extract.Capabilities) ToolsResponse {
	resp := ToolsResponse{
		FFmpeg:  ToolToResponse(caps.FFmpeg),
		FFprobe: ToolToResponse(caps.FFprobe),
		Ready:   caps.Ready(),
	}
	if !caps.ProbedAt.IsZero() {
		resp.LastProbeAt = caps.ProbedAt.Format(time.RFC3339)
	}
	return resp
}

func ToolToResponse(t extract.Tool) ToolResponse {
	return ToolResponse{
		Available: t.Available,
		Path:      t.Path,
		Version:   t.Version,
		Error:     t.Error,
	}
}
