package cloud

import (
	"context"
	"fmt"
)

// GenerateService produces text from an indexed video: structured summaries,
// chapters, highlights, and open-ended answers.
type GenerateService struct {
	client *Client
}

// Summary types accepted by Summarize.
const (
	SummaryTypeSummary   = "summary"
	SummaryTypeChapter   = "chapter"
	SummaryTypeHighlight = "highlight"
)

type SummarizeRequest struct {
	VideoID     string  `json:"video_id"`
	Type        string  `json:"type"`
	Prompt      string  `json:"prompt,omitempty"`
	Temperature float64 `json:"temperature"`
}

type Chapter struct {
	ChapterNumber int     `json:"chapter_number"`
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	Title         string  `json:"chapter_title"`
	Summary       string  `json:"chapter_summary"`
}

type Highlight struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Highlight string  `json:"highlight"`
}

// SummarizeResult is a union: exactly one of Summary, Chapters, or
// Highlights is populated, matching the requested type.
type SummarizeResult struct {
	ID         string      `json:"id"`
	Summary    string      `json:"summary"`
	Chapters   []Chapter   `json:"chapters"`
	Highlights []Highlight `json:"highlights"`
}

func (s *GenerateService) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResult, error) {
	if req.VideoID == "" {
		return nil, fmt.Errorf("video id is required")
	}
	switch req.Type {
	case SummaryTypeSummary, SummaryTypeChapter, SummaryTypeHighlight:
	default:
		return nil, fmt.Errorf("summary type must be one of summary, chapter, highlight; got %q", req.Type)
	}
	if req.Temperature < 0 || req.Temperature > 1 {
		return nil, fmt.Errorf("temperature %v out of range [0.0, 1.0]", req.Temperature)
	}

	var result SummarizeResult
	if err := s.client.postJSON(ctx, "/summarize", req, &result, 1<<20); err != nil {
		return nil, fmt.Errorf("summarize video %s: %w", req.VideoID, err)
	}
	return &result, nil
}

type TextRequest struct {
	VideoID     string  `json:"video_id"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
}

type TextResult struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// Text asks an open-ended question about an indexed video and returns the
// generated answer.
func (s *GenerateService) Text(ctx context.Context, req TextRequest) (*TextResult, error) {
	if req.VideoID == "" {
		return nil, fmt.Errorf("video id is required")
	}
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if req.Temperature < 0 || req.Temperature > 1 {
		return nil, fmt.Errorf("temperature %v out of range [0.0, 1.0]", req.Temperature)
	}

	var result TextResult
	if err := s.client.postJSON(ctx, "/generate", req, &result, 1<<20); err != nil {
		return nil, fmt.Errorf("generate text for video %s: %w", req.VideoID, err)
	}
	return &result, nil
}
