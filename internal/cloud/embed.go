package cloud

import (
	"context"
	"fmt"
	"strconv"
)

// EmbedService creates embedding tasks for videos and embeds query text for
// similarity search against the stored vectors.
type EmbedService struct {
	client *Client
}

// Segment is one embedded span of a video. Offsets are seconds from the
// start of the source; Scope is "clip" for per-segment vectors or "video"
// for the whole-video vector.
type Segment struct {
	StartOffsetSec float64   `json:"start_offset_sec"`
	EndOffsetSec   float64   `json:"end_offset_sec"`
	Scope          string    `json:"embedding_scope"`
	Float          []float32 `json:"embeddings_float"`
}

type VideoEmbedding struct {
	Segments []Segment `json:"segments"`
}

type VideoEmbedTask struct {
	ID     string `json:"_id"`
	Status string `json:"status"`
}

type VideoEmbedResult struct {
	ID             string         `json:"_id"`
	Status         string         `json:"status"`
	ModelName      string         `json:"model_name"`
	VideoEmbedding VideoEmbedding `json:"video_embedding"`
}

// CreateVideoTaskRequest names the embedding model, exactly one video source,
// and the clip length the platform should segment the video into.
type CreateVideoTaskRequest struct {
	Model      string
	VideoURL   string
	VideoPath  string
	ClipLength float64
}

func (s *EmbedService) CreateVideoTask(ctx context.Context, req CreateVideoTaskRequest) (*VideoEmbedTask, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if (req.VideoURL == "") == (req.VideoPath == "") {
		return nil, fmt.Errorf("exactly one of video url or video path is required")
	}
	if req.ClipLength <= 0 {
		return nil, fmt.Errorf("clip length must be positive, got %v", req.ClipLength)
	}

	var task VideoEmbedTask
	if req.VideoURL != "" {
		body := struct {
			Model      string  `json:"model_name"`
			VideoURL   string  `json:"video_url"`
			ClipLength float64 `json:"video_clip_length"`
		}{req.Model, req.VideoURL, req.ClipLength}
		if err := s.client.postJSON(ctx, "/embed/tasks", body, &task, 64<<10); err != nil {
			return nil, fmt.Errorf("create embed task: %w", err)
		}
	} else {
		fields := map[string]string{
			"model_name":        req.Model,
			"video_clip_length": strconv.FormatFloat(req.ClipLength, 'f', -1, 64),
		}
		if err := s.client.postMultipart(ctx, "/embed/tasks", fields, "video_file", req.VideoPath, &task, 64<<10); err != nil {
			return nil, fmt.Errorf("create embed task: %w", err)
		}
	}

	s.client.logger.Info("embed task created", "task_id", task.ID, "model", req.Model)
	return &task, nil
}

// TaskStatus returns the current status of a video embedding task.
func (s *EmbedService) TaskStatus(ctx context.Context, id string) (*VideoEmbedTask, error) {
	var task VideoEmbedTask
	if err := s.client.getJSON(ctx, "/embed/tasks/"+id+"/status", &task, 64<<10); err != nil {
		return nil, fmt.Errorf("embed task status %s: %w", id, err)
	}
	return &task, nil
}

// WaitForVideoTask blocks until the embedding task is terminal, with the same
// timeout and failure semantics as TaskService.WaitForReady.
func (s *EmbedService) WaitForVideoTask(ctx context.Context, id string, opts WaitOptions) (*VideoEmbedTask, error) {
	var last *VideoEmbedTask
	if _, err := waitForTerminal(ctx, id, opts, func(ctx context.Context) (string, error) {
		task, gerr := s.TaskStatus(ctx, id)
		if gerr != nil {
			return "", gerr
		}
		last = task
		return task.Status, nil
	}); err != nil {
		return last, err
	}
	return last, nil
}

// RetrieveVideoTask fetches the segment vectors of a finished embedding task.
func (s *EmbedService) RetrieveVideoTask(ctx context.Context, id string) (*VideoEmbedResult, error) {
	var result VideoEmbedResult
	if err := s.client.getJSON(ctx, "/embed/tasks/"+id, &result, 64<<20); err != nil {
		return nil, fmt.Errorf("retrieve embed task %s: %w", id, err)
	}
	return &result, nil
}

// Text embeds query text with the given model. Long text is truncated from
// the start, matching how stored video vectors were produced.
func (s *EmbedService) Text(ctx context.Context, model, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	body := struct {
		Model        string `json:"model_name"`
		Text         string `json:"text"`
		TextTruncate string `json:"text_truncate"`
	}{model, text, "start"}

	var result struct {
		TextEmbedding struct {
			Segments []Segment `json:"segments"`
		} `json:"text_embedding"`
	}
	if err := s.client.postJSON(ctx, "/embed", body, &result, 16<<20); err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(result.TextEmbedding.Segments) == 0 {
		return nil, fmt.Errorf("embed text: platform returned no segments")
	}
	return result.TextEmbedding.Segments[0].Float, nil
}
