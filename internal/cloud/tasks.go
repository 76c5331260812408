package cloud

import (
	"context"
	"fmt"
)

// TaskService creates and tracks video-indexing tasks. A task ingests one
// video into an index; once ready the video is available for search,
// summaries, and Q&A under its VideoID.
type TaskService struct {
	client *Client
}

type Task struct {
	ID       string `json:"_id"`
	IndexID  string `json:"index_id"`
	VideoID  string `json:"video_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// CreateTaskRequest names the target index and exactly one video source:
// a remote URL or a local file path (streamed as multipart).
type CreateTaskRequest struct {
	IndexID   string
	VideoURL  string
	VideoPath string
}

func (s *TaskService) Create(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	if req.IndexID == "" {
		return nil, fmt.Errorf("index id is required")
	}
	if (req.VideoURL == "") == (req.VideoPath == "") {
		return nil, fmt.Errorf("exactly one of video url or video path is required")
	}

	var task Task
	if req.VideoURL != "" {
		body := struct {
			IndexID  string `json:"index_id"`
			VideoURL string `json:"video_url"`
		}{req.IndexID, req.VideoURL}
		if err := s.client.postJSON(ctx, "/tasks", body, &task, 64<<10); err != nil {
			return nil, fmt.Errorf("create task: %w", err)
		}
	} else {
		fields := map[string]string{"index_id": req.IndexID}
		if err := s.client.postMultipart(ctx, "/tasks", fields, "video_file", req.VideoPath, &task, 64<<10); err != nil {
			return nil, fmt.Errorf("create task: %w", err)
		}
	}

	task.IndexID = req.IndexID
	s.client.logger.Info("indexing task created", "task_id", task.ID, "index_id", req.IndexID)
	return &task, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (*Task, error) {
	var task Task
	if err := s.client.getJSON(ctx, "/tasks/"+id, &task, 64<<10); err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &task, nil
}

// WaitForReady blocks until the task reaches a terminal status, checking
// every opts.Interval and giving up after opts.Timeout. On success the
// returned task carries the platform VideoID. Failure modes: ErrWaitTimeout
// when the budget runs out, *TaskFailedError when the platform reports the
// task failed, and the ctx error on cancellation.
func (s *TaskService) WaitForReady(ctx context.Context, id string, opts WaitOptions) (*Task, error) {
	var last *Task
	if _, err := waitForTerminal(ctx, id, opts, func(ctx context.Context) (string, error) {
		task, gerr := s.Get(ctx, id)
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
