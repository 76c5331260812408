package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/scenedex/scenedex-agent/internal/clip"
	"github.com/scenedex/scenedex-agent/internal/cloud"
	"github.com/scenedex/scenedex-agent/internal/config"
	"github.com/scenedex/scenedex-agent/internal/export"
	"github.com/scenedex/scenedex-agent/internal/extract"
	"github.com/scenedex/scenedex-agent/internal/uploader"
)

// SettingIndexID is the settings key holding the platform index the agent
// created, so restarts keep indexing into the same one.
const SettingIndexID = "index_id"

// FileUploader pushes a local file to the platform. *uploader.Uploader
// satisfies it.
type FileUploader interface {
	Upload(ctx context.Context, path string) (*uploader.Result, error)
}

// Extractor probes and cuts local video files. *extract.Extractor satisfies
// it.
type Extractor interface {
	Probe(ctx context.Context, path string) (*extract.ProbeResult, error)
	ExtractClip(ctx context.Context, src string, spec clip.Spec, outDir string) (string, error)
}

// VectorStore persists embedding segments for local similarity search.
// *vectors.Store satisfies it.
type VectorStore interface {
	InsertSegments(ctx context.Context, videoID, model string, segments []cloud.Segment) (int, error)
}

// Runner drains pending jobs one at a time on a poll ticker. Each job type
// drives one leg of the ingest lifecycle against the platform.
type Runner struct {
	repo         Repository
	client       *cloud.Client
	up           FileUploader
	ex           Extractor
	vectors      VectorStore
	cfg          *config.Config
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(repo Repository, client *cloud.Client, up FileUploader, ex Extractor, vectors VectorStore, cfg *config.Config, logger *slog.Logger) *Runner {
	return &Runner{
		repo:         repo,
		client:       client,
		up:           up,
		ex:           ex,
		vectors:      vectors,
		cfg:          cfg,
		logger:       logger,
		pollInterval: 5 * time.Second,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) processNextJob(ctx context.Context) {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	job := jobs[0]
	r.logger.Info("processing job", "job_id", job.ID, "type", job.Type)

	switch job.Type {
	case JobTypeUpload:
		r.processUploadJob(ctx, job)
	case JobTypeIndex:
		r.processIndexJob(ctx, job)
	case JobTypeExtract:
		r.processExtractJob(ctx, job)
	case JobTypeEmbed:
		r.processEmbedJob(ctx, job)
	default:
		r.logger.Warn("unknown job type", "type", job.Type)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "unknown job type")
	}
}

// processUploadJob pushes the video file through a multipart session and
// queues indexing once the platform holds the asset.
func (r *Runner) processUploadJob(ctx context.Context, job *Job) {
	video := r.loadVideo(ctx, job)
	if video == nil {
		return
	}
	if video.Path == "" {
		r.failJob(ctx, job, "video has no local file")
		return
	}

	r.repo.MarkJobRunning(ctx, job.ID)
	r.repo.UpdateVideoStatus(ctx, video.ID, VideoStatusUploading, "")

	if dur, ok := r.probeDuration(ctx, video); ok {
		if dur < r.cfg.MinVideoDuration || dur > r.cfg.MaxVideoDuration {
			msg := fmt.Sprintf("video duration %.1fs is outside the platform's %.0f-%.0fs range",
				dur, r.cfg.MinVideoDuration, r.cfg.MaxVideoDuration)
			r.failJob(ctx, job, msg)
			r.repo.UpdateVideoStatus(ctx, video.ID, VideoStatusFailed, msg)
			return
		}
	}

	now := time.Now()
	uploadRec := &Upload{
		ID:        NewID("upl"),
		VideoID:   video.ID,
		Bytes:     video.Size,
		Status:    UploadStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.repo.CreateUpload(ctx, uploadRec); err != nil {
		r.logger.Warn("failed to record upload session", "video_id", video.ID, "error", err)
	}

	result, err := r.up.Upload(ctx, video.Path)
	if err != nil {
		uploadRec.Status = UploadStatusFailed
		uploadRec.Error = truncateStr(err.Error(), 512)
		r.repo.UpdateUpload(ctx, uploadRec)
		r.failJob(ctx, job, fmt.Sprintf("upload failed: %v", err))
		r.repo.UpdateVideoStatus(ctx, video.ID, VideoStatusFailed, truncateStr(err.Error(), 512))
		return
	}

	uploadRec.Status = UploadStatusCompleted
	uploadRec.AssetID = result.AssetID
	uploadRec.TotalChunks = result.TotalChunks
	r.repo.UpdateUpload(ctx, uploadRec)

	r.repo.UpdateVideoAsset(ctx, video.ID, result.AssetID, result.AssetURL)

	now = time.Now()
	next := &Job{
		ID:        NewID("job"),
		VideoID:   video.ID,
		Type:      JobTypeIndex,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.repo.CreateJob(ctx, next); err != nil {
		r.failJob(ctx, job, fmt.Sprintf("failed to queue indexing: %v", err))
		return
	}

	r.repo.UpdateJobProgress(ctx, job.ID, 100)
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	r.logger.Info("upload job completed",
		"job_id", job.ID,
		"video_id", video.ID,
		"asset_id", result.AssetID,
		"chunks", result.TotalChunks,
	)
}

// processIndexJob creates an indexing task for the video's remote source and
// blocks until the platform reports it ready.
func (r *Runner) processIndexJob(ctx context.Context, job *Job) {
	video := r.loadVideo(ctx, job)
	if video == nil {
		return
	}
	if video.RemoteURL() == "" && video.Path == "" {
		r.failJob(ctx, job, "video has no source to index")
		return
	}

	r.repo.MarkJobRunning(ctx, job.ID)

	indexID, err := r.ensureIndex(ctx)
	if err != nil {
		r.failJob(ctx, job, fmt.Sprintf("failed to resolve index: %v", err))
		r.repo.UpdateVideoStatus(ctx, video.ID, VideoStatusFailed, truncateStr(err.Error(), 512))
		return
	}

	req := cloud.CreateTaskRequest{IndexID: indexID}
	if remote := video.RemoteURL(); remote != "" {
		req.VideoURL = remote
	} else {
		req.VideoPath = video.Path
	}

	task, err := r.client.Tasks().Create(ctx, req)
	if err != nil {
		r.failJob(ctx, job, fmt.Sprintf("failed to create indexing task: %v", err))
		r.repo.UpdateVideoStatus(ctx, video.ID, VideoStatusFailed, truncateStr(err.Error(), 512))
		return
	}

	r.repo.UpdateVideoIndexing(ctx, video.ID, indexID, task.ID)
	r.repo.UpdateJobProgress(ctx, job.ID, 10)

	opts := cloud.WaitOptions{
		Interval: r.cfg.PollInterval,
		Timeout:  r.cfg.PollTimeout,
		OnPoll: func(status string, elapsed time.Duration) {
			r.logger.Debug("indexing task poll",
				"job_id", job.ID, "task_id", task.ID, "status", status, "elapsed", elapsed)
		},
	}
	final, err := r.client.Tasks().WaitForReady(ctx, task.ID, opts)
	if err != nil {
		msg := indexFailureMessage(err)
		r.failJob(ctx, job, msg)
		r.repo.UpdateVideoStatus(ctx, video.ID, VideoStatusFailed, msg)
		return
	}

	r.repo.UpdateVideoReady(ctx, video.ID, final.VideoID)
	r.repo.UpdateJobProgress(ctx, job.ID, 100)
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	r.logger.Info("video indexed",
		"job_id", job.ID,
		"video_id", video.ID,
		"platform_video_id", final.VideoID,
	)
}

func indexFailureMessage(err error) string {
	var failed *cloud.TaskFailedError
	switch {
	case errors.As(err, &failed):
		return fmt.Sprintf("platform indexing failed with status %q", failed.Status)
	case errors.Is(err, cloud.ErrWaitTimeout):
		return truncateStr(err.Error(), 512)
	default:
		return truncateStr(fmt.Sprintf("indexing task error: %v", err), 512)
	}
}

// processExtractJob plans clip windows for the video and cuts one file per
// window into the clips directory.
func (r *Runner) processExtractJob(ctx context.Context, job *Job) {
	if r.ex == nil {
		r.failJob(ctx, job, "extractor not configured")
		return
	}

	video := r.loadVideo(ctx, job)
	if video == nil {
		return
	}
	if video.Path == "" {
		r.failJob(ctx, job, "video has no local file")
		return
	}

	r.repo.MarkJobRunning(ctx, job.ID)

	duration := video.Duration
	if duration <= 0 {
		probed, ok := r.probeDuration(ctx, video)
		if !ok {
			r.failJob(ctx, job, "video duration unknown and probe failed")
			return
		}
		duration = probed
	}

	length, policy, includeOriginal := r.extractParams(job)
	specs, err := clip.Plan(duration, length, policy, includeOriginal)
	if err != nil {
		r.failJob(ctx, job, fmt.Sprintf("clip planning failed: %v", err))
		return
	}

	outDir := filepath.Join(r.cfg.ClipsDir(), video.ID)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		r.failJob(ctx, job, fmt.Sprintf("failed to create clips directory: %v", err))
		return
	}

	clips := make([]*Clip, 0, len(specs))
	for i, spec := range specs {
		select {
		case <-ctx.Done():
			r.failJob(ctx, job, "cancelled")
			return
		default:
		}

		path, err := r.ex.ExtractClip(ctx, video.Path, spec, outDir)
		if err != nil {
			r.failJob(ctx, job, truncateStr(fmt.Sprintf("clip %d: %v", spec.Index, err), 512))
			return
		}

		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}

		now := time.Now()
		clips = append(clips, &Clip{
			ID:        NewID("clip"),
			VideoID:   video.ID,
			Index:     spec.Index,
			StartSec:  spec.StartTime,
			EndSec:    spec.EndTime,
			Path:      path,
			Size:      size,
			CreatedAt: now,
		})

		r.repo.UpdateJobProgress(ctx, job.ID, (i+1)*100/len(specs))
	}

	if err := r.repo.ReplaceClips(ctx, video.ID, clips); err != nil {
		r.failJob(ctx, job, fmt.Sprintf("failed to record clips: %v", err))
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	r.logger.Info("clips extracted", "job_id", job.ID, "video_id", video.ID, "count", len(clips))
}

// processEmbedJob runs a platform embedding task over the video and stores
// the returned segments in the vector store, or dumps them as NDJSON under
// the data dir when no vector store is configured.
func (r *Runner) processEmbedJob(ctx context.Context, job *Job) {
	video := r.loadVideo(ctx, job)
	if video == nil {
		return
	}

	r.repo.MarkJobRunning(ctx, job.ID)

	req := cloud.CreateVideoTaskRequest{
		Model:      r.cfg.EmbeddingModel,
		ClipLength: r.cfg.ClipLength,
	}
	if remote := video.RemoteURL(); remote != "" {
		req.VideoURL = remote
	} else if video.Path != "" {
		req.VideoPath = video.Path
	} else {
		r.failJob(ctx, job, "video has no source to embed")
		return
	}

	task, err := r.client.Embed().CreateVideoTask(ctx, req)
	if err != nil {
		r.failJob(ctx, job, fmt.Sprintf("failed to create embedding task: %v", err))
		return
	}

	r.repo.UpdateJobProgress(ctx, job.ID, 10)

	opts := cloud.WaitOptions{
		Interval: r.cfg.PollInterval,
		Timeout:  r.cfg.PollTimeout,
		OnPoll: func(status string, elapsed time.Duration) {
			r.logger.Debug("embedding task poll",
				"job_id", job.ID, "task_id", task.ID, "status", status, "elapsed", elapsed)
		},
	}
	if _, err := r.client.Embed().WaitForVideoTask(ctx, task.ID, opts); err != nil {
		r.failJob(ctx, job, indexFailureMessage(err))
		return
	}

	result, err := r.client.Embed().RetrieveVideoTask(ctx, task.ID)
	if err != nil {
		r.failJob(ctx, job, fmt.Sprintf("failed to retrieve embeddings: %v", err))
		return
	}

	segments := result.VideoEmbedding.Segments
	if len(segments) == 0 {
		r.failJob(ctx, job, "embedding task returned no segments")
		return
	}

	model := result.ModelName
	if model == "" {
		model = r.cfg.EmbeddingModel
	}

	if r.vectors != nil {
		stored, err := r.vectors.InsertSegments(ctx, video.ID, model, segments)
		if err != nil {
			r.failJob(ctx, job, truncateStr(fmt.Sprintf("failed to store segments: %v", err), 512))
			return
		}
		r.logger.Info("embedding stored", "job_id", job.ID, "video_id", video.ID, "segments", stored)
	} else {
		path := filepath.Join(r.cfg.ExportsDir(), video.ID+".ndjson")
		if err := export.WriteNDJSONFile(path, video.ID, model, segments); err != nil {
			r.failJob(ctx, job, truncateStr(fmt.Sprintf("failed to export segments: %v", err), 512))
			return
		}
		r.logger.Info("embedding exported", "job_id", job.ID, "video_id", video.ID,
			"segments", len(segments), "path", path)
	}

	r.repo.UpdateJobProgress(ctx, job.ID, 100)
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
}

// extractParams resolves the planning knobs for an extract job: configured
// defaults, overridden by the job payload when one was queued.
func (r *Runner) extractParams(job *Job) (float64, clip.Policy, bool) {
	length := r.cfg.ClipLength
	policy := r.cfg.TrailingClipPolicy()
	includeOriginal := false

	if job.Payload == "" {
		return length, policy, includeOriginal
	}

	var params ExtractParams
	if err := json.Unmarshal([]byte(job.Payload), &params); err != nil {
		r.logger.Warn("ignoring malformed job payload", "job_id", job.ID, "error", err)
		return length, policy, includeOriginal
	}

	if params.ClipLength > 0 {
		length = params.ClipLength
	}
	if params.Policy != "" {
		if p, err := clip.ParsePolicy(params.Policy); err == nil {
			policy = p
		} else {
			r.logger.Warn("ignoring unknown trailing policy in job payload", "job_id", job.ID, "policy", params.Policy)
		}
	}
	return length, policy, params.IncludeOriginal
}

// ensureIndex returns the platform index to ingest into: the configured one,
// the one remembered from an earlier run, or a freshly created one.
func (r *Runner) ensureIndex(ctx context.Context) (string, error) {
	if r.cfg.IndexID != "" {
		return r.cfg.IndexID, nil
	}

	saved, err := r.repo.GetSetting(ctx, SettingIndexID)
	if err != nil {
		return "", err
	}
	if saved != "" {
		return saved, nil
	}

	idx, err := r.client.Indexes().Create(ctx, cloud.CreateIndexRequest{
		Name: r.cfg.IndexName,
		Models: []cloud.IndexModel{
			{Name: r.cfg.AnalysisModel, Options: r.cfg.ModelOptions},
			{Name: r.cfg.EmbeddingModel, Options: r.cfg.ModelOptions},
		},
	})
	if err != nil {
		return "", err
	}

	if err := r.repo.SetSetting(ctx, SettingIndexID, idx.ID); err != nil {
		r.logger.Warn("failed to persist index id", "index_id", idx.ID, "error", err)
	}
	r.logger.Info("created platform index", "index_id", idx.ID, "name", r.cfg.IndexName)
	return idx.ID, nil
}

func (r *Runner) loadVideo(ctx context.Context, job *Job) *Video {
	video, err := r.repo.GetVideo(ctx, job.VideoID)
	if err != nil || video == nil {
		r.failJob(ctx, job, "video not found")
		return nil
	}
	return video
}

// probeDuration returns the video's duration, probing the file when the
// catalog doesn't know it yet. A probe failure is logged, not fatal: the
// platform validates durations server-side anyway.
func (r *Runner) probeDuration(ctx context.Context, video *Video) (float64, bool) {
	if video.Duration > 0 {
		return video.Duration, true
	}
	if r.ex == nil || video.Path == "" {
		return 0, false
	}

	probed, err := r.ex.Probe(ctx, video.Path)
	if err != nil {
		r.logger.Warn("duration probe failed", "video_id", video.ID, "error", err)
		return 0, false
	}

	if err := r.repo.UpdateVideoDuration(ctx, video.ID, probed.Duration); err != nil {
		r.logger.Warn("failed to save duration", "video_id", video.ID, "error", err)
	}
	video.Duration = probed.Duration
	return probed.Duration, true
}

func (r *Runner) failJob(ctx context.Context, job *Job, msg string) {
	r.logger.Error("job failed", "job_id", job.ID, "type", job.Type, "error", msg)
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, msg)
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[len(s)-maxLen:]
}

func (r *Runner) GetActiveJobCount(ctx context.Context) int {
	jobs, err := r.repo.ListJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Status == JobStatusRunning {
			count++
		}
	}
	return count
}
