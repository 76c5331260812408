package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// fingerprintSize is how many leading bytes feed the content hash. Combined
// with the file size it is cheap to compute and stable across renames.
const fingerprintSize = 64 * 1024

type CatalogService interface {
	SubmitPath(ctx context.Context, path string) (*Video, *Job, error)
	SubmitURL(ctx context.Context, rawURL string) (*Video, *Job, error)
	GetVideo(ctx context.Context, id string) (*Video, error)
	ListVideos(ctx context.Context, limit int) ([]*Video, error)
	RemoveVideo(ctx context.Context, id string) error
	RequestClips(ctx context.Context, videoID string, params *ExtractParams) (*Job, error)
	RequestEmbedding(ctx context.Context, videoID string) (*Job, error)
	ListClips(ctx context.Context, videoID string) ([]*Clip, error)
	GetClipByFilename(ctx context.Context, filename string) (*Clip, error)
	ListUploads(ctx context.Context, videoID string) ([]*Upload, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	Stats(ctx context.Context) (*Stats, error)
}

type Stats struct {
	Videos      map[string]int `json:"videos"`
	TotalVideos int            `json:"total_videos"`
	ActiveJobs  int            `json:"active_jobs"`
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// SubmitPath registers a local video file and queues its upload. Submitting
// a file the catalog has already seen returns the existing video with no new
// job.
func (s *Service) SubmitPath(ctx context.Context, path string) (*Video, *Job, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, nil, fmt.Errorf("path does not exist: %w", err)
	}
	if info.IsDir() {
		return nil, nil, fmt.Errorf("path is a directory")
	}
	if !IsVideoFile(filepath.Base(absPath)) {
		return nil, nil, fmt.Errorf("%s is not a recognized video file", filepath.Base(absPath))
	}

	fingerprint, err := computeFingerprint(absPath, info.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("fingerprint %s: %w", absPath, err)
	}

	existing, err := s.repo.GetVideoByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return existing, nil, nil
	}

	now := time.Now()
	video := &Video{
		ID:          NewID("vid"),
		SourceType:  SourceTypeFile,
		Path:        absPath,
		Filename:    filepath.Base(absPath),
		Size:        info.Size(),
		Fingerprint: fingerprint,
		Status:      VideoStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateVideo(ctx, video); err != nil {
		return nil, nil, err
	}

	job, err := s.createJob(ctx, video.ID, JobTypeUpload, "")
	if err != nil {
		return nil, nil, err
	}

	if s.logger != nil {
		s.logger.Info("video file submitted", "video_id", video.ID, "path", absPath, "bytes", info.Size())
	}
	return video, job, nil
}

// SubmitURL registers a remote video and queues indexing directly; the
// platform pulls the URL itself, so no upload job is needed.
func (s *Service) SubmitURL(ctx context.Context, rawURL string) (*Video, *Job, error) {
	sourceType, err := ClassifyURL(rawURL)
	if err != nil {
		return nil, nil, err
	}

	existing, err := s.repo.GetVideoByURL(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return existing, nil, nil
	}

	now := time.Now()
	video := &Video{
		ID:         NewID("vid"),
		SourceType: sourceType,
		URL:        rawURL,
		Status:     VideoStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateVideo(ctx, video); err != nil {
		return nil, nil, err
	}

	job, err := s.createJob(ctx, video.ID, JobTypeIndex, "")
	if err != nil {
		return nil, nil, err
	}

	if s.logger != nil {
		s.logger.Info("video url submitted", "video_id", video.ID, "source_type", sourceType)
	}
	return video, job, nil
}

func (s *Service) GetVideo(ctx context.Context, id string) (*Video, error) {
	return s.repo.GetVideo(ctx, id)
}

func (s *Service) ListVideos(ctx context.Context, limit int) ([]*Video, error) {
	return s.repo.ListVideos(ctx, limit)
}

func (s *Service) RemoveVideo(ctx context.Context, id string) error {
	return s.repo.DeleteVideo(ctx, id)
}

// RequestClips queues clip extraction. The video must live on local disk;
// URL sources have nothing to cut. A non-nil params overrides the configured
// planning defaults for this job only.
func (s *Service) RequestClips(ctx context.Context, videoID string, params *ExtractParams) (*Job, error) {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, fmt.Errorf("video not found")
	}
	if video.Path == "" {
		return nil, fmt.Errorf("video %s has no local file to extract clips from", videoID)
	}

	payload := ""
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode clip params: %w", err)
		}
		payload = string(raw)
	}
	return s.createJob(ctx, videoID, JobTypeExtract, payload)
}

// RequestEmbedding queues a video embedding pass against the platform.
func (s *Service) RequestEmbedding(ctx context.Context, videoID string) (*Job, error) {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, fmt.Errorf("video not found")
	}
	if video.RemoteURL() == "" && video.Path == "" {
		return nil, fmt.Errorf("video %s has no source to embed", videoID)
	}
	return s.createJob(ctx, videoID, JobTypeEmbed, "")
}

func (s *Service) ListClips(ctx context.Context, videoID string) ([]*Clip, error) {
	return s.repo.ListClipsByVideo(ctx, videoID)
}

func (s *Service) GetClipByFilename(ctx context.Context, filename string) (*Clip, error) {
	return s.repo.GetClipByFilename(ctx, filename)
}

func (s *Service) ListUploads(ctx context.Context, videoID string) ([]*Upload, error) {
	return s.repo.ListUploadsByVideo(ctx, videoID)
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.CountVideosByStatus(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{Videos: counts}
	for _, n := range counts {
		stats.TotalVideos += n
	}

	jobs, err := s.repo.ListJobs(ctx, 500)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if j.Status == JobStatusPending || j.Status == JobStatusRunning {
			stats.ActiveJobs++
		}
	}
	return stats, nil
}

func (s *Service) createJob(ctx context.Context, videoID, jobType, payload string) (*Job, error) {
	now := time.Now()
	job := &Job{
		ID:        NewID("job"),
		VideoID:   videoID,
		Type:      jobType,
		Status:    JobStatusPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("job queued", "job_id", job.ID, "type", jobType, "video_id", videoID)
	}
	return job, nil
}

func computeFingerprint(path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, io.LimitReader(f, fingerprintSize)); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s:%d", hex.EncodeToString(h.Sum(nil)), size), nil
}
