package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scenedex/scenedex-agent/internal/db"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := NewRepository(database.Conn())
	return database, repo
}

func writeVideoFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestService_SubmitPath(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	path := writeVideoFile(t, t.TempDir(), "movie.mp4", []byte("fake video content"))

	video, job, err := svc.SubmitPath(ctx, path)
	if err != nil {
		t.Fatalf("SubmitPath() error = %v", err)
	}

	if !strings.HasPrefix(video.ID, "vid_") {
		t.Errorf("video.ID = %q, want vid_ prefix", video.ID)
	}
	if video.SourceType != SourceTypeFile {
		t.Errorf("video.SourceType = %q, want %q", video.SourceType, SourceTypeFile)
	}
	if video.Status != VideoStatusPending {
		t.Errorf("video.Status = %q, want %q", video.Status, VideoStatusPending)
	}
	if video.Fingerprint == "" {
		t.Error("video.Fingerprint is empty")
	}
	if !strings.HasSuffix(video.Fingerprint, ":18") {
		t.Errorf("video.Fingerprint = %q, want :<size> suffix", video.Fingerprint)
	}
	if job == nil {
		t.Fatal("SubmitPath() returned no job")
	}
	if job.Type != JobTypeUpload {
		t.Errorf("job type = %q, want %q", job.Type, JobTypeUpload)
	}
	if job.VideoID != video.ID {
		t.Errorf("job video_id = %q, want %q", job.VideoID, video.ID)
	}

	jobs, err := repo.ListPendingJobs(ctx)
	if err != nil {
		t.Fatalf("ListPendingJobs() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d pending jobs, want 1", len(jobs))
	}
	if jobs[0].ID != job.ID {
		t.Errorf("pending job id = %q, want %q", jobs[0].ID, job.ID)
	}
}

func TestService_SubmitPath_Dedupes(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	path := writeVideoFile(t, t.TempDir(), "movie.mp4", []byte("same bytes"))

	first, _, err := svc.SubmitPath(ctx, path)
	if err != nil {
		t.Fatalf("first SubmitPath() error = %v", err)
	}
	second, job, err := svc.SubmitPath(ctx, path)
	if err != nil {
		t.Fatalf("second SubmitPath() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("second submit returned %q, want existing %q", second.ID, first.ID)
	}
	if job != nil {
		t.Errorf("resubmit queued job %q, want none", job.ID)
	}

	jobs, _ := repo.ListPendingJobs(ctx)
	if len(jobs) != 1 {
		t.Errorf("got %d pending jobs after resubmit, want 1", len(jobs))
	}
}

func TestService_SubmitPath_SameContentDifferentName(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	dir := t.TempDir()
	first, _, err := svc.SubmitPath(ctx, writeVideoFile(t, dir, "a.mp4", []byte("identical")))
	if err != nil {
		t.Fatalf("SubmitPath() error = %v", err)
	}
	second, _, err := svc.SubmitPath(ctx, writeVideoFile(t, dir, "b.mp4", []byte("identical")))
	if err != nil {
		t.Fatalf("SubmitPath() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("renamed copy created new video %q, want dedupe to %q", second.ID, first.ID)
	}
}

func TestService_SubmitPath_RejectsNonVideo(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)

	path := writeVideoFile(t, t.TempDir(), "notes.txt", []byte("text"))

	if _, _, err := svc.SubmitPath(context.Background(), path); err == nil {
		t.Error("SubmitPath() should reject a non-video file")
	}
}

func TestService_SubmitPath_MissingFile(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)

	_, _, err := svc.SubmitPath(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"))
	if err == nil {
		t.Error("SubmitPath() should fail for a missing file")
	}
}

func TestService_SubmitURL(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	video, job, err := svc.SubmitURL(ctx, "https://videos.example.com/launch.mp4")
	if err != nil {
		t.Fatalf("SubmitURL() error = %v", err)
	}

	if video.SourceType != SourceTypeURL {
		t.Errorf("video.SourceType = %q, want %q", video.SourceType, SourceTypeURL)
	}
	if video.Path != "" {
		t.Errorf("video.Path = %q, want empty for url source", video.Path)
	}
	if job == nil || job.Type != JobTypeIndex {
		t.Fatalf("job = %+v, want an index_video job (url sources skip upload)", job)
	}

	jobs, _ := repo.ListPendingJobs(ctx)
	if len(jobs) != 1 {
		t.Fatalf("got %d pending jobs, want 1", len(jobs))
	}
}

func TestService_SubmitURL_YouTube(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)

	video, _, err := svc.SubmitURL(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("SubmitURL() error = %v", err)
	}
	if video.SourceType != SourceTypeYouTube {
		t.Errorf("video.SourceType = %q, want %q", video.SourceType, SourceTypeYouTube)
	}
}

func TestService_SubmitURL_Dedupes(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	url := "https://videos.example.com/launch.mp4"
	first, _, _ := svc.SubmitURL(ctx, url)
	second, job, err := svc.SubmitURL(ctx, url)
	if err != nil {
		t.Fatalf("second SubmitURL() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second submit returned %q, want existing %q", second.ID, first.ID)
	}
	if job != nil {
		t.Errorf("resubmit queued job %q, want none", job.ID)
	}
}

func TestService_RequestClips_RequiresLocalFile(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	video, _, err := svc.SubmitURL(ctx, "https://videos.example.com/remote.mp4")
	if err != nil {
		t.Fatalf("SubmitURL() error = %v", err)
	}

	if _, err := svc.RequestClips(ctx, video.ID, nil); err == nil {
		t.Error("RequestClips() should fail for a url-only video")
	}
}

func TestService_RequestClips_PersistsParams(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	path := writeVideoFile(t, t.TempDir(), "talk.mp4", []byte("bytes"))
	video, _, err := svc.SubmitPath(ctx, path)
	if err != nil {
		t.Fatalf("SubmitPath() error = %v", err)
	}

	job, err := svc.RequestClips(ctx, video.ID, &ExtractParams{
		ClipLength:      10,
		Policy:          "truncate",
		IncludeOriginal: true,
	})
	if err != nil {
		t.Fatalf("RequestClips() error = %v", err)
	}

	stored, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	var params ExtractParams
	if err := json.Unmarshal([]byte(stored.Payload), &params); err != nil {
		t.Fatalf("payload %q does not decode: %v", stored.Payload, err)
	}
	if params.ClipLength != 10 || params.Policy != "truncate" || !params.IncludeOriginal {
		t.Errorf("decoded params = %+v, want the requested overrides", params)
	}
}

func TestService_Stats(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	dir := t.TempDir()
	if _, _, err := svc.SubmitPath(ctx, writeVideoFile(t, dir, "a.mp4", []byte("aaa"))); err != nil {
		t.Fatalf("SubmitPath() error = %v", err)
	}
	if _, _, err := svc.SubmitURL(ctx, "https://videos.example.com/b.mp4"); err != nil {
		t.Fatalf("SubmitURL() error = %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalVideos != 2 {
		t.Errorf("TotalVideos = %d, want 2", stats.TotalVideos)
	}
	if stats.Videos[VideoStatusPending] != 2 {
		t.Errorf("pending videos = %d, want 2", stats.Videos[VideoStatusPending])
	}
	if stats.ActiveJobs != 2 {
		t.Errorf("ActiveJobs = %d, want 2", stats.ActiveJobs)
	}
}

func TestClassifyURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://videos.example.com/a.mp4", SourceTypeURL, false},
		{"http://cdn.example.com/path/clip.MOV", SourceTypeURL, false},
		{"https://www.youtube.com/watch?v=abc123", SourceTypeYouTube, false},
		{"https://youtu.be/abc123", SourceTypeYouTube, false},
		{"https://m.youtube.com/watch?v=abc123", SourceTypeYouTube, false},
		{"https://example.com/page.html", "", true},
		{"ftp://example.com/a.mp4", "", true},
		{"not a url at all://", "", true},
		{"/local/path.mp4", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ClassifyURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ClassifyURL(%q) expected error, got %q", tt.url, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ClassifyURL(%q) error = %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("ClassifyURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsVideoFile(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"video.mp4", true},
		{"video.MP4", true},
		{"video.mov", true},
		{"video.mkv", true},
		{"video.avi", true},
		{"video.webm", true},
		{"document.pdf", false},
		{"image.jpg", false},
		{"noextension", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := IsVideoFile(tt.filename); got != tt.want {
				t.Errorf("IsVideoFile(%s) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}
