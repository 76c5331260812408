package catalog

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateVideo(ctx context.Context, video *Video) error
	GetVideo(ctx context.Context, id string) (*Video, error)
	GetVideoByFingerprint(ctx context.Context, fingerprint string) (*Video, error)
	GetVideoByURL(ctx context.Context, url string) (*Video, error)
	ListVideos(ctx context.Context, limit int) ([]*Video, error)
	UpdateVideoStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateVideoAsset(ctx context.Context, id, assetID, assetURL string) error
	UpdateVideoIndexing(ctx context.Context, id, indexID, taskID string) error
	UpdateVideoReady(ctx context.Context, id, platformVideoID string) error
	UpdateVideoDuration(ctx context.Context, id string, duration float64) error
	DeleteVideo(ctx context.Context, id string) error
	CountVideosByStatus(ctx context.Context) (map[string]int, error)

	CreateUpload(ctx context.Context, upload *Upload) error
	UpdateUpload(ctx context.Context, upload *Upload) error
	ListUploadsByVideo(ctx context.Context, videoID string) ([]*Upload, error)

	ReplaceClips(ctx context.Context, videoID string, clips []*Clip) error
	ListClipsByVideo(ctx context.Context, videoID string) ([]*Clip, error)
	GetClipByFilename(ctx context.Context, filename string) (*Clip, error)

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	MarkJobRunning(ctx context.Context, id string) error
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const videoColumns = `id, source_type, path, url, filename, size, fingerprint, duration_sec, title,
	status, asset_id, asset_url, task_id, platform_video_id, index_id, error, created_at, updated_at`

func (r *SQLiteRepository) CreateVideo(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.SourceType, nullString(v.Path), nullString(v.URL), nullString(v.Filename), v.Size,
		nullString(v.Fingerprint), v.Duration, nullString(v.Title), v.Status,
		nullString(v.AssetID), nullString(v.AssetURL), nullString(v.TaskID),
		nullString(v.PlatformVideoID), nullString(v.IndexID), nullString(v.Error),
		formatTime(v.CreatedAt), formatTime(v.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	return scanVideo(row)
}

func (r *SQLiteRepository) GetVideoByFingerprint(ctx context.Context, fingerprint string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE fingerprint = ?`, fingerprint)
	return scanVideo(row)
}

func (r *SQLiteRepository) GetVideoByURL(ctx context.Context, url string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE url = ?`, url)
	return scanVideo(row)
}

func (r *SQLiteRepository) ListVideos(ctx context.Context, limit int) ([]*Video, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (r *SQLiteRepository) UpdateVideoStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE videos SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), nowString(), id)
	return err
}

func (r *SQLiteRepository) UpdateVideoAsset(ctx context.Context, id, assetID, assetURL string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE videos SET asset_id = ?, asset_url = ?, updated_at = ? WHERE id = ?
	`, nullString(assetID), nullString(assetURL), nowString(), id)
	return err
}

func (r *SQLiteRepository) UpdateVideoIndexing(ctx context.Context, id, indexID, taskID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE videos SET status = ?, index_id = ?, task_id = ?, updated_at = ? WHERE id = ?
	`, VideoStatusIndexing, nullString(indexID), nullString(taskID), nowString(), id)
	return err
}

func (r *SQLiteRepository) UpdateVideoReady(ctx context.Context, id, platformVideoID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE videos SET status = ?, platform_video_id = ?, error = NULL, updated_at = ? WHERE id = ?
	`, VideoStatusReady, nullString(platformVideoID), nowString(), id)
	return err
}

func (r *SQLiteRepository) UpdateVideoDuration(ctx context.Context, id string, duration float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE videos SET duration_sec = ?, updated_at = ? WHERE id = ?
	`, duration, nowString(), id)
	return err
}

// DeleteVideo removes the video row and everything hanging off it.
func (r *SQLiteRepository) DeleteVideo(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM clips WHERE video_id = ?",
		"DELETE FROM jobs WHERE video_id = ?",
		"DELETE FROM uploads WHERE video_id = ?",
		"DELETE FROM videos WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) CountVideosByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM videos GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *SQLiteRepository) CreateUpload(ctx context.Context, u *Upload) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO uploads (id, video_id, asset_id, total_chunks, bytes, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.VideoID, nullString(u.AssetID), u.TotalChunks, u.Bytes, u.Status,
		nullString(u.Error), formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	return err
}

func (r *SQLiteRepository) UpdateUpload(ctx context.Context, u *Upload) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE uploads SET asset_id = ?, total_chunks = ?, status = ?, error = ?, updated_at = ? WHERE id = ?
	`, nullString(u.AssetID), u.TotalChunks, u.Status, nullString(u.Error), nowString(), u.ID)
	return err
}

func (r *SQLiteRepository) ListUploadsByVideo(ctx context.Context, videoID string) ([]*Upload, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, video_id, asset_id, total_chunks, bytes, status, error, created_at, updated_at
		FROM uploads WHERE video_id = ? ORDER BY created_at DESC
	`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		var u Upload
		var assetID, errMsg sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&u.ID, &u.VideoID, &assetID, &u.TotalChunks, &u.Bytes, &u.Status, &errMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		u.AssetID = assetID.String
		u.Error = errMsg.String
		u.CreatedAt = parseTime(createdAt)
		u.UpdatedAt = parseTime(updatedAt)
		uploads = append(uploads, &u)
	}
	return uploads, rows.Err()
}

// ReplaceClips swaps a video's clip rows for a fresh extraction in one
// transaction, so readers never see a partial set.
func (r *SQLiteRepository) ReplaceClips(ctx context.Context, videoID string, clips []*Clip) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM clips WHERE video_id = ?", videoID); err != nil {
		return err
	}
	for _, c := range clips {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clips (id, video_id, clip_index, start_sec, end_sec, path, filename, size, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.VideoID, c.Index, c.StartSec, c.EndSec, c.Path, c.Filename(), c.Size, formatTime(c.CreatedAt))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) ListClipsByVideo(ctx context.Context, videoID string) ([]*Clip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, video_id, clip_index, start_sec, end_sec, path, size, created_at
		FROM clips WHERE video_id = ? ORDER BY clip_index
	`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []*Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

func (r *SQLiteRepository) GetClipByFilename(ctx context.Context, filename string) (*Clip, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, video_id, clip_index, start_sec, end_sec, path, size, created_at
		FROM clips WHERE filename = ? ORDER BY created_at DESC LIMIT 1
	`, filename)
	return scanClip(row)
}

const jobColumns = `id, video_id, type, status, progress, attempts, payload, error, created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, nullString(j.VideoID), j.Type, j.Status, j.Progress, j.Attempts,
		nullString(j.Payload), nullString(j.Error), formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (r *SQLiteRepository) MarkJobRunning(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, attempts = attempts + 1, error = NULL, updated_at = ? WHERE id = ?
	`, JobStatusRunning, nowString(), id)
	return err
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), nowString(), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, nowString(), id)
	return err
}

func (r *SQLiteRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*Video, error) {
	var v Video
	var path, url, filename, fingerprint, title, assetID, assetURL, taskID, platformVideoID, indexID, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&v.ID, &v.SourceType, &path, &url, &filename, &v.Size, &fingerprint, &v.Duration, &title,
		&v.Status, &assetID, &assetURL, &taskID, &platformVideoID, &indexID, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	v.Path = path.String
	v.URL = url.String
	v.Filename = filename.String
	v.Fingerprint = fingerprint.String
	v.Title = title.String
	v.AssetID = assetID.String
	v.AssetURL = assetURL.String
	v.TaskID = taskID.String
	v.PlatformVideoID = platformVideoID.String
	v.IndexID = indexID.String
	v.Error = errMsg.String
	v.CreatedAt = parseTime(createdAt)
	v.UpdatedAt = parseTime(updatedAt)
	return &v, nil
}

func scanClip(row rowScanner) (*Clip, error) {
	var c Clip
	var createdAt string
	err := row.Scan(&c.ID, &c.VideoID, &c.Index, &c.StartSec, &c.EndSec, &c.Path, &c.Size, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var videoID, payload, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &videoID, &j.Type, &j.Status, &j.Progress, &j.Attempts, &payload, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	j.VideoID = videoID.String
	j.Payload = payload.String
	j.Error = errMsg.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nowString() string {
	return formatTime(time.Now())
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
