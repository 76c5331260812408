// Package uploader pushes local video files into the platform through
// multipart upload sessions: the file is cut into the session's fixed chunk
// size, chunks are PUT to presigned URLs by a bounded worker pool, and
// completed chunks are reported back in batches with their ETag proofs.
package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/scenedex/scenedex-agent/internal/cloud"
)

// urlPageSize is how many presigned URLs one page request returns.
const urlPageSize = 10

const (
	defaultWorkers     = 5
	defaultReportBatch = 10
	defaultPutTimeout  = 15 * time.Minute
)

// SessionAPI is the slice of the platform client the uploader needs.
// *cloud.AssetService satisfies it.
type SessionAPI interface {
	CreateUpload(ctx context.Context, filename string, totalSize int64) (*cloud.UploadSession, error)
	PresignedURLs(ctx context.Context, uploadID string, page, limit int) ([]cloud.ChunkURL, error)
	ReportChunks(ctx context.Context, uploadID string, completed []cloud.ChunkProof) (*cloud.ReportResult, error)
	UploadStatus(ctx context.Context, uploadID string) (*cloud.SessionStatus, error)
	GetAsset(ctx context.Context, assetID string) (*cloud.Asset, error)
}

type Options struct {
	// Workers bounds how many chunk PUTs run in parallel.
	Workers int
	// ReportBatch is how many completed chunks accumulate before a report.
	ReportBatch int
	// Wait tunes the completion status poll after the final report.
	Wait cloud.WaitOptions
	// HTTPClient overrides the client used for presigned PUTs.
	HTTPClient *http.Client
}

type Uploader struct {
	api         SessionAPI
	logger      *slog.Logger
	workers     int
	reportBatch int
	wait        cloud.WaitOptions
	httpClient  *http.Client
}

func New(api SessionAPI, logger *slog.Logger, opts Options) *Uploader {
	if opts.Workers < 1 {
		opts.Workers = defaultWorkers
	}
	if opts.ReportBatch < 1 {
		opts.ReportBatch = defaultReportBatch
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultPutTimeout}
	}
	return &Uploader{
		api:         api,
		logger:      logger,
		workers:     opts.Workers,
		reportBatch: opts.ReportBatch,
		wait:        opts.Wait,
		httpClient:  opts.HTTPClient,
	}
}

// Result describes a finished upload.
type Result struct {
	AssetID     string
	AssetURL    string
	TotalChunks int
	Bytes       int64
}

type chunkJob struct {
	index int
	data  []byte
	url   string
}

type chunkResult struct {
	proof cloud.ChunkProof
	err   error
}

// Upload pushes the file at path through a full multipart session and blocks
// until the platform reports the asset complete. At most Workers chunks are
// in flight at once; memory use is bounded by Workers+1 chunk buffers.
func (u *Uploader) Upload(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	session, err := u.api.CreateUpload(ctx, filepath.Base(path), info.Size())
	if err != nil {
		return nil, err
	}
	if session.TotalChunks < 1 || session.ChunkSize < 1 {
		return nil, fmt.Errorf("upload session %s is malformed: %d chunks of %d bytes", session.UploadID, session.TotalChunks, session.ChunkSize)
	}

	u.logger.Info("uploading file",
		"path", path,
		"bytes", info.Size(),
		"upload_id", session.UploadID,
		"total_chunks", session.TotalChunks,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan chunkJob)
	results := make(chan chunkResult, u.workers)

	var wg sync.WaitGroup
	for i := 0; i < u.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				proof, perr := u.putChunk(ctx, job)
				select {
				case results <- chunkResult{proof: proof, err: perr}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	rep := &reporter{
		api:       u.api,
		uploadID:  session.UploadID,
		batchSize: u.reportBatch,
		total:     session.TotalChunks,
		logger:    u.logger,
		cancel:    cancel,
	}
	reportDone := make(chan error, 1)
	go func() { reportDone <- rep.run(ctx, results) }()

	feedErr := u.feed(ctx, file, session, jobs)
	close(jobs)
	wg.Wait()
	close(results)
	repErr := <-reportDone

	if repErr != nil {
		return nil, repErr
	}
	if feedErr != nil {
		return nil, feedErr
	}

	status, err := u.waitForCompletion(ctx, session.UploadID)
	if err != nil {
		return nil, err
	}
	if status.ChunksCompleted != session.TotalChunks {
		u.logger.Warn("upload completed with unexpected chunk count",
			"chunks_completed", status.ChunksCompleted,
			"total_chunks", session.TotalChunks,
		)
	}

	result := &Result{
		AssetID:     session.AssetID,
		TotalChunks: session.TotalChunks,
		Bytes:       info.Size(),
	}
	asset, err := u.api.GetAsset(ctx, session.AssetID)
	if err != nil {
		return nil, err
	}
	result.AssetURL = asset.URL
	if result.AssetURL == "" && rep.lastResult != nil {
		result.AssetURL = rep.lastResult.URL
	}

	u.logger.Info("upload finished", "asset_id", result.AssetID, "chunks", result.TotalChunks)
	return result, nil
}

// feed reads chunks sequentially and hands them to the worker pool, fetching
// presigned URL pages on demand. Chunk indexes are 1-based.
func (u *Uploader) feed(ctx context.Context, file *os.File, session *cloud.UploadSession, jobs chan<- chunkJob) error {
	urls := make(map[int]string, session.TotalChunks)
	for _, cu := range session.URLs {
		urls[cu.ChunkIndex] = cu.URL
	}

	for idx := 1; idx <= session.TotalChunks; idx++ {
		url, ok := urls[idx]
		if !ok {
			page := (idx-1)/urlPageSize + 1
			fetched, err := u.api.PresignedURLs(ctx, session.UploadID, page, urlPageSize)
			if err != nil {
				return err
			}
			for _, cu := range fetched {
				urls[cu.ChunkIndex] = cu.URL
			}
			if url, ok = urls[idx]; !ok {
				return fmt.Errorf("platform returned no presigned url for chunk %d (page %d)", idx, page)
			}
		}

		data := make([]byte, session.ChunkSize)
		n, err := io.ReadFull(file, data)
		if err == io.ErrUnexpectedEOF && idx == session.TotalChunks && n > 0 {
			err = nil
		}
		if err != nil {
			return fmt.Errorf("read chunk %d: %w", idx, err)
		}

		select {
		case jobs <- chunkJob{index: idx, data: data[:n], url: url}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// putChunk PUTs one chunk to its presigned URL and turns the returned ETag
// into a proof. A retryable status gets one second attempt.
func (u *Uploader) putChunk(ctx context.Context, job chunkJob) (cloud.ChunkProof, error) {
	etag, err := u.putOnce(ctx, job)
	if err != nil {
		var perr *putError
		if errors.As(err, &perr) && perr.retryable() {
			u.logger.Warn("retrying chunk upload", "chunk_index", job.index, "error", err)
			etag, err = u.putOnce(ctx, job)
		}
	}
	if err != nil {
		return cloud.ChunkProof{}, fmt.Errorf("chunk %d: %w", job.index, err)
	}
	return cloud.ChunkProof{
		ChunkIndex: job.index,
		Proof:      etag,
		ProofType:  "etag",
		ChunkSize:  int64(len(job.data)),
	}, nil
}

func (u *Uploader) putOnce(ctx context.Context, job chunkJob) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, job.url, bytes.NewReader(job.data))
	if err != nil {
		return "", fmt.Errorf("create chunk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(job.data))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("put chunk: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &putError{statusCode: resp.StatusCode, body: string(body)}
	}

	etag := strings.Trim(resp.Header.Get("ETag"), `"`)
	if etag == "" {
		return "", fmt.Errorf("storage returned no etag for chunk %d", job.index)
	}
	return etag, nil
}

func (u *Uploader) waitForCompletion(ctx context.Context, uploadID string) (*cloud.SessionStatus, error) {
	interval := u.wait.Interval
	if interval <= 0 {
		interval = cloud.DefaultWaitInterval
	}
	timeout := u.wait.Timeout
	if timeout <= 0 {
		timeout = cloud.DefaultWaitTimeout
	}

	start := time.Now()
	for {
		status, err := u.api.UploadStatus(ctx, uploadID)
		if err != nil {
			return nil, err
		}
		if u.wait.OnPoll != nil {
			u.wait.OnPoll(status.Status, time.Since(start))
		}

		switch status.Status {
		case "completed":
			return status, nil
		case "failed":
			return status, fmt.Errorf("upload session %s failed after %d/%d chunks", uploadID, status.ChunksCompleted, status.TotalChunks)
		}

		if time.Since(start)+interval > timeout {
			return status, fmt.Errorf("%w: upload %s still %q after %s", cloud.ErrWaitTimeout, uploadID, status.Status, timeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// putError is a non-2xx response from the presigned storage URL.
type putError struct {
	statusCode int
	body       string
}

func (e *putError) Error() string {
	return fmt.Sprintf("chunk upload failed: HTTP %d: %s", e.statusCode, e.body)
}

func (e *putError) retryable() bool {
	return e.statusCode >= 500 || e.statusCode == http.StatusTooManyRequests
}

// reporter batches completed-chunk proofs into ReportChunks calls, in the
// order chunks finish. It cancels the shared context on the first failure.
type reporter struct {
	api       SessionAPI
	uploadID  string
	batchSize int
	total     int
	logger    *slog.Logger
	cancel    context.CancelFunc

	completed  int
	lastResult *cloud.ReportResult
}

func (r *reporter) run(ctx context.Context, results <-chan chunkResult) error {
	pending := make([]cloud.ChunkProof, 0, r.batchSize)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		res, err := r.api.ReportChunks(ctx, r.uploadID, pending)
		if err != nil {
			return err
		}
		r.lastResult = res
		r.logger.Debug("chunk batch reported",
			"batch", len(pending),
			"total_completed", res.TotalCompleted,
		)
		pending = pending[:0]
		return nil
	}

	for res := range results {
		if res.err != nil {
			r.cancel()
			return res.err
		}

		pending = append(pending, res.proof)
		r.completed++

		if len(pending) >= r.batchSize || r.completed == r.total {
			if err := flush(); err != nil {
				r.cancel()
				return err
			}
		}
		if r.completed == r.total {
			return nil
		}
	}

	// Channel closed early: the feeder aborted and its error wins.
	return nil
}
