package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scenedex/scenedex-agent/internal/cloud"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// fakePlatform implements the multipart session endpoints plus the presigned
// chunk PUTs, all on one httptest server.
type fakePlatform struct {
	mu          sync.Mutex
	chunkSize   int64
	totalChunks int
	chunks      map[int][]byte
	putAttempts map[int]int
	reports     [][]cloud.ChunkProof
	pages       []int
	statusPolls int

	// failPut returns a non-zero status to force for a given chunk attempt.
	failPut func(index, attempt int) int

	server *httptest.Server
}

func newFakePlatform(t *testing.T, chunkSize int64) *fakePlatform {
	t.Helper()
	p := &fakePlatform{
		chunkSize:   chunkSize,
		chunks:      make(map[int][]byte),
		putAttempts: make(map[int]int),
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePlatform) chunkURLs(from, to int) []cloud.ChunkURL {
	urls := make([]cloud.ChunkURL, 0, to-from+1)
	for i := from; i <= to && i <= p.totalChunks; i++ {
		urls = append(urls, cloud.ChunkURL{
			ChunkIndex: i,
			URL:        p.server.URL + "/chunks/" + strconv.Itoa(i),
		})
	}
	return urls
}

func (p *fakePlatform) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/chunks/"):
		p.handlePut(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/assets/multipart-uploads":
		p.handleCreate(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/presigned-urls"):
		p.handlePresigned(w, r)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/assets/multipart-uploads/"):
		p.handleReport(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/assets/multipart-uploads/"):
		p.handleStatus(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/assets/"):
		fmt.Fprint(w, `{"_id":"asset_123","url":"https://cdn.example/asset_123.mp4","status":"ready"}`)
	default:
		http.Error(w, `{"code":"not_found","message":"no route"}`, http.StatusNotFound)
	}
}

func (p *fakePlatform) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename  string `json:"filename"`
		Type      string `json:"type"`
		TotalSize int64  `json:"total_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.totalChunks = int((req.TotalSize + p.chunkSize - 1) / p.chunkSize)
	total := p.totalChunks
	p.mu.Unlock()

	json.NewEncoder(w).Encode(cloud.UploadSession{
		UploadID:    "upl_test",
		AssetID:     "asset_123",
		TotalChunks: total,
		ChunkSize:   p.chunkSize,
		URLs:        p.chunkURLs(1, urlPageSize),
	})
}

func (p *fakePlatform) handlePresigned(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.pages = append(p.pages, req.Page)
	p.mu.Unlock()

	from := (req.Page-1)*req.Limit + 1
	json.NewEncoder(w).Encode(struct {
		URLs []cloud.ChunkURL `json:"upload_urls"`
	}{p.chunkURLs(from, from+req.Limit-1)})
}

func (p *fakePlatform) handlePut(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/chunks/"))
	if err != nil {
		http.Error(w, "bad chunk index", http.StatusBadRequest)
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "application/octet-stream" {
		http.Error(w, "unexpected content type "+ct, http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	p.mu.Lock()
	p.putAttempts[idx]++
	attempt := p.putAttempts[idx]
	failWith := 0
	if p.failPut != nil {
		failWith = p.failPut(idx, attempt)
	}
	if failWith == 0 {
		p.chunks[idx] = body
	}
	p.mu.Unlock()

	if failWith != 0 {
		http.Error(w, "storage error", failWith)
		return
	}
	w.Header().Set("ETag", `"etag-`+strconv.Itoa(idx)+`"`)
	w.WriteHeader(http.StatusOK)
}

func (p *fakePlatform) handleReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompletedChunks []cloud.ChunkProof `json:"completed_chunks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.reports = append(p.reports, req.CompletedChunks)
	total := 0
	for _, batch := range p.reports {
		total += len(batch)
	}
	p.mu.Unlock()

	json.NewEncoder(w).Encode(cloud.ReportResult{
		ProcessedChunks: len(req.CompletedChunks),
		TotalCompleted:  total,
	})
}

func (p *fakePlatform) handleStatus(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.statusPolls++
	done := len(p.chunks)
	total := p.totalChunks
	p.mu.Unlock()

	status := "processing"
	if done == total {
		status = "completed"
	}
	json.NewEncoder(w).Encode(cloud.SessionStatus{
		Status:          status,
		ChunksCompleted: done,
		TotalChunks:     total,
	})
}

func (p *fakePlatform) uploader(t *testing.T, opts Options) *Uploader {
	t.Helper()
	client := cloud.New(p.server.URL, "sk-test-key", testLogger())
	if opts.Wait.Interval == 0 {
		opts.Wait = cloud.WaitOptions{Interval: 5 * time.Millisecond, Timeout: time.Second}
	}
	return New(client.Assets(), testLogger(), opts)
}

func writeTestFile(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), "movie.mp4")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func TestUpload_ChunksReportsAndCompletes(t *testing.T) {
	const chunkSize = 1024
	fileSize := 23*chunkSize - 100 // 23 chunks, last one short

	platform := newFakePlatform(t, chunkSize)
	path := writeTestFile(t, fileSize)
	up := platform.uploader(t, Options{Workers: 4, ReportBatch: 10})

	result, err := up.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.AssetID != "asset_123" {
		t.Errorf("AssetID = %q, want %q", result.AssetID, "asset_123")
	}
	if result.AssetURL != "https://cdn.example/asset_123.mp4" {
		t.Errorf("AssetURL = %q, want cdn url", result.AssetURL)
	}
	if result.TotalChunks != 23 {
		t.Errorf("TotalChunks = %d, want 23", result.TotalChunks)
	}
	if result.Bytes != int64(fileSize) {
		t.Errorf("Bytes = %d, want %d", result.Bytes, fileSize)
	}

	platform.mu.Lock()
	defer platform.mu.Unlock()

	if len(platform.chunks) != 23 {
		t.Fatalf("stored %d chunks, want 23", len(platform.chunks))
	}
	var rebuilt bytes.Buffer
	for i := 1; i <= 23; i++ {
		rebuilt.Write(platform.chunks[i])
	}
	want := make([]byte, fileSize)
	for i := range want {
		want[i] = byte(i % 251)
	}
	if !bytes.Equal(rebuilt.Bytes(), want) {
		t.Error("reassembled chunks do not match the source file")
	}
	if got := len(platform.chunks[23]); got != chunkSize-100 {
		t.Errorf("last chunk is %d bytes, want %d", got, chunkSize-100)
	}
}

func TestUpload_FetchesRemainingURLPages(t *testing.T) {
	const chunkSize = 1024
	platform := newFakePlatform(t, chunkSize)
	path := writeTestFile(t, 23*chunkSize-100)
	up := platform.uploader(t, Options{Workers: 4})

	if _, err := up.Upload(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	platform.mu.Lock()
	defer platform.mu.Unlock()

	// Page 1 rode along on the session; chunks 11-23 need pages 2 and 3.
	if len(platform.pages) != 2 || platform.pages[0] != 2 || platform.pages[1] != 3 {
		t.Errorf("requested pages %v, want [2 3]", platform.pages)
	}
}

func TestUpload_BatchesChunkReports(t *testing.T) {
	const chunkSize = 1024
	platform := newFakePlatform(t, chunkSize)
	path := writeTestFile(t, 23*chunkSize-100)
	up := platform.uploader(t, Options{Workers: 4, ReportBatch: 10})

	if _, err := up.Upload(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	platform.mu.Lock()
	defer platform.mu.Unlock()

	if len(platform.reports) != 3 {
		t.Fatalf("got %d report calls, want 3", len(platform.reports))
	}
	sizes := []int{len(platform.reports[0]), len(platform.reports[1]), len(platform.reports[2])}
	if sizes[0] != 10 || sizes[1] != 10 || sizes[2] != 3 {
		t.Errorf("report batch sizes = %v, want [10 10 3]", sizes)
	}

	seen := make(map[int]cloud.ChunkProof)
	for _, batch := range platform.reports {
		for _, proof := range batch {
			seen[proof.ChunkIndex] = proof
		}
	}
	if len(seen) != 23 {
		t.Fatalf("reported %d distinct chunks, want 23", len(seen))
	}
	indexes := make([]int, 0, len(seen))
	for idx := range seen {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	if indexes[0] != 1 || indexes[len(indexes)-1] != 23 {
		t.Errorf("chunk indexes span %d..%d, want 1..23", indexes[0], indexes[len(indexes)-1])
	}

	five := seen[5]
	if five.Proof != "etag-5" {
		t.Errorf("chunk 5 proof = %q, want %q (quotes stripped)", five.Proof, "etag-5")
	}
	if five.ProofType != "etag" {
		t.Errorf("chunk 5 proof type = %q, want %q", five.ProofType, "etag")
	}
	if last := seen[23]; last.ChunkSize != chunkSize-100 {
		t.Errorf("chunk 23 reported size = %d, want %d", last.ChunkSize, chunkSize-100)
	}
}

func TestUpload_RetriesRetryablePut(t *testing.T) {
	const chunkSize = 1024
	platform := newFakePlatform(t, chunkSize)
	platform.failPut = func(index, attempt int) int {
		if index == 3 && attempt == 1 {
			return http.StatusInternalServerError
		}
		return 0
	}
	path := writeTestFile(t, 5*chunkSize)
	up := platform.uploader(t, Options{Workers: 2})

	if _, err := up.Upload(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	platform.mu.Lock()
	defer platform.mu.Unlock()

	if platform.putAttempts[3] != 2 {
		t.Errorf("chunk 3 attempts = %d, want 2", platform.putAttempts[3])
	}
	if len(platform.chunks) != 5 {
		t.Errorf("stored %d chunks, want 5", len(platform.chunks))
	}
}

func TestUpload_FailsOnPersistentPutError(t *testing.T) {
	const chunkSize = 1024
	platform := newFakePlatform(t, chunkSize)
	platform.failPut = func(index, attempt int) int {
		if index == 2 {
			return http.StatusForbidden
		}
		return 0
	}
	path := writeTestFile(t, 5*chunkSize)
	up := platform.uploader(t, Options{Workers: 2})

	_, err := up.Upload(context.Background(), path)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "chunk 2") {
		t.Errorf("error = %v, want mention of chunk 2", err)
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error = %v, want HTTP status 403", err)
	}

	platform.mu.Lock()
	defer platform.mu.Unlock()
	if platform.statusPolls != 0 {
		t.Errorf("status polled %d times after failed upload, want 0", platform.statusPolls)
	}
}

func TestUpload_RejectsEmptyFile(t *testing.T) {
	platform := newFakePlatform(t, 1024)
	path := filepath.Join(t.TempDir(), "empty.mp4")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	up := platform.uploader(t, Options{})

	if _, err := up.Upload(context.Background(), path); err == nil {
		t.Fatal("expected error for empty file, got nil")
	}
}

func TestUpload_RejectsMissingFile(t *testing.T) {
	platform := newFakePlatform(t, 1024)
	up := platform.uploader(t, Options{})

	_, err := up.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want wrapped os.ErrNotExist", err)
	}
}

func TestUpload_ContextCancelled(t *testing.T) {
	const chunkSize = 1024
	platform := newFakePlatform(t, chunkSize)
	path := writeTestFile(t, 5*chunkSize)
	up := platform.uploader(t, Options{Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := up.Upload(ctx, path); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}
