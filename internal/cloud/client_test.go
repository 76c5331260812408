package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestClient_SendsAPIKeyAndRequestID(t *testing.T) {
	var apiKey, requestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-api-key")
		requestID = r.Header.Get("x-request-id")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", testLogger())
	if _, err := client.Indexes().List(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if apiKey != "sk-test" {
		t.Errorf("x-api-key = %q, want %q", apiKey, "sk-test")
	}
	if requestID == "" {
		t.Error("expected x-request-id header")
	}
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := New(server.URL+"/", "sk-test", testLogger())
	if _, err := client.Indexes().List(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/indexes" {
		t.Errorf("request path = %q, want /indexes", path)
	}
}

func TestClient_APIErrorParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"parameter_invalid","message":"index_name already exists"}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", testLogger())
	_, err := client.Indexes().Create(context.Background(), CreateIndexRequest{Name: "dupe"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apiErr.StatusCode)
	}
	if apiErr.Code != "parameter_invalid" {
		t.Errorf("code = %q, want parameter_invalid", apiErr.Code)
	}
	if apiErr.IsRetryable() {
		t.Error("400 should not be retryable")
	}
}

func TestAPIError_Sentinels(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
	}

	for _, tt := range tests {
		err := newAPIError(tt.status, []byte(`{}`), "req-1")
		if !errors.Is(err, tt.target) {
			t.Errorf("status %d: errors.Is(%v) = false", tt.status, tt.target)
		}
	}

	if errors.Is(newAPIError(http.StatusBadRequest, nil, ""), ErrNotFound) {
		t.Error("400 should not match ErrNotFound")
	}
}

func TestAPIError_Retryable(t *testing.T) {
	if !newAPIError(http.StatusInternalServerError, nil, "").IsRetryable() {
		t.Error("expected 5xx to be retryable")
	}
	if !newAPIError(http.StatusTooManyRequests, nil, "").IsRetryable() {
		t.Error("expected 429 to be retryable")
	}
	if newAPIError(http.StatusConflict, nil, "").IsRetryable() {
		t.Error("expected 409 to be permanent")
	}
}

func TestIndexes_Create(t *testing.T) {
	var received CreateIndexRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/indexes" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.Write([]byte(`{"_id":"idx_1"}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", testLogger())
	idx, err := client.Indexes().Create(context.Background(), CreateIndexRequest{Name: "agent_index_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if idx.ID != "idx_1" {
		t.Errorf("index id = %q, want idx_1", idx.ID)
	}
	if received.Name != "agent_index_1" {
		t.Errorf("index_name = %q, want agent_index_1", received.Name)
	}
	if len(received.Models) != 1 || received.Models[0].Name != "pegasus1.2" {
		t.Errorf("models = %+v, want default pegasus1.2", received.Models)
	}
	if len(received.Models) == 1 && (len(received.Models[0].Options) != 1 || received.Models[0].Options[0] != "visual") {
		t.Errorf("model options = %+v, want [visual]", received.Models[0].Options)
	}
}

func TestTasks_Create_URL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IndexID  string `json:"index_id"`
			VideoURL string `json:"video_url"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.IndexID != "idx_1" || body.VideoURL != "https://videos.example/v.mp4" {
			t.Errorf("unexpected body: %+v", body)
		}
		w.Write([]byte(`{"_id":"task_1","video_id":"vid_1","status":"processing"}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", testLogger())
	task, err := client.Tasks().Create(context.Background(), CreateTaskRequest{
		IndexID:  "idx_1",
		VideoURL: "https://videos.example/v.mp4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "task_1" || task.VideoID != "vid_1" {
		t.Errorf("task = %+v", task)
	}
}

func TestTasks_Create_RequiresOneSource(t *testing.T) {
	client := New("http://unused", "sk-test", testLogger())

	if _, err := client.Tasks().Create(context.Background(), CreateTaskRequest{IndexID: "idx"}); err == nil {
		t.Error("expected error with no source")
	}
	if _, err := client.Tasks().Create(context.Background(), CreateTaskRequest{
		IndexID: "idx", VideoURL: "u", VideoPath: "p",
	}); err == nil {
		t.Error("expected error with both sources")
	}
}

func TestTasks_Create_MultipartFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sample.mp4"
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("index_id"); got != "idx_1" {
			t.Errorf("index_id = %q, want idx_1", got)
		}
		file, header, err := r.FormFile("video_file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "sample.mp4" {
			t.Errorf("filename = %q, want sample.mp4", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "not really a video" {
			t.Errorf("file body = %q", data)
		}
		w.Write([]byte(`{"_id":"task_2","video_id":"vid_2","status":"validating"}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", testLogger())
	task, err := client.Tasks().Create(context.Background(), CreateTaskRequest{
		IndexID:   "idx_1",
		VideoPath: path,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "task_2" {
		t.Errorf("task id = %q, want task_2", task.ID)
	}
}

func TestGenerate_Summarize_ValidatesInput(t *testing.T) {
	client := New("http://unused", "sk-test", testLogger())

	if _, err := client.Generate().Summarize(context.Background(), SummarizeRequest{
		VideoID: "vid", Type: "recap", Temperature: 0.5,
	}); err == nil {
		t.Error("expected error for unknown summary type")
	}
	if _, err := client.Generate().Summarize(context.Background(), SummarizeRequest{
		VideoID: "vid", Type: SummaryTypeSummary, Temperature: 1.5,
	}); err == nil {
		t.Error("expected error for out-of-range temperature")
	}
}

func TestGenerate_Summarize_Chapters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/summarize" {
			t.Errorf("path = %s, want /summarize", r.URL.Path)
		}
		w.Write([]byte(`{"id":"g1","chapters":[{"chapter_number":0,"start":0,"end":30,"chapter_title":"Intro","chapter_summary":"Opening."}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", testLogger())
	result, err := client.Generate().Summarize(context.Background(), SummarizeRequest{
		VideoID: "vid_1", Type: SummaryTypeChapter, Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Chapters) != 1 || result.Chapters[0].Title != "Intro" {
		t.Errorf("chapters = %+v", result.Chapters)
	}
}

func TestEmbed_Text(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model        string `json:"model_name"`
			Text         string `json:"text"`
			TextTruncate string `json:"text_truncate"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.TextTruncate != "start" {
			t.Errorf("text_truncate = %q, want start", body.TextTruncate)
		}
		if body.Model != "marengo-retrieval-2.7" {
			t.Errorf("model = %q", body.Model)
		}
		w.Write([]byte(`{"text_embedding":{"segments":[{"embeddings_float":[0.1,0.2,0.3]}]}}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", testLogger())
	vec, err := client.Embed().Text(context.Background(), "marengo-retrieval-2.7", "red truck")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("vector = %v", vec)
	}
}

func TestSearch_Query_DefaultsOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body SearchRequest
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Options) != 1 || body.Options[0] != "visual" {
			t.Errorf("search_options = %v, want [visual]", body.Options)
		}
		w.Write([]byte(`{"data":[{"score":84.2,"start":10,"end":16,"video_id":"vid_1","confidence":"high"}],"page_info":{"total_results":1}}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", testLogger())
	result, err := client.Search().Query(context.Background(), SearchRequest{
		IndexID: "idx_1", QueryText: "red truck",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Data) != 1 || result.Data[0].VideoID != "vid_1" {
		t.Errorf("hits = %+v", result.Data)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Indexes().List(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
