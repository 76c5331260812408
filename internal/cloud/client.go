// Package cloud is the client for the hosted Scenedex video-understanding
// platform. Each platform surface (indexes, tasks, generation, embeddings,
// search, assets) is a service hanging off one Client that owns the base URL,
// API key, and HTTP plumbing.
package cloud

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultHTTPTimeout = 120 * time.Second

// Client talks to the platform REST API. All requests carry the API key in
// the x-api-key header and a generated x-request-id for correlation.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	indexes  *IndexService
	tasks    *TaskService
	generate *GenerateService
	embed    *EmbedService
	search   *SearchService
	assets   *AssetService
}

func New(baseURL, apiKey string, logger *slog.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
		logger: logger,
	}
	c.indexes = &IndexService{client: c}
	c.tasks = &TaskService{client: c}
	c.generate = &GenerateService{client: c}
	c.embed = &EmbedService{client: c}
	c.search = &SearchService{client: c}
	c.assets = &AssetService{client: c}
	return c
}

func (c *Client) Indexes() *IndexService     { return c.indexes }
func (c *Client) Tasks() *TaskService        { return c.tasks }
func (c *Client) Generate() *GenerateService { return c.generate }
func (c *Client) Embed() *EmbedService       { return c.embed }
func (c *Client) Search() *SearchService     { return c.search }
func (c *Client) Assets() *AssetService      { return c.assets }

// BaseURL returns the configured API root, without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Ping verifies reachability and key validity with a cheap authenticated call.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.indexes.List(ctx)
	return err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("x-request-id", generateRequestID())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// doJSON executes req, maps non-2xx responses to *APIError, and decodes the
// body into out when out is non-nil. limit caps how much of the body is read.
func (c *Client) doJSON(req *http.Request, out any, limit int64) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, limit))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, respBody, req.Header.Get("x-request-id"))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any, limit int64) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	return c.doJSON(req, out, limit)
}

func (c *Client) getJSON(ctx context.Context, path string, out any, limit int64) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return c.doJSON(req, out, limit)
}

// postMultipart streams a local file plus form fields as multipart/form-data.
// The file is piped, not buffered, so large videos do not load into memory.
func (c *Client) postMultipart(ctx context.Context, path string, fields map[string]string, fileField, filePath string, out any, limit int64) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer file.Close()
		var werr error
		defer func() { pw.CloseWithError(werr) }()

		for k, v := range fields {
			if werr = mw.WriteField(k, v); werr != nil {
				return
			}
		}
		part, perr := mw.CreateFormFile(fileField, filepath.Base(filePath))
		if perr != nil {
			werr = perr
			return
		}
		if _, werr = io.Copy(part, file); werr != nil {
			return
		}
		werr = mw.Close()
	}()

	req, err := c.newRequest(ctx, http.MethodPost, path, pr, mw.FormDataContentType())
	if err != nil {
		return err
	}
	return c.doJSON(req, out, limit)
}

func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
