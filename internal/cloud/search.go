package cloud

import (
	"context"
	"fmt"
)

// SearchService runs semantic text queries against an index and returns
// scored video moments.
type SearchService struct {
	client *Client
}

type SearchRequest struct {
	IndexID   string   `json:"index_id"`
	QueryText string   `json:"query_text"`
	Options   []string `json:"search_options"`
	PageLimit int      `json:"page_limit,omitempty"`
}

// SearchHit is one scored moment: a span of a specific indexed video.
type SearchHit struct {
	Score      float64 `json:"score"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	VideoID    string  `json:"video_id"`
	Confidence string  `json:"confidence"`
}

type SearchResult struct {
	Data     []SearchHit `json:"data"`
	PageInfo struct {
		LimitPerPage  int    `json:"limit_per_page"`
		TotalResults  int    `json:"total_results"`
		NextPageToken string `json:"next_page_token"`
	} `json:"page_info"`
}

// Query runs one search page. Options default to visual matching.
func (s *SearchService) Query(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if req.IndexID == "" {
		return nil, fmt.Errorf("index id is required")
	}
	if req.QueryText == "" {
		return nil, fmt.Errorf("query text is required")
	}
	if len(req.Options) == 0 {
		req.Options = []string{"visual"}
	}

	var result SearchResult
	if err := s.client.postJSON(ctx, "/search", req, &result, 4<<20); err != nil {
		return nil, fmt.Errorf("search index %s: %w", req.IndexID, err)
	}
	return &result, nil
}

// NextPage fetches the page behind a page token from a previous Query.
func (s *SearchService) NextPage(ctx context.Context, token string) (*SearchResult, error) {
	if token == "" {
		return nil, fmt.Errorf("page token is required")
	}
	var result SearchResult
	if err := s.client.getJSON(ctx, "/search/"+token, &result, 4<<20); err != nil {
		return nil, fmt.Errorf("search page %s: %w", token, err)
	}
	return &result, nil
}
