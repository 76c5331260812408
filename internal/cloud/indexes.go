package cloud

import (
	"context"
	"fmt"
)

// IndexService manages the platform's named collections of processed videos.
type IndexService struct {
	client *Client
}

// IndexModel selects which model processes videos added to an index and the
// options it runs with.
type IndexModel struct {
	Name    string   `json:"model_name"`
	Options []string `json:"model_options"`
}

type Index struct {
	ID         string       `json:"_id"`
	Name       string       `json:"index_name"`
	Models     []IndexModel `json:"models"`
	VideoCount int          `json:"video_count"`
	CreatedAt  string       `json:"created_at"`
}

type CreateIndexRequest struct {
	Name   string       `json:"index_name"`
	Models []IndexModel `json:"models"`
}

// Create registers a new index. An empty model list defaults to the visual
// analysis model the rest of the corpus assumes.
func (s *IndexService) Create(ctx context.Context, req CreateIndexRequest) (*Index, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(req.Models) == 0 {
		req.Models = []IndexModel{{Name: "pegasus1.2", Options: []string{"visual"}}}
	}

	var created Index
	if err := s.client.postJSON(ctx, "/indexes", req, &created, 64<<10); err != nil {
		return nil, fmt.Errorf("create index %q: %w", req.Name, err)
	}
	created.Name = req.Name
	if len(created.Models) == 0 {
		created.Models = req.Models
	}

	s.client.logger.Info("index created", "index_id", created.ID, "index_name", req.Name)
	return &created, nil
}

// Get fetches one index by id.
func (s *IndexService) Get(ctx context.Context, id string) (*Index, error) {
	var idx Index
	if err := s.client.getJSON(ctx, "/indexes/"+id, &idx, 64<<10); err != nil {
		return nil, fmt.Errorf("get index %s: %w", id, err)
	}
	return &idx, nil
}

// List returns all indexes visible to the API key.
func (s *IndexService) List(ctx context.Context) ([]Index, error) {
	var wrapper struct {
		Data []Index `json:"data"`
	}
	if err := s.client.getJSON(ctx, "/indexes", &wrapper, 1<<20); err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	return wrapper.Data, nil
}
