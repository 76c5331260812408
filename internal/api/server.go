package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/scenedex/scenedex-agent/internal/catalog"
	"github.com/scenedex/scenedex-agent/internal/cloud"
	"github.com/scenedex/scenedex-agent/internal/config"
	"github.com/scenedex/scenedex-agent/internal/extract"
	"github.com/scenedex/scenedex-agent/internal/playback"
	"github.com/scenedex/scenedex-agent/internal/vectors"
)

// Prober inspects local media before it enters the queue. *extract.Extractor
// satisfies it.
type Prober interface {
	Probe(ctx context.Context, path string) (*extract.ProbeResult, error)
}

// Generator produces summaries and free-form answers for indexed videos.
// *cloud.GenerateService satisfies it.
type Generator interface {
	Summarize(ctx context.Context, req cloud.SummarizeRequest) (*cloud.SummarizeResult, error)
	Text(ctx context.Context, req cloud.TextRequest) (*cloud.TextResult, error)
}

// TextEmbedder turns query text into a vector. *cloud.EmbedService satisfies
// it.
type TextEmbedder interface {
	Text(ctx context.Context, model, text string) ([]float32, error)
}

// MomentSearcher runs semantic queries against the hosted index.
// *cloud.SearchService satisfies it.
type MomentSearcher interface {
	Query(ctx context.Context, req cloud.SearchRequest) (*cloud.SearchResult, error)
}

// VectorSearcher queries locally stored clip embeddings. *vectors.Store
// satisfies it.
type VectorSearcher interface {
	Search(ctx context.Context, queryVec []float32, topK int) ([]vectors.Match, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// ServerConfig carries everything the handlers need. Config, CatalogService
// and Logger are mandatory; the rest may be nil and the affected routes
// degrade or refuse.
type ServerConfig struct {
	Port           int
	Config         *config.Config
	CatalogService catalog.CatalogService
	Repository     catalog.Repository
	Runner         *catalog.Runner
	Doctor         *extract.Doctor
	Prober         Prober
	Playback       playback.Streamer
	Generator      Generator
	Embedder       TextEmbedder
	Searcher       MomentSearcher
	Vectors        VectorSearcher
	Logger         *slog.Logger
	StartTime      time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
