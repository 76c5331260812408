package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/scenedex/scenedex-agent/internal/catalog"
	"github.com/scenedex/scenedex-agent/internal/cloud"
)

// searchHandler answers semantic queries. It prefers the local vector store
// when one is wired and falls back to the hosted index otherwise, so search
// keeps working both with and without Postgres.
func searchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchAPIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if strings.TrimSpace(req.Query) == "" {
			WriteError(w, http.StatusBadRequest, "query is required", "BAD_REQUEST")
			return
		}

		if cfg.Vectors != nil && cfg.Embedder != nil {
			searchLocal(cfg, w, r, req)
			return
		}
		searchPlatform(cfg, w, r, req)
	}
}

func searchLocal(cfg ServerConfig, w http.ResponseWriter, r *http.Request, req SearchAPIRequest) {
	vec, err := cfg.Embedder.Text(r.Context(), cfg.Config.EmbeddingModel, req.Query)
	if err != nil {
		writePlatformError(w, cfg.Logger, "embed query", err)
		return
	}

	matches, err := cfg.Vectors.Search(r.Context(), vec, req.PageLimit)
	if err != nil {
		cfg.Logger.Error("vector search failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "vector search failed", "INTERNAL_ERROR")
		return
	}

	videos := map[string]*catalog.Video{}
	hits := make([]SearchHitResponse, 0, len(matches))
	for _, m := range matches {
		hit := SearchHitResponse{
			VideoID:  m.VideoID,
			StartSec: m.StartOffsetSec,
			EndSec:   m.EndOffsetSec,
			Score:    m.Similarity,
		}
		video, seen := videos[m.VideoID]
		if !seen {
			video, _ = cfg.CatalogService.GetVideo(r.Context(), m.VideoID)
			videos[m.VideoID] = video
		}
		if video != nil {
			hit.Filename = video.Filename
			hit.PlatformVideoID = video.PlatformVideoID
		}
		hits = append(hits, hit)
	}

	WriteJSON(w, http.StatusOK, SearchAPIResponse{Source: "local", Hits: hits, Total: len(hits)})
}

func searchPlatform(cfg ServerConfig, w http.ResponseWriter, r *http.Request, req SearchAPIRequest) {
	if cfg.Searcher == nil {
		WriteError(w, http.StatusServiceUnavailable, "platform client is not configured", "NO_PLATFORM")
		return
	}

	indexID := resolveIndexID(r.Context(), cfg)
	if indexID == "" {
		WriteError(w, http.StatusConflict, "agent has no index yet, submit a video first", "NO_INDEX")
		return
	}

	result, err := cfg.Searcher.Query(r.Context(), cloud.SearchRequest{
		IndexID:   indexID,
		QueryText: req.Query,
		PageLimit: req.PageLimit,
	})
	if err != nil {
		writePlatformError(w, cfg.Logger, "search", err)
		return
	}

	// Map platform video ids back to catalog entries where we know them.
	byPlatformID := map[string]*catalog.Video{}
	if videos, err := cfg.CatalogService.ListVideos(r.Context(), 500); err == nil {
		for _, v := range videos {
			if v.PlatformVideoID != "" {
				byPlatformID[v.PlatformVideoID] = v
			}
		}
	}

	hits := make([]SearchHitResponse, 0, len(result.Data))
	for _, h := range result.Data {
		hit := SearchHitResponse{
			PlatformVideoID: h.VideoID,
			StartSec:        h.Start,
			EndSec:          h.End,
			Score:           h.Score,
			Confidence:      h.Confidence,
		}
		if v := byPlatformID[h.VideoID]; v != nil {
			hit.VideoID = v.ID
			hit.Filename = v.Filename
		}
		hits = append(hits, hit)
	}

	total := result.PageInfo.TotalResults
	if total == 0 {
		total = len(hits)
	}
	WriteJSON(w, http.StatusOK, SearchAPIResponse{Source: "platform", Hits: hits, Total: total})
}

func resolveIndexID(ctx context.Context, cfg ServerConfig) string {
	if cfg.Config.IndexID != "" {
		return cfg.Config.IndexID
	}
	if cfg.Repository != nil {
		if saved, err := cfg.Repository.GetSetting(ctx, catalog.SettingIndexID); err == nil {
			return saved
		}
	}
	return ""
}
