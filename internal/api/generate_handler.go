package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/scenedex/scenedex-agent/internal/catalog"
	"github.com/scenedex/scenedex-agent/internal/cloud"
)

func summarizeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SummarizeVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sumType := req.Type
		if sumType == "" {
			sumType = cloud.SummaryTypeSummary
		}
		switch sumType {
		case cloud.SummaryTypeSummary, cloud.SummaryTypeChapter, cloud.SummaryTypeHighlight:
		default:
			WriteError(w, http.StatusBadRequest, "type must be one of summary, chapter, highlight", "BAD_REQUEST")
			return
		}

		temperature, ok := resolveTemperature(cfg, req.Temperature, w)
		if !ok {
			return
		}

		video, ok := indexedVideo(cfg, w, r)
		if !ok {
			return
		}

		result, err := cfg.Generator.Summarize(r.Context(), cloud.SummarizeRequest{
			VideoID:     video.PlatformVideoID,
			Type:        sumType,
			Prompt:      req.Prompt,
			Temperature: temperature,
		})
		if err != nil {
			writePlatformError(w, cfg.Logger, "summarize", err)
			return
		}

		WriteJSON(w, http.StatusOK, SummaryResponse{
			VideoID:    video.ID,
			Type:       sumType,
			Summary:    result.Summary,
			Chapters:   result.Chapters,
			Highlights: result.Highlights,
		})
	}
}

func askHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AskVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if strings.TrimSpace(req.Prompt) == "" {
			WriteError(w, http.StatusBadRequest, "prompt is required", "BAD_REQUEST")
			return
		}

		temperature, ok := resolveTemperature(cfg, req.Temperature, w)
		if !ok {
			return
		}

		video, ok := indexedVideo(cfg, w, r)
		if !ok {
			return
		}

		result, err := cfg.Generator.Text(r.Context(), cloud.TextRequest{
			VideoID:     video.PlatformVideoID,
			Prompt:      req.Prompt,
			Temperature: temperature,
		})
		if err != nil {
			writePlatformError(w, cfg.Logger, "ask", err)
			return
		}

		WriteJSON(w, http.StatusOK, AnswerResponse{
			VideoID: video.ID,
			Answer:  result.Data,
		})
	}
}

// indexedVideo loads the video from the path parameter and refuses unless the
// platform has finished indexing it. Generate calls need a platform video id.
func indexedVideo(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*catalog.Video, bool) {
	if cfg.Generator == nil {
		WriteError(w, http.StatusServiceUnavailable, "platform client is not configured", "NO_PLATFORM")
		return nil, false
	}

	id := chi.URLParam(r, "id")
	video, err := cfg.CatalogService.GetVideo(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return nil, false
	}
	if video == nil {
		WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
		return nil, false
	}
	if video.Status != catalog.VideoStatusReady || video.PlatformVideoID == "" {
		WriteError(w, http.StatusConflict, "video is not indexed yet", "VIDEO_NOT_READY")
		return nil, false
	}
	return video, true
}

func resolveTemperature(cfg ServerConfig, override *float64, w http.ResponseWriter) (float64, bool) {
	temperature := cfg.Config.Temperature
	if override != nil {
		temperature = *override
	}
	if temperature < 0 || temperature > 1 {
		WriteError(w, http.StatusBadRequest, "temperature must be between 0 and 1", "BAD_REQUEST")
		return 0, false
	}
	return temperature, true
}

func writePlatformError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	logger.Error("platform call failed", "op", op, "error", err)

	var apiErr *cloud.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		WriteError(w, http.StatusBadGateway, apiErr.Message, "PLATFORM_ERROR")
		return
	}
	WriteError(w, http.StatusBadGateway, "platform request failed", "PLATFORM_ERROR")
}
