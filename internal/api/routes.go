package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/scenedex/scenedex-agent/internal/catalog"
	"github.com/scenedex/scenedex-agent/internal/clip"
	"github.com/scenedex/scenedex-agent/internal/config"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", healthHandler(cfg))

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.Config.APIToken, cfg.Logger))

			r.Get("/status", statusHandler(cfg))

			r.Post("/videos", submitVideoHandler(cfg))
			r.Get("/videos", listVideosHandler(cfg))
			r.Get("/videos/{id}", getVideoHandler(cfg))
			r.Delete("/videos/{id}", deleteVideoHandler(cfg))
			r.Post("/videos/{id}/summaries", summarizeHandler(cfg))
			r.Post("/videos/{id}/questions", askHandler(cfg))
			r.Post("/videos/{id}/clips", requestClipsHandler(cfg))
			r.Post("/videos/{id}/embeddings", requestEmbeddingHandler(cfg))

			r.Post("/search", searchHandler(cfg))
			r.Post("/exports/edl", exportEDLHandler(cfg))

			r.Get("/jobs", listJobsHandler(cfg))
			r.Get("/jobs/{id}", getJobHandler(cfg))

			r.Get("/clips/{name}", clipFileHandler(cfg))

			r.Post("/control/pause", pauseHandler(cfg))
			r.Post("/control/resume", resumeHandler(cfg))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		stats, err := cfg.CatalogService.Stats(ctx)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to read catalog stats", "INTERNAL_ERROR")
			return
		}

		jobs, _ := cfg.CatalogService.ListJobs(ctx, 10)

		state := "idle"
		var activeJob *JobResponse
		lastError := ""

		for _, j := range jobs {
			if j.Status == catalog.JobStatusRunning && activeJob == nil {
				state = "working"
				resp := JobToResponse(j)
				activeJob = &resp
			}
			if j.Status == catalog.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}
		if lastError != "" && state == "idle" {
			state = "error"
		}

		resp := StatusResponse{
			State:       state,
			LastError:   lastError,
			Videos:      stats.Videos,
			TotalVideos: stats.TotalVideos,
			QueueDepth:  stats.ActiveJobs,
			ActiveJob:   activeJob,
		}

		if cfg.Doctor != nil {
			if caps := cfg.Doctor.Get(ctx); caps != nil {
				tools := ToolsToResponse(caps)
				resp.Tools = &tools
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func submitVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if (req.Path == "") == (req.URL == "") {
			WriteError(w, http.StatusBadRequest, "exactly one of path or url is required", "BAD_REQUEST")
			return
		}

		var (
			video *catalog.Video
			job   *catalog.Job
			err   error
		)
		if req.URL != "" {
			if _, err := catalog.ClassifyURL(req.URL); err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			video, job, err = cfg.CatalogService.SubmitURL(r.Context(), req.URL)
		} else {
			if cfg.Prober != nil {
				if probe, perr := cfg.Prober.Probe(r.Context(), req.Path); perr == nil {
					if probe.Duration < cfg.Config.MinVideoDuration || probe.Duration > cfg.Config.MaxVideoDuration {
						WriteError(w, http.StatusUnprocessableEntity,
							"video duration is outside the platform's accepted range",
							"DURATION_OUT_OF_RANGE")
						return
					}
				}
			}
			video, job, err = cfg.CatalogService.SubmitPath(r.Context(), req.Path)
		}
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		resp := SubmitVideoResponse{Video: VideoToResponse(video)}
		status := http.StatusOK
		if job != nil {
			jr := JobToResponse(job)
			resp.Job = &jr
			status = http.StatusCreated
		}
		WriteJSON(w, status, resp)
	}
}

func listVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := cfg.CatalogService.ListVideos(r.Context(), 100)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list videos", "INTERNAL_ERROR")
			return
		}

		resp := VideosResponse{Videos: make([]VideoResponse, len(videos))}
		for i, v := range videos {
			resp.Videos[i] = VideoToResponse(v)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		video, err := cfg.CatalogService.GetVideo(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if video == nil {
			WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}

		clips, _ := cfg.CatalogService.ListClips(r.Context(), id)
		resp := VideoDetailResponse{
			VideoResponse: VideoToResponse(video),
			Clips:         make([]ClipResponse, len(clips)),
		}
		for i, c := range clips {
			resp.Clips[i] = ClipToResponse(c)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func deleteVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		video, err := cfg.CatalogService.GetVideo(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if video == nil {
			WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}

		if err := cfg.CatalogService.RemoveVideo(r.Context(), id); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func requestClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req ClipPlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.ClipLength < 0 {
			WriteError(w, http.StatusBadRequest, "clip_length must be positive", "BAD_REQUEST")
			return
		}

		length := cfg.Config.ClipLength
		if req.ClipLength > 0 {
			length = req.ClipLength
		}
		policy := cfg.Config.TrailingClipPolicy()
		if req.Policy != "" {
			parsed, err := clip.ParsePolicy(req.Policy)
			if err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			policy = parsed
		}

		video, err := cfg.CatalogService.GetVideo(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if video == nil {
			WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}

		var params *catalog.ExtractParams
		if req.ClipLength > 0 || req.Policy != "" || req.IncludeOriginal {
			params = &catalog.ExtractParams{
				ClipLength:      req.ClipLength,
				Policy:          req.Policy,
				IncludeOriginal: req.IncludeOriginal,
			}
		}

		job, err := cfg.CatalogService.RequestClips(r.Context(), id, params)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		resp := ClipPlanResponse{Job: JobToResponse(job)}

		// Echo the plan the runner will execute so clients can show it
		// without waiting for extraction to finish.
		duration := video.Duration
		if duration == 0 && cfg.Prober != nil && video.Path != "" {
			if probe, err := cfg.Prober.Probe(r.Context(), video.Path); err == nil {
				duration = probe.Duration
			}
		}
		if duration > 0 {
			if specs, err := clip.Plan(duration, length, policy, req.IncludeOriginal); err == nil {
				resp.Plan = PlanToResponse(specs)
			}
		}

		WriteJSON(w, http.StatusAccepted, resp)
	}
}

func requestEmbeddingHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		video, err := cfg.CatalogService.GetVideo(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if video == nil {
			WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}

		job, err := cfg.CatalogService.RequestEmbedding(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusAccepted, EnqueueResponse{Job: JobToResponse(job)})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.CatalogService.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.CatalogService.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func clipFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name == "" {
			WriteError(w, http.StatusBadRequest, "clip name required", "BAD_REQUEST")
			return
		}

		clipRec, err := cfg.CatalogService.GetClipByFilename(r.Context(), name)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if clipRec == nil {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}

		if err := cfg.Playback.ServeFile(w, r, clipRec.Path); err != nil {
			cfg.Logger.Error("clip playback error", "error", err, "clip", name)
		}
	}
}

func pauseHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "job runner is not running", "NO_RUNNER")
			return
		}
		cfg.Runner.Pause()
		WriteJSON(w, http.StatusOK, ControlResponse{State: "paused"})
	}
}

func resumeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "job runner is not running", "NO_RUNNER")
			return
		}
		cfg.Runner.Resume()
		WriteJSON(w, http.StatusOK, ControlResponse{State: "running"})
	}
}
