package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/scenedex/scenedex-agent/internal/export"
)

// exportEDLHandler turns a list of clip filenames into a CMX 3600 EDL on
// disk. Offsets come from the catalog unless the request overrides them, and
// cuts point at the source master so an editor can relink the original.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.EDLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if len(req.Clips) == 0 {
			WriteError(w, http.StatusBadRequest, "clips must not be empty", "BAD_REQUEST")
			return
		}

		outputDir := req.OutputDir
		if outputDir == "" {
			outputDir = cfg.Config.ExportsDir()
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				WriteError(w, http.StatusInternalServerError, "failed to create exports directory", "INTERNAL_ERROR")
				return
			}
		} else if err := export.ValidateOutputDir(outputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		projectName := export.SanitizeName(req.ProjectName, 120)
		if projectName == "" {
			projectName = "scenedex_export"
		}

		frameRate := req.FrameRate
		if frameRate <= 0 {
			frameRate = 30.0
		}

		resolved := make([]export.ResolvedClip, 0, len(req.Clips))
		unresolved := make([]string, 0)

		for _, c := range req.Clips {
			if c.ClipName == "" {
				WriteError(w, http.StatusBadRequest, "clip_name is required", "BAD_REQUEST")
				return
			}

			rec, err := cfg.CatalogService.GetClipByFilename(r.Context(), c.ClipName)
			if err != nil {
				WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
				return
			}
			if rec == nil {
				unresolved = append(unresolved, c.ClipName)
				continue
			}

			start, end := rec.StartSec, rec.EndSec
			if c.StartSec != 0 || c.EndSec != 0 {
				if c.EndSec <= c.StartSec {
					WriteError(w, http.StatusBadRequest, "end_sec must be greater than start_sec", "BAD_REQUEST")
					return
				}
				start, end = c.StartSec, c.EndSec
			}

			mediaPath := rec.Path
			if video, err := cfg.CatalogService.GetVideo(r.Context(), rec.VideoID); err == nil && video != nil && video.Path != "" {
				mediaPath = video.Path
			}

			resolved = append(resolved, export.ResolvedClip{
				ClipName:  export.SanitizeName(c.ClipName, 160),
				MediaPath: mediaPath,
				StartSec:  start,
				EndSec:    end,
			})
		}

		if len(resolved) == 0 {
			WriteError(w, http.StatusUnprocessableEntity, "no clips could be resolved", "UNRESOLVABLE_CLIPS")
			return
		}

		edl := export.GenerateEDL(resolved, projectName, frameRate)
		outputPath := filepath.Join(outputDir, projectName+".edl")
		if err := os.WriteFile(outputPath, []byte(edl), 0o644); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, export.EDLResponse{
			Status:          "ok",
			Format:          "edl",
			OutputPath:      outputPath,
			ClipCount:       len(resolved),
			UnresolvedClips: unresolved,
		})
	}
}
