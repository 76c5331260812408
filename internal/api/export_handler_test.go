package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scenedex/scenedex-agent/internal/catalog"
	"github.com/scenedex/scenedex-agent/internal/export"
)

func exportTestService() *fakeService {
	svc := newFakeService()
	svc.addVideo(&catalog.Video{
		ID:         "vid_1",
		SourceType: catalog.SourceTypeFile,
		Path:       "/media/keynote.mp4",
		Filename:   "keynote.mp4",
		Status:     catalog.VideoStatusReady,
	})
	svc.addClip(&catalog.Clip{
		ID:       "clp_1",
		VideoID:  "vid_1",
		Index:    0,
		StartSec: 0,
		EndSec:   6,
		Path:     "/data/clips/keynote_clip_0_0-6.mp4",
	})
	return svc
}

func decodeEDLResponse(t *testing.T, raw []byte) export.EDLResponse {
	t.Helper()

	var resp export.EDLResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("failed to decode export response: %v", err)
	}
	return resp
}

func TestExportEDLHandler_WritesFile(t *testing.T) {
	outDir := t.TempDir()
	cfg := testServerConfig(exportTestService())

	rr := serveRequest(t, cfg, http.MethodPost, "/v1/exports/edl", export.EDLRequest{
		ProjectName: "Launch Highlights",
		FrameRate:   30,
		OutputDir:   outDir,
		Clips:       []export.ClipInput{{ClipName: "keynote_clip_0_0-6.mp4"}},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeEDLResponse(t, rr.Body.Bytes())
	if resp.ClipCount != 1 {
		t.Fatalf("clip_count = %d, want 1", resp.ClipCount)
	}
	if len(resp.UnresolvedClips) != 0 {
		t.Fatalf("unresolved_clips = %v, want none", resp.UnresolvedClips)
	}

	content, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatalf("failed to read written EDL: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "TITLE: Launch Highlights") {
		t.Fatalf("EDL missing title: %q", text)
	}
	if !strings.Contains(text, "* MEDIA PATH:  /media/keynote.mp4") {
		t.Fatalf("EDL should cut against the source master: %q", text)
	}
}

func TestExportEDLHandler_MixedResolution(t *testing.T) {
	outDir := t.TempDir()
	cfg := testServerConfig(exportTestService())

	rr := serveRequest(t, cfg, http.MethodPost, "/v1/exports/edl", export.EDLRequest{
		ProjectName: "Partial",
		OutputDir:   outDir,
		Clips: []export.ClipInput{
			{ClipName: "keynote_clip_0_0-6.mp4"},
			{ClipName: "ghost_clip_9_0-6.mp4"},
		},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeEDLResponse(t, rr.Body.Bytes())
	if resp.ClipCount != 1 {
		t.Fatalf("clip_count = %d, want 1", resp.ClipCount)
	}
	if len(resp.UnresolvedClips) != 1 || resp.UnresolvedClips[0] != "ghost_clip_9_0-6.mp4" {
		t.Fatalf("unresolved_clips = %v, want the ghost clip", resp.UnresolvedClips)
	}
}

func TestExportEDLHandler_AllUnresolved(t *testing.T) {
	outDir := t.TempDir()
	cfg := testServerConfig(newFakeService())

	rr := serveRequest(t, cfg, http.MethodPost, "/v1/exports/edl", export.EDLRequest{
		OutputDir: outDir,
		Clips:     []export.ClipInput{{ClipName: "ghost_clip_9_0-6.mp4"}},
	})

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
	body := decodeJSONBody(t, rr)
	if body["code"] != "UNRESOLVABLE_CLIPS" {
		t.Fatalf("code = %v, want UNRESOLVABLE_CLIPS", body["code"])
	}
}

func TestExportEDLHandler_EmptyClips(t *testing.T) {
	cfg := testServerConfig(newFakeService())

	rr := serveRequest(t, cfg, http.MethodPost, "/v1/exports/edl", export.EDLRequest{OutputDir: t.TempDir()})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestExportEDLHandler_OffsetOverride(t *testing.T) {
	outDir := t.TempDir()
	cfg := testServerConfig(exportTestService())

	rr := serveRequest(t, cfg, http.MethodPost, "/v1/exports/edl", export.EDLRequest{
		ProjectName: "Trimmed",
		FrameRate:   30,
		OutputDir:   outDir,
		Clips:       []export.ClipInput{{ClipName: "keynote_clip_0_0-6.mp4", StartSec: 1, EndSec: 3}},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeEDLResponse(t, rr.Body.Bytes())
	content, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatalf("failed to read written EDL: %v", err)
	}
	if !strings.Contains(string(content), "00:00:01:00 00:00:03:00") {
		t.Fatalf("EDL should use the overridden source span: %q", string(content))
	}
}

func TestExportEDLHandler_BadOverride(t *testing.T) {
	cfg := testServerConfig(exportTestService())

	rr := serveRequest(t, cfg, http.MethodPost, "/v1/exports/edl", export.EDLRequest{
		OutputDir: t.TempDir(),
		Clips:     []export.ClipInput{{ClipName: "keynote_clip_0_0-6.mp4", StartSec: 5, EndSec: 2}},
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestExportEDLHandler_DefaultOutputDir(t *testing.T) {
	cfg := testServerConfig(exportTestService())
	cfg.Config.DataDir = t.TempDir()

	rr := serveRequest(t, cfg, http.MethodPost, "/v1/exports/edl", export.EDLRequest{
		Clips: []export.ClipInput{{ClipName: "keynote_clip_0_0-6.mp4"}},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeEDLResponse(t, rr.Body.Bytes())
	exportsDir := cfg.Config.ExportsDir()
	if filepath.Dir(resp.OutputPath) != exportsDir {
		t.Fatalf("output path = %q, want it under %q", resp.OutputPath, exportsDir)
	}
	if _, err := os.Stat(resp.OutputPath); err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
}

func TestExportEDLHandler_RejectsTraversal(t *testing.T) {
	cfg := testServerConfig(exportTestService())

	rr := serveRequest(t, cfg, http.MethodPost, "/v1/exports/edl", export.EDLRequest{
		OutputDir: "../evil",
		Clips:     []export.ClipInput{{ClipName: "keynote_clip_0_0-6.mp4"}},
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
