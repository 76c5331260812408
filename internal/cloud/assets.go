package cloud

import (
	"context"
	"fmt"
)

// AssetService drives the platform's multipart upload sessions: create a
// session, fetch presigned chunk URLs page by page, report completed chunks
// with their ETag proofs, and poll session status. The byte pushing itself
// happens outside this service, against the presigned URLs.
type AssetService struct {
	client *Client
}

// ChunkURL is a presigned destination for one 1-based chunk index.
type ChunkURL struct {
	ChunkIndex int    `json:"chunk_index"`
	URL        string `json:"url"`
}

type UploadSession struct {
	UploadID    string     `json:"upload_id"`
	AssetID     string     `json:"asset_id"`
	TotalChunks int        `json:"total_chunks"`
	ChunkSize   int64      `json:"chunk_size"`
	URLs        []ChunkURL `json:"upload_urls"`
}

// ChunkProof attests one uploaded chunk. Proof carries the ETag the storage
// backend returned for the chunk PUT, with surrounding quotes stripped.
type ChunkProof struct {
	ChunkIndex int    `json:"chunk_index"`
	Proof      string `json:"proof"`
	ProofType  string `json:"proof_type"`
	ChunkSize  int64  `json:"chunk_size"`
}

type ReportResult struct {
	ProcessedChunks int    `json:"processed_chunks"`
	DuplicateChunks int    `json:"duplicate_chunks"`
	TotalCompleted  int    `json:"total_completed"`
	URL             string `json:"url"`
}

type SessionStatus struct {
	Status          string `json:"status"`
	ChunksCompleted int    `json:"chunks_completed"`
	TotalChunks     int    `json:"total_chunks"`
}

type Asset struct {
	ID     string `json:"_id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// CreateUpload opens a multipart session for a video of totalSize bytes. The
// response fixes the chunk size and count and may include the first page of
// presigned URLs.
func (s *AssetService) CreateUpload(ctx context.Context, filename string, totalSize int64) (*UploadSession, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if totalSize <= 0 {
		return nil, fmt.Errorf("total size must be positive, got %d", totalSize)
	}

	body := struct {
		Filename  string `json:"filename"`
		Type      string `json:"type"`
		TotalSize int64  `json:"total_size"`
	}{filename, "video", totalSize}

	var session UploadSession
	if err := s.client.postJSON(ctx, "/assets/multipart-uploads", body, &session, 4<<20); err != nil {
		return nil, fmt.Errorf("create multipart upload: %w", err)
	}

	s.client.logger.Info("multipart upload session created",
		"upload_id", session.UploadID,
		"asset_id", session.AssetID,
		"total_chunks", session.TotalChunks,
		"chunk_size", session.ChunkSize,
	)
	return &session, nil
}

// PresignedURLs fetches one page of chunk URLs for an open session.
func (s *AssetService) PresignedURLs(ctx context.Context, uploadID string, page, limit int) ([]ChunkURL, error) {
	body := struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
	}{page, limit}

	var result struct {
		URLs []ChunkURL `json:"upload_urls"`
	}
	path := "/assets/multipart-uploads/" + uploadID + "/presigned-urls"
	if err := s.client.postJSON(ctx, path, body, &result, 4<<20); err != nil {
		return nil, fmt.Errorf("presigned urls page %d: %w", page, err)
	}
	return result.URLs, nil
}

// ReportChunks tells the platform which chunks finished, with their proofs.
// The final report's result may carry the asset URL.
func (s *AssetService) ReportChunks(ctx context.Context, uploadID string, completed []ChunkProof) (*ReportResult, error) {
	if len(completed) == 0 {
		return nil, fmt.Errorf("no chunks to report")
	}
	body := struct {
		CompletedChunks []ChunkProof `json:"completed_chunks"`
	}{completed}

	var result ReportResult
	if err := s.client.postJSON(ctx, "/assets/multipart-uploads/"+uploadID, body, &result, 64<<10); err != nil {
		return nil, fmt.Errorf("report %d chunks: %w", len(completed), err)
	}
	return &result, nil
}

// UploadStatus returns the session's server-side view of progress.
func (s *AssetService) UploadStatus(ctx context.Context, uploadID string) (*SessionStatus, error) {
	var status SessionStatus
	if err := s.client.getJSON(ctx, "/assets/multipart-uploads/"+uploadID, &status, 64<<10); err != nil {
		return nil, fmt.Errorf("upload status %s: %w", uploadID, err)
	}
	return &status, nil
}

// GetAsset fetches the finished asset, including its playable URL.
func (s *AssetService) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	var asset Asset
	if err := s.client.getJSON(ctx, "/assets/"+assetID, &asset, 64<<10); err != nil {
		return nil, fmt.Errorf("get asset %s: %w", assetID, err)
	}
	return &asset, nil
}
