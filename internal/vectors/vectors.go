// Package vectors persists video embedding segments in Postgres with
// pgvector and answers cosine-similarity searches over them. It is an
// optional sink: the agent runs fine without a configured Postgres URL, it
// just cannot serve semantic search.
package vectors

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/scenedex/scenedex-agent/internal/cloud"
)

const (
	// DefaultDimensions matches the retrieval model's embedding width.
	DefaultDimensions = 1024

	// DefaultTopK is the number of matches returned when the caller does
	// not ask for a specific count.
	DefaultTopK = 5

	pingTimeout  = 5 * time.Second
	maxOpenConns = 5
)

// Match is one similarity search hit. Similarity is 1 - cosine distance,
// so identical vectors score 1.
type Match struct {
	VideoID        string  `json:"video_id"`
	ClipIndex      int     `json:"clip_index"`
	StartOffsetSec float64 `json:"start_offset_sec"`
	EndOffsetSec   float64 `json:"end_offset_sec"`
	Scope          string  `json:"scope"`
	Model          string  `json:"model"`
	Similarity     float64 `json:"similarity"`
}

// Store wraps the embeddings table.
type Store struct {
	db     *sql.DB
	dims   int
	logger *slog.Logger
}

// Open connects to Postgres, verifies the connection and ensures the
// embeddings schema exists. dims <= 0 falls back to DefaultDimensions.
func Open(ctx context.Context, url string, dims int, logger *slog.Logger) (*Store, error) {
	if url == "" {
		return nil, fmt.Errorf("postgres url is required")
	}
	if dims <= 0 {
		dims = DefaultDimensions
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Store{db: db, dims: dims, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("vector store ready", "dimensions", dims)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Healthy reports whether the backing database is reachable.
func (s *Store) Healthy(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dims) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure embeddings schema: %w", err)
		}
	}
	return nil
}

// schemaStatements returns the DDL for the embeddings table. DDL cannot take
// placeholders, so the vector width is interpolated.
func schemaStatements(dims int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS video_embeddings (
			id bigserial PRIMARY KEY,
			video_id text NOT NULL,
			model text NOT NULL DEFAULT '',
			clip_index int NOT NULL,
			start_offset_sec double precision NOT NULL,
			end_offset_sec double precision NOT NULL,
			scope text NOT NULL,
			embedding vector(%d) NOT NULL
		)`, dims),
		`CREATE INDEX IF NOT EXISTS video_embeddings_video_idx
			ON video_embeddings (video_id)`,
		`CREATE INDEX IF NOT EXISTS video_embeddings_cosine_idx
			ON video_embeddings USING hnsw (embedding vector_cosine_ops)`,
	}
}

// InsertSegments replaces all stored segments for videoID with the given
// batch and returns the number of rows written. Replacement keeps re-run
// embed jobs from piling up duplicate rows.
func (s *Store) InsertSegments(ctx context.Context, videoID, model string, segments []cloud.Segment) (int, error) {
	for i, seg := range segments {
		if len(seg.Float) != s.dims {
			return 0, fmt.Errorf("segment %d has %d dimensions, store expects %d", i, len(seg.Float), s.dims)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM video_embeddings WHERE video_id = $1`, videoID); err != nil {
		return 0, fmt.Errorf("failed to clear previous segments: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO video_embeddings (
		video_id, model, clip_index, start_offset_sec, end_offset_sec, scope, embedding
	) VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, seg := range segments {
		_, err := stmt.ExecContext(ctx,
			videoID,
			model,
			i,
			seg.StartOffsetSec,
			seg.EndOffsetSec,
			seg.Scope,
			vectorLiteral(seg.Float),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert segment %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit segments: %w", err)
	}

	s.logger.Info("stored embedding segments",
		"video_id", videoID,
		"model", model,
		"segments", len(segments),
	)
	return len(segments), nil
}

// Search returns the topK nearest segments to the query vector by cosine
// distance, best first.
func (s *Store) Search(ctx context.Context, queryVec []float32, topK int) ([]Match, error) {
	if len(queryVec) != s.dims {
		return nil, fmt.Errorf("query vector has %d dimensions, store expects %d", len(queryVec), s.dims)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT video_id, model, clip_index, start_offset_sec, end_offset_sec, scope,
		       1 - (embedding <=> $1) AS similarity
		FROM video_embeddings
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vectorLiteral(queryVec), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search embeddings: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.VideoID, &m.Model, &m.ClipIndex, &m.StartOffsetSec, &m.EndOffsetSec, &m.Scope, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteVideo removes every stored segment for videoID.
func (s *Store) DeleteVideo(ctx context.Context, videoID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM video_embeddings WHERE video_id = $1`, videoID); err != nil {
		return fmt.Errorf("failed to delete segments: %w", err)
	}
	return nil
}

// CountSegments returns the number of stored segments for videoID.
func (s *Store) CountSegments(ctx context.Context, videoID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM video_embeddings WHERE video_id = $1`, videoID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count segments: %w", err)
	}
	return n, nil
}

// vectorLiteral renders a vector in pgvector's text input form, e.g.
// [0.1,0.2,0.3].
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.Grow(len(vec)*10 + 2)
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
