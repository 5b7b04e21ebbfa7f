package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/casewire/casefile-processor/internal/models"
	"github.com/casewire/casefile-processor/pkg/logger"
)

// DeleteChunks removes all chunks for a file. Idempotent; called before
// every insert so a reprocessed file never mixes chunk generations.
func (s *Store) DeleteChunks(ctx context.Context, fileID string) error {
	const q = `DELETE FROM file_chunks WHERE file_id = $1`
	if _, err := s.db.ExecContext(ctx, q, fileID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// InsertChunks writes chunks row by row, best effort: a failed row is
// logged and counted, siblings still land. Returns the number of failed
// rows. A chunk whose embedding length does not match the schema is a
// configuration error and aborts the whole insert.
func (s *Store) InsertChunks(ctx context.Context, fileID string, chunks []models.TextChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	for i := range chunks {
		if chunks[i].Embedding != nil && len(chunks[i].Embedding) != s.embeddingDim {
			return 0, fmt.Errorf("embedding dimension mismatch: schema declares %d, chunk %d has %d",
				s.embeddingDim, chunks[i].SectionIndex, len(chunks[i].Embedding))
		}
	}

	const q = `
		INSERT INTO file_chunks
			(id, file_id, section_index, content, tokens, start_offset, end_offset, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	failed := 0
	for i := range chunks {
		ch := &chunks[i]

		id := ch.ID
		if id == "" {
			id = uuid.New().String()
		}

		metadata, err := json.Marshal(ch.Metadata)
		if err != nil {
			metadata = []byte(`{}`)
		}

		var embedding interface{}
		if ch.Embedding != nil {
			embedding = pgvector.NewVector(ch.Embedding)
		}

		if _, err := s.db.ExecContext(ctx, q,
			id, fileID, ch.SectionIndex, ch.Content, ch.Tokens,
			ch.StartOffset, ch.EndOffset, embedding, metadata,
		); err != nil {
			if ctx.Err() != nil {
				return failed, ctx.Err()
			}
			s.logger.Error("Failed to insert chunk",
				logger.String("fileId", fileID),
				logger.Int("sectionIndex", ch.SectionIndex),
				logger.Error(err),
			)
			failed++
		}
	}

	return failed, nil
}

// GetChunks returns a file's chunks in section order. The embedding
// column is NULL for chunks whose embedding call failed; those rows come
// back with a nil Embedding.
func (s *Store) GetChunks(ctx context.Context, fileID string) ([]models.TextChunk, error) {
	const q = `
		SELECT id, file_id, section_index, content, tokens, start_offset, end_offset, embedding, created_at
		FROM file_chunks
		WHERE file_id = $1
		ORDER BY section_index ASC
	`
	rows, err := s.db.QueryContext(ctx, q, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var out []models.TextChunk
	for rows.Next() {
		var (
			ch  models.TextChunk
			emb []byte
		)
		if err := rows.Scan(
			&ch.ID, &ch.FileID, &ch.SectionIndex, &ch.Content, &ch.Tokens,
			&ch.StartOffset, &ch.EndOffset, &emb, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		vec, err := parseEmbedding(emb)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding: %w", err)
		}
		ch.Embedding = vec
		out = append(out, ch)
	}
	return out, rows.Err()
}

// parseEmbedding decodes a raw vector column value. pgvector's own Scan
// rejects SQL NULL, so the nil case is handled before delegating to it.
func parseEmbedding(raw []byte) ([]float32, error) {
	if raw == nil {
		return nil, nil
	}
	var v pgvector.Vector
	if err := v.Scan(raw); err != nil {
		return nil, err
	}
	return v.Slice(), nil
}

// SearchFilters scopes a similarity search.
type SearchFilters struct {
	ProjectID string
	FileID    string
}

// SearchResult is one similarity hit with its cosine distance.
type SearchResult struct {
	Chunk    models.TextChunk
	Distance float64
}

// SimilaritySearch returns the top-k chunks by cosine distance to the
// query embedding, optionally scoped to a project or single file.
func (s *Store) SimilaritySearch(ctx context.Context, queryVec []float32, k int, filters SearchFilters) ([]SearchResult, error) {
	if len(queryVec) != s.embeddingDim {
		return nil, fmt.Errorf("query embedding dimension mismatch: schema declares %d, query has %d",
			s.embeddingDim, len(queryVec))
	}
	if k <= 0 {
		k = 10
	}

	q := `
		SELECT c.id, c.file_id, c.section_index, c.content, c.tokens,
		       c.start_offset, c.end_offset, c.embedding <=> $1 AS distance
		FROM file_chunks c
		JOIN files f ON f.id = c.file_id
		WHERE c.embedding IS NOT NULL
	`
	args := []interface{}{pgvector.NewVector(queryVec)}

	if filters.ProjectID != "" {
		args = append(args, filters.ProjectID)
		q += fmt.Sprintf(" AND f.project_id = $%d", len(args))
	}
	if filters.FileID != "" {
		args = append(args, filters.FileID)
		q += fmt.Sprintf(" AND c.file_id = $%d", len(args))
	}

	args = append(args, k)
	q += fmt.Sprintf(" ORDER BY distance ASC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.Chunk.ID, &r.Chunk.FileID, &r.Chunk.SectionIndex, &r.Chunk.Content,
			&r.Chunk.Tokens, &r.Chunk.StartOffset, &r.Chunk.EndOffset, &r.Distance,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
