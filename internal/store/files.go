package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/casewire/casefile-processor/internal/models"
)

// GetFile loads a file record by ID. A missing record returns (nil, nil).
func (s *Store) GetFile(ctx context.Context, id string) (*models.FileRecord, error) {
	const q = `
		SELECT id, project_id, COALESCE(owner_id::text, ''), storage_path, content_type, size,
		       processing_status, thumbnail_url, extracted_text_length, metadata,
		       created_at, updated_at
		FROM files
		WHERE id = $1
	`

	var (
		f        models.FileRecord
		metadata []byte
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&f.ID, &f.ProjectID, &f.OwnerID, &f.StoragePath, &f.ContentType, &f.Size,
		&f.ProcessingStatus, &f.ThumbnailURL, &f.ExtractedTextLength, &metadata,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &f.Metadata); err != nil {
			// Metadata is advisory; a corrupt blob should not hide the record.
			f.Metadata = map[string]interface{}{}
		}
	}

	return &f, nil
}

// SetProcessing marks a file as in-flight.
func (s *Store) SetProcessing(ctx context.Context, id string) error {
	const q = `
		UPDATE files SET processing_status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, q, id, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to set processing status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("file not found: %s", id)
	}
	return nil
}

// CompletionUpdate is everything the pipeline writes back in one final
// update: status, thumbnail, text length and the processing sub-object
// merged into the file's metadata.
type CompletionUpdate struct {
	Status              models.ProcessingStatus
	ThumbnailURL        *string
	ExtractedTextLength int
	Processing          map[string]interface{}
}

// FinishFile applies the completion update atomically.
func (s *Store) FinishFile(ctx context.Context, id string, upd CompletionUpdate) error {
	processingJSON, err := json.Marshal(map[string]interface{}{
		"processing": upd.Processing,
	})
	if err != nil {
		return fmt.Errorf("failed to encode processing metadata: %w", err)
	}

	const q = `
		UPDATE files
		SET processing_status = $2,
		    thumbnail_url = COALESCE($3, thumbnail_url),
		    extracted_text_length = $4,
		    metadata = metadata || $5::jsonb,
		    updated_at = now()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, q,
		id, upd.Status, upd.ThumbnailURL, upd.ExtractedTextLength, processingJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to finish file: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("file not found: %s", id)
	}
	return nil
}

// MarkFailed sets the terminal failed status and records the message.
func (s *Store) MarkFailed(ctx context.Context, id string, message string) error {
	failure, err := json.Marshal(map[string]interface{}{
		"processing": map[string]interface{}{
			"error": message,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode failure metadata: %w", err)
	}

	const q = `
		UPDATE files
		SET processing_status = $2,
		    metadata = metadata || $3::jsonb,
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, q, id, models.StatusFailed, failure); err != nil {
		return fmt.Errorf("failed to mark file failed: %w", err)
	}
	return nil
}
