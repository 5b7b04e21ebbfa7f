package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/casewire/casefile-processor/internal/models"
	"github.com/casewire/casefile-processor/pkg/logger"
)

// DeleteEntities removes all entities previously extracted from a file.
// Idempotent, called before re-insert on reprocessing.
func (s *Store) DeleteEntities(ctx context.Context, fileID string) error {
	const q = `DELETE FROM file_entities WHERE source_file_id = $1`
	if _, err := s.db.ExecContext(ctx, q, fileID); err != nil {
		return fmt.Errorf("failed to delete entities: %w", err)
	}
	return nil
}

// InsertEntities writes entities best effort. Exact duplicates by
// (project, file, lowercased text, type) hit the unique index and are
// silently skipped via ON CONFLICT DO NOTHING. Returns the failed count.
func (s *Store) InsertEntities(ctx context.Context, entities []models.Entity) (int, error) {
	if len(entities) == 0 {
		return 0, nil
	}

	const q = `
		INSERT INTO file_entities
			(id, project_id, source_file_id, owner_id, entity_text, entity_type)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6)
		ON CONFLICT (project_id, source_file_id, lower(entity_text), entity_type) DO NOTHING
	`

	failed := 0
	for i := range entities {
		e := &entities[i]

		id := e.ID
		if id == "" {
			id = uuid.New().String()
		}

		if _, err := s.db.ExecContext(ctx, q,
			id, e.ProjectID, e.SourceFileID, e.OwnerID, e.EntityText, e.EntityType,
		); err != nil {
			if ctx.Err() != nil {
				return failed, ctx.Err()
			}
			s.logger.Error("Failed to insert entity",
				logger.String("fileId", e.SourceFileID),
				logger.String("entityType", string(e.EntityType)),
				logger.Error(err),
			)
			failed++
		}
	}

	return failed, nil
}

// GetEntities returns a file's entities.
func (s *Store) GetEntities(ctx context.Context, fileID string) ([]models.Entity, error) {
	const q = `
		SELECT id, project_id, source_file_id, COALESCE(owner_id::text, ''), entity_text, entity_type, created_at
		FROM file_entities
		WHERE source_file_id = $1
		ORDER BY entity_type, lower(entity_text)
	`
	rows, err := s.db.QueryContext(ctx, q, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var out []models.Entity
	for rows.Next() {
		var e models.Entity
		if err := rows.Scan(
			&e.ID, &e.ProjectID, &e.SourceFileID, &e.OwnerID, &e.EntityText, &e.EntityType, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
