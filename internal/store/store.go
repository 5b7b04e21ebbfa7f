package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	cfg "github.com/casewire/casefile-processor/config"
	"github.com/casewire/casefile-processor/pkg/logger"
)

// Store is the Postgres-backed persistence layer: file records, text
// chunks with pgvector embeddings, and extracted entities.
type Store struct {
	db           *sql.DB
	embeddingDim int
	logger       logger.Logger
}

func NewStore(ctx context.Context, conf *cfg.PostgresConfig, log logger.Logger) (*Store, error) {
	if conf == nil || conf.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not configured")
	}
	if conf.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", conf.EmbeddingDim)
	}

	db, err := sql.Open("pgx", conf.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:           db,
		embeddingDim: conf.EmbeddingDim,
		logger:       log,
	}

	if err := s.bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EmbeddingDim is the vector length declared in the schema. Vectors of
// any other length are rejected before a row write is attempted.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// bootstrap creates the pgvector extension and tables on first run.
// The vector column length is fixed here; changing the embedding model's
// dimension requires a migration, not a config flip.
func (s *Store) bootstrap(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS files (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL,
			owner_id UUID,
			storage_path TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			size BIGINT NOT NULL DEFAULT 0,
			processing_status TEXT NOT NULL DEFAULT 'unprocessed',
			thumbnail_url TEXT,
			extracted_text_length INTEGER NOT NULL DEFAULT 0,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS file_chunks (
			id UUID PRIMARY KEY,
			file_id UUID NOT NULL REFERENCES files(id) ON DELETE CASCADE,
			section_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			tokens INTEGER NOT NULL DEFAULT 0,
			start_offset INTEGER NOT NULL DEFAULT 0,
			end_offset INTEGER NOT NULL DEFAULT 0,
			embedding vector(%d),
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.embeddingDim),
		`CREATE INDEX IF NOT EXISTS idx_file_chunks_file ON file_chunks (file_id, section_index)`,
		`CREATE INDEX IF NOT EXISTS idx_file_chunks_embedding ON file_chunks
			USING hnsw (embedding vector_cosine_ops)`,
		`CREATE TABLE IF NOT EXISTS file_entities (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL,
			source_file_id UUID NOT NULL REFERENCES files(id) ON DELETE CASCADE,
			owner_id UUID,
			entity_text TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_file_entities_unique
			ON file_entities (project_id, source_file_id, lower(entity_text), entity_type)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap statement failed: %w", err)
		}
	}
	return nil
}
