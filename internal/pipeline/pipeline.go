package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	cfg "github.com/casewire/casefile-processor/config"
	"github.com/casewire/casefile-processor/internal/ai"
	"github.com/casewire/casefile-processor/internal/chunker"
	"github.com/casewire/casefile-processor/internal/extract"
	"github.com/casewire/casefile-processor/internal/models"
	"github.com/casewire/casefile-processor/internal/store"
	"github.com/casewire/casefile-processor/pkg/logger"
)

// FileStore is the slice of persistence the orchestrator needs for file
// records.
type FileStore interface {
	GetFile(ctx context.Context, id string) (*models.FileRecord, error)
	SetProcessing(ctx context.Context, id string) error
	FinishFile(ctx context.Context, id string, upd store.CompletionUpdate) error
	MarkFailed(ctx context.Context, id string, message string) error
}

// ChunkStore persists embedded chunks with delete-then-insert replacement.
type ChunkStore interface {
	DeleteChunks(ctx context.Context, fileID string) error
	InsertChunks(ctx context.Context, fileID string, chunks []models.TextChunk) (int, error)
}

// EntityStore persists extracted entities with delete-then-insert
// replacement and per-row dedup.
type EntityStore interface {
	DeleteEntities(ctx context.Context, fileID string) error
	InsertEntities(ctx context.Context, entities []models.Entity) (int, error)
}

// Downloader fetches source bytes from object storage.
type Downloader interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}

// Thumbnailer renders and stores a preview, returning its URL.
type Thumbnailer interface {
	Generate(ctx context.Context, data []byte, mimeType, fileID string) (string, error)
}

// ExtractorFactory routes a MIME type to a format extractor.
type ExtractorFactory interface {
	GetExtractor(mimeType string) (extract.Extractor, error)
}

// EntityClient runs windowed entity extraction over the full text.
type EntityClient interface {
	ExtractEntities(ctx context.Context, text string) ([]ai.ExtractedEntity, int, error)
}

// Request identifies one file to process.
type Request struct {
	FileID    string `json:"fileId"`
	ProjectID string `json:"projectId,omitempty"`
	Bucket    string `json:"bucketName,omitempty"`
}

// Result summarizes one completed run.
type Result struct {
	FileID         string   `json:"fileId"`
	TextLength     int      `json:"textLength"`
	ThumbnailURL   string   `json:"thumbnailUrl,omitempty"`
	ChunkCount     int      `json:"chunkCount"`
	EmbeddedCount  int      `json:"embeddedCount"`
	EntityCount    int      `json:"entityCount"`
	Warnings       []string `json:"warnings,omitempty"`
	DurationMillis int64    `json:"durationMs"`
}

// Pipeline sequences extraction, thumbnailing, chunking, embedding and
// entity extraction for one file. All collaborators are injected; the
// pipeline owns no global state.
type Pipeline struct {
	files      FileStore
	chunks     ChunkStore
	entities   EntityStore
	storage    Downloader
	extractors ExtractorFactory
	thumbs     Thumbnailer
	embedder   ai.Embedder
	entityAI   EntityClient
	config     *cfg.PipelineConfig
	logger     logger.Logger
}

func New(
	files FileStore,
	chunks ChunkStore,
	entities EntityStore,
	storage Downloader,
	extractors ExtractorFactory,
	thumbs Thumbnailer,
	embedder ai.Embedder,
	entityAI EntityClient,
	conf *cfg.PipelineConfig,
	log logger.Logger,
) *Pipeline {
	return &Pipeline{
		files:      files,
		chunks:     chunks,
		entities:   entities,
		storage:    storage,
		extractors: extractors,
		thumbs:     thumbs,
		embedder:   embedder,
		entityAI:   entityAI,
		config:     conf,
		logger:     log,
	}
}

// Process runs the full pipeline for one file. Only fatal input errors
// (missing record, failed download) return an error and mark the file
// failed; every other failure degrades the result and the file still
// completes with the failure surfaced in metadata.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	log := p.logger.With(logger.String("fileId", req.FileID))

	file, err := p.files.GetFile(ctx, req.FileID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load file record: %v", ErrFatalInput, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: file record not found: %s", ErrFatalInput, req.FileID)
	}
	if req.ProjectID == "" {
		req.ProjectID = file.ProjectID
	}

	if err := p.files.SetProcessing(ctx, file.ID); err != nil {
		log.Warn("Failed to set processing status", logger.Error(err))
	}

	data, err := p.download(ctx, req.Bucket, file.StoragePath)
	if err != nil {
		msg := fmt.Sprintf("failed to download source file: %v", err)
		if markErr := p.files.MarkFailed(ctx, file.ID, msg); markErr != nil {
			log.Error("Failed to mark file failed", logger.Error(markErr))
		}
		return nil, fmt.Errorf("%w: %s", ErrFatalInput, msg)
	}

	mimeType := p.resolveMime(file)
	log.Info("Processing file",
		logger.String("mimeType", mimeType),
		logger.Int("bytes", len(data)),
	)

	res := &Result{FileID: file.ID}
	var warnings []string

	// Extraction and thumbnailing are independent; run them together.
	var (
		text         string
		thumbnailURL string
		extractWarn  string
		thumbWarn    string
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		extracted, exErr := p.extractText(gctx, data, mimeType)
		if exErr != nil {
			log.Warn("Text extraction failed", logger.Error(exErr))
			extractWarn = exErr.Error()
			return nil
		}
		text = extracted
		return nil
	})

	g.Go(func() error {
		url, thErr := p.thumbs.Generate(gctx, data, mimeType, file.ID)
		if thErr != nil {
			log.Warn("Thumbnail generation failed", logger.Error(thErr))
			thumbWarn = fmt.Errorf("%w: %v", ErrThumbnailFailure, thErr).Error()
			return nil
		}
		thumbnailURL = url
		return nil
	})

	if err := g.Wait(); err != nil {
		// Only context cancellation escapes the stage closures.
		return nil, err
	}
	if extractWarn != "" {
		warnings = append(warnings, extractWarn)
	}
	if thumbWarn != "" {
		warnings = append(warnings, thumbWarn)
	}

	res.TextLength = len(text)
	res.ThumbnailURL = thumbnailURL

	processing := map[string]interface{}{
		"mime_type": mimeType,
	}

	embedFailures := 0
	if strings.TrimSpace(text) != "" {
		chunks := chunker.Split(text, chunker.Options{
			MaxTokens:     p.config.MaxChunkTokens,
			OverlapTokens: p.config.ChunkOverlapTokens,
		})
		res.ChunkCount = len(chunks)

		rows := p.embedChunks(ctx, file.ID, chunks, &embedFailures)
		res.EmbeddedCount = len(rows) - embedFailures

		if err := p.replaceChunks(ctx, file.ID, rows); err != nil {
			log.Error("Chunk replacement failed", logger.Error(err))
			warnings = append(warnings, fmt.Errorf("%w: %v", ErrStoreWrite, err).Error())
		}

		if embedFailures > 0 {
			warnings = append(warnings, fmt.Sprintf("%d/%d chunk embeddings failed", embedFailures, len(chunks)))
		}
		processing["embedding_failures"] = embedFailures
	} else {
		log.Warn("No text extracted, skipping chunking and embedding")
		warnings = append(warnings, "no text extracted")
		// A run replaces derived data wholesale, so a reprocess that now
		// yields no text must not leave a previous generation behind.
		if err := p.chunks.DeleteChunks(ctx, file.ID); err != nil {
			log.Error("Failed to clear stale chunks", logger.Error(err))
			warnings = append(warnings, fmt.Errorf("%w: %v", ErrStoreWrite, err).Error())
		}
		if err := p.entities.DeleteEntities(ctx, file.ID); err != nil {
			log.Error("Failed to clear stale entities", logger.Error(err))
			warnings = append(warnings, fmt.Errorf("%w: %v", ErrStoreWrite, err).Error())
		}
	}

	// Entity extraction reads the same text, independent of embedding
	// outcomes.
	if strings.TrimSpace(text) != "" {
		count, windowFailures, entErr := p.storeEntities(ctx, file, req.ProjectID, text)
		if entErr != nil {
			log.Warn("Entity extraction failed", logger.Error(entErr))
			warnings = append(warnings, fmt.Errorf("%w: %v", ErrEntityService, entErr).Error())
		}
		res.EntityCount = count
		if windowFailures > 0 {
			processing["entity_window_failures"] = windowFailures
		}
	}

	res.Warnings = warnings
	res.DurationMillis = time.Since(started).Milliseconds()

	processing["chunk_count"] = res.ChunkCount
	processing["entity_count"] = res.EntityCount
	processing["duration_ms"] = res.DurationMillis
	processing["completed_at"] = time.Now().UTC().Format(time.RFC3339)
	if len(warnings) > 0 {
		processing["warnings"] = warnings
	}

	var thumbPtr *string
	if thumbnailURL != "" {
		thumbPtr = &thumbnailURL
	}

	// The final update reflects the best achieved state: completed even
	// when sub-steps failed, with the details in metadata.
	if err := p.files.FinishFile(ctx, file.ID, store.CompletionUpdate{
		Status:              models.StatusCompleted,
		ThumbnailURL:        thumbPtr,
		ExtractedTextLength: res.TextLength,
		Processing:          processing,
	}); err != nil {
		log.Error("Failed to write completion update", logger.Error(err))
		return res, fmt.Errorf("%w: completion update: %v", ErrStoreWrite, err)
	}

	log.Info("File processing completed",
		logger.Int("textLength", res.TextLength),
		logger.Int("chunks", res.ChunkCount),
		logger.Int("entities", res.EntityCount),
		logger.Int("warnings", len(warnings)),
	)
	return res, nil
}

func (p *Pipeline) download(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.StorageTimeout)
	defer cancel()
	return p.storage.Download(ctx, bucket, key)
}

// resolveMime prefers the declared content type, falling back to the
// storage path extension.
func (p *Pipeline) resolveMime(file *models.FileRecord) string {
	ct := strings.TrimSpace(file.ContentType)
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if mime, ok := extract.MimeFromExtension(filepath.Ext(file.StoragePath)); ok {
		return mime
	}
	return ct
}

func (p *Pipeline) extractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	extractor, err := p.extractors.GetExtractor(mimeType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	text, err := extractor.Extract(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailure, err)
	}
	return text, nil
}

// embedChunks fans the embedding calls out with bounded concurrency and
// reassembles results by chunk index, never by completion order. A failed
// chunk keeps its row (dense section indexes) with a nil embedding.
func (p *Pipeline) embedChunks(ctx context.Context, fileID string, chunks []chunker.Chunk, failures *int) []models.TextChunk {
	rows := make([]models.TextChunk, len(chunks))
	for i, ch := range chunks {
		rows[i] = models.TextChunk{
			FileID:       fileID,
			SectionIndex: i,
			Content:      ch.Text,
			Tokens:       ch.Tokens,
			StartOffset:  ch.StartOffset,
			EndOffset:    ch.EndOffset,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.EmbedConcurrency)

	results := make([][]float32, len(chunks))
	failed := make([]bool, len(chunks))

	for i := range chunks {
		idx := i
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, p.config.EmbedTimeout)
			defer cancel()

			vec, err := p.embedder.EmbedText(callCtx, rows[idx].Content)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Warn("Chunk embedding failed",
					logger.String("fileId", fileID),
					logger.Int("sectionIndex", idx),
					logger.Error(fmt.Errorf("%w: %v", ErrEmbeddingService, err)),
				)
				failed[idx] = true
				return nil
			}
			results[idx] = vec
			return nil
		})
	}

	// Embedding failures never abort the run; only cancellation does,
	// and that surfaces through the parent context at the next stage.
	_ = g.Wait()

	count := 0
	for i := range rows {
		if failed[i] {
			count++
			continue
		}
		rows[i].Embedding = results[i]
	}
	*failures = count

	return rows
}

// replaceChunks applies the delete-then-insert replacement so a
// reprocessed file never mixes chunk generations.
func (p *Pipeline) replaceChunks(ctx context.Context, fileID string, rows []models.TextChunk) error {
	if err := p.chunks.DeleteChunks(ctx, fileID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	failed, err := p.chunks.InsertChunks(ctx, fileID, rows)
	if err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	if failed > 0 {
		p.logger.Warn("Some chunk rows failed to insert",
			logger.String("fileId", fileID),
			logger.Int("failed", failed),
		)
	}
	return nil
}

func (p *Pipeline) storeEntities(ctx context.Context, file *models.FileRecord, projectID, text string) (int, int, error) {
	extracted, windowFailures, err := p.entityAI.ExtractEntities(ctx, text)
	if err != nil {
		return 0, windowFailures, err
	}
	if len(extracted) == 0 {
		return 0, windowFailures, nil
	}

	entities := make([]models.Entity, 0, len(extracted))
	for _, e := range extracted {
		entityType, ok := ai.NormalizeEntityType(e.Type)
		if !ok {
			continue
		}
		entities = append(entities, models.Entity{
			ProjectID:    projectID,
			SourceFileID: file.ID,
			OwnerID:      file.OwnerID,
			EntityText:   e.Text,
			EntityType:   entityType,
		})
	}

	if err := p.entities.DeleteEntities(ctx, file.ID); err != nil {
		return 0, windowFailures, fmt.Errorf("delete old entities: %w", err)
	}
	failed, err := p.entities.InsertEntities(ctx, entities)
	if err != nil {
		return 0, windowFailures, fmt.Errorf("insert entities: %w", err)
	}

	return len(entities) - failed, windowFailures, nil
}
