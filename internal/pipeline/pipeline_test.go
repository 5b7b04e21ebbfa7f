package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/casewire/casefile-processor/config"
	"github.com/casewire/casefile-processor/internal/ai"
	"github.com/casewire/casefile-processor/internal/extract"
	"github.com/casewire/casefile-processor/internal/models"
	"github.com/casewire/casefile-processor/internal/store"
	"github.com/casewire/casefile-processor/pkg/logger"
)

type fakeFileStore struct {
	mu       sync.Mutex
	record   *models.FileRecord
	getErr   error
	finished *store.CompletionUpdate
	failed   string
	ops      *opLog
}

func (f *fakeFileStore) GetFile(ctx context.Context, id string) (*models.FileRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.record, nil
}

func (f *fakeFileStore) SetProcessing(ctx context.Context, id string) error {
	f.ops.add("set_processing")
	return nil
}

func (f *fakeFileStore) FinishFile(ctx context.Context, id string, upd store.CompletionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = &upd
	f.ops.add("finish")
	return nil
}

func (f *fakeFileStore) MarkFailed(ctx context.Context, id string, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = message
	f.ops.add("mark_failed")
	return nil
}

type fakeChunkStore struct {
	mu       sync.Mutex
	inserted []models.TextChunk
	ops      *opLog
}

func (f *fakeChunkStore) DeleteChunks(ctx context.Context, fileID string) error {
	f.ops.add("delete_chunks")
	return nil
}

func (f *fakeChunkStore) InsertChunks(ctx context.Context, fileID string, chunks []models.TextChunk) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append([]models.TextChunk(nil), chunks...)
	f.ops.add("insert_chunks")
	return 0, nil
}

type fakeEntityStore struct {
	mu       sync.Mutex
	inserted []models.Entity
	ops      *opLog
}

func (f *fakeEntityStore) DeleteEntities(ctx context.Context, fileID string) error {
	f.ops.add("delete_entities")
	return nil
}

func (f *fakeEntityStore) InsertEntities(ctx context.Context, entities []models.Entity) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append([]models.Entity(nil), entities...)
	f.ops.add("insert_entities")
	return 0, nil
}

type fakeDownloader struct {
	data []byte
	err  error
}

func (f *fakeDownloader) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	return f.data, f.err
}

type fakeThumbnailer struct {
	url string
	err error
}

func (f *fakeThumbnailer) Generate(ctx context.Context, data []byte, mimeType, fileID string) (string, error) {
	return f.url, f.err
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) CanExtract(mimeType string) bool { return true }

func (f *fakeExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return f.text, f.err
}

type fakeFactory struct {
	extractor extract.Extractor
	err       error
}

func (f *fakeFactory) GetExtractor(mimeType string) (extract.Extractor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.extractor, nil
}

type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	failWhen func(text string) bool
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failWhen != nil && f.failWhen(text) {
		return nil, errors.New("embedding backend unavailable")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeEntityClient struct {
	entities []ai.ExtractedEntity
	failures int
	err      error
}

func (f *fakeEntityClient) ExtractEntities(ctx context.Context, text string) ([]ai.ExtractedEntity, int, error) {
	return f.entities, f.failures, f.err
}

// opLog records cross-store call order.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func (l *opLog) indexOf(op string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, o := range l.ops {
		if o == op {
			return i
		}
	}
	return -1
}

type fixture struct {
	files    *fakeFileStore
	chunks   *fakeChunkStore
	entities *fakeEntityStore
	download *fakeDownloader
	factory  *fakeFactory
	thumbs   *fakeThumbnailer
	embedder *fakeEmbedder
	entityAI *fakeEntityClient
	pipe     *Pipeline
}

func testConfig() *cfg.PipelineConfig {
	return &cfg.PipelineConfig{
		MaxChunkTokens:     200,
		ChunkOverlapTokens: 50,
		EmbedConcurrency:   2,
		StorageTimeout:     5 * time.Second,
		EmbedTimeout:       5 * time.Second,
		GenerateTimeout:    5 * time.Second,
	}
}

func newFixture() *fixture {
	ops := &opLog{}
	f := &fixture{
		files: &fakeFileStore{
			record: &models.FileRecord{
				ID:          "file-1",
				ProjectID:   "proj-1",
				OwnerID:     "owner-1",
				StoragePath: "uploads/file-1.pdf",
				ContentType: "application/pdf",
			},
			ops: ops,
		},
		chunks:   &fakeChunkStore{ops: ops},
		entities: &fakeEntityStore{ops: ops},
		download: &fakeDownloader{data: []byte("%PDF-1.4 ...")},
		factory:  &fakeFactory{extractor: &fakeExtractor{text: "Jane Doe signed the lease on 12 March 2021."}},
		thumbs:   &fakeThumbnailer{url: "https://cdn.example.com/thumbnails/file-1.jpg"},
		embedder: &fakeEmbedder{},
		entityAI: &fakeEntityClient{
			entities: []ai.ExtractedEntity{
				{Text: "Jane Doe", Type: "PERSON"},
				{Text: "12 March 2021", Type: "DATE"},
			},
		},
	}
	f.pipe = New(
		f.files, f.chunks, f.entities,
		f.download, f.factory, f.thumbs,
		f.embedder, f.entityAI,
		testConfig(), logger.NewTestLogger(),
	)
	return f
}

func TestProcessHappyPath(t *testing.T) {
	f := newFixture()

	res, err := f.pipe.Process(context.Background(), Request{FileID: "file-1"})

	require.NoError(t, err)
	assert.Equal(t, "file-1", res.FileID)
	assert.Greater(t, res.TextLength, 0)
	assert.Equal(t, "https://cdn.example.com/thumbnails/file-1.jpg", res.ThumbnailURL)
	assert.Equal(t, 1, res.ChunkCount)
	assert.Equal(t, 1, res.EmbeddedCount)
	assert.Equal(t, 2, res.EntityCount)
	assert.Empty(t, res.Warnings)

	require.NotNil(t, f.files.finished)
	assert.Equal(t, models.StatusCompleted, f.files.finished.Status)
	require.NotNil(t, f.files.finished.ThumbnailURL)
	assert.Empty(t, f.files.failed)

	require.Len(t, f.chunks.inserted, 1)
	assert.Equal(t, 0, f.chunks.inserted[0].SectionIndex)
	assert.NotNil(t, f.chunks.inserted[0].Embedding)

	require.Len(t, f.entities.inserted, 2)
	assert.Equal(t, "proj-1", f.entities.inserted[0].ProjectID)
	assert.Equal(t, "owner-1", f.entities.inserted[0].OwnerID)
	assert.Equal(t, models.EntityPerson, f.entities.inserted[0].EntityType)
}

func TestProcessChunksLongText(t *testing.T) {
	f := newFixture()
	// 1500 chars against an 800-char budget with 200-char overlap.
	f.factory.extractor = &fakeExtractor{text: strings.Repeat("a", 1500)}

	res, err := f.pipe.Process(context.Background(), Request{FileID: "file-1"})

	require.NoError(t, err)
	assert.Equal(t, 1500, res.TextLength)
	require.Equal(t, 2, res.ChunkCount)
	assert.Equal(t, 2, res.EmbeddedCount)

	// Dense, zero-based section indexes; second chunk overlaps the first
	// by at most the configured overlap.
	require.Len(t, f.chunks.inserted, 2)
	for i, ch := range f.chunks.inserted {
		assert.Equal(t, i, ch.SectionIndex)
		assert.NotNil(t, ch.Embedding)
	}
	first, second := f.chunks.inserted[0], f.chunks.inserted[1]
	assert.GreaterOrEqual(t, second.StartOffset, first.EndOffset-200)
	assert.Equal(t, 1500, second.EndOffset)
}

func TestProcessPartialEmbeddingFailure(t *testing.T) {
	f := newFixture()
	f.factory.extractor = &fakeExtractor{text: strings.Repeat("a", 2000)}

	// Fail exactly one embedding call.
	var once sync.Once
	failed := false
	f.embedder.failWhen = func(text string) bool {
		res := false
		once.Do(func() {
			res = true
			failed = true
		})
		return res
	}

	res, err := f.pipe.Process(context.Background(), Request{FileID: "file-1"})

	require.NoError(t, err)
	require.True(t, failed)
	assert.Equal(t, 3, res.ChunkCount)
	assert.Equal(t, 2, res.EmbeddedCount)
	assert.NotEmpty(t, res.Warnings)

	// All chunks persisted, failed one with a nil embedding.
	require.Len(t, f.chunks.inserted, 3)
	nilCount := 0
	for i, ch := range f.chunks.inserted {
		assert.Equal(t, i, ch.SectionIndex)
		if ch.Embedding == nil {
			nilCount++
		}
	}
	assert.Equal(t, 1, nilCount)

	// Degraded runs still complete.
	require.NotNil(t, f.files.finished)
	assert.Equal(t, models.StatusCompleted, f.files.finished.Status)
	assert.Empty(t, f.files.failed)
}

func TestProcessAllEmbeddingsFailStillCompletes(t *testing.T) {
	f := newFixture()
	f.factory.extractor = &fakeExtractor{text: strings.Repeat("a", 2000)}
	f.embedder.failWhen = func(string) bool { return true }

	res, err := f.pipe.Process(context.Background(), Request{FileID: "file-1"})

	require.NoError(t, err)
	assert.Equal(t, 3, res.ChunkCount)
	assert.Zero(t, res.EmbeddedCount)
	assert.Equal(t, 2000, res.TextLength)

	// Every chunk row lands, all without embeddings.
	require.Len(t, f.chunks.inserted, 3)
	for _, ch := range f.chunks.inserted {
		assert.Nil(t, ch.Embedding)
	}

	require.NotNil(t, f.files.finished)
	assert.Equal(t, models.StatusCompleted, f.files.finished.Status)
	assert.Equal(t, 2000, f.files.finished.ExtractedTextLength)
	assert.Equal(t, 3, f.files.finished.Processing["embedding_failures"])
}

func TestProcessDownloadFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.download.err = errors.New("object not found")

	_, err := f.pipe.Process(context.Background(), Request{FileID: "file-1"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatalInput)
	assert.Contains(t, f.files.failed, "object not found")
	assert.Nil(t, f.files.finished)
}

func TestProcessMissingRecordIsFatal(t *testing.T) {
	f := newFixture()
	f.files.record = nil

	_, err := f.pipe.Process(context.Background(), Request{FileID: "file-1"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatalInput)
}

func TestProcessUnsupportedFormatCompletesWithWarning(t *testing.T) {
	f := newFixture()
	f.factory.err = fmt.Errorf("unsupported content type: application/zip")

	res, err := f.pipe.Process(context.Background(), Request{FileID: "file-1"})

	require.NoError(t, err)
	assert.Zero(t, res.TextLength)
	assert.Zero(t, res.ChunkCount)
	assert.NotEmpty(t, res.Warnings)

	// Thumbnail still produced, file still completed.
	assert.NotEmpty(t, res.ThumbnailURL)
	require.NotNil(t, f.files.finished)
	assert.Equal(t, models.StatusCompleted, f.files.finished.Status)
	assert.Empty(t, f.chunks.inserted)
}

func TestProcessThumbnailFailureDegrades(t *testing.T) {
	f := newFixture()
	f.thumbs.err = errors.New("storage rejected upload")

	res, err := f.pipe.Process(context.Background(), Request{FileID: "file-1"})

	require.NoError(t, err)
	assert.Empty(t, res.ThumbnailURL)
	assert.NotEmpty(t, res.Warnings)

	require.NotNil(t, f.files.finished)
	assert.Equal(t, models.StatusCompleted, f.files.finished.Status)
	assert.Nil(t, f.files.finished.ThumbnailURL)
	// Chunks and entities unaffected.
	assert.NotEmpty(t, f.chunks.inserted)
	assert.NotEmpty(t, f.entities.inserted)
}

func TestProcessEntityFailureDegrades(t *testing.T) {
	f := newFixture()
	f.entityAI.err = errors.New("model quota exceeded")

	res, err := f.pipe.Process(context.Background(), Request{FileID: "file-1"})

	require.NoError(t, err)
	assert.Zero(t, res.EntityCount)
	assert.NotEmpty(t, res.Warnings)
	assert.Empty(t, f.entities.inserted)

	require.NotNil(t, f.files.finished)
	assert.Equal(t, models.StatusCompleted, f.files.finished.Status)
	assert.NotEmpty(t, f.chunks.inserted)
}

func TestProcessDeletesBeforeInsert(t *testing.T) {
	f := newFixture()

	_, err := f.pipe.Process(context.Background(), Request{FileID: "file-1"})
	require.NoError(t, err)

	ops := f.chunks.ops
	assert.Less(t, ops.indexOf("delete_chunks"), ops.indexOf("insert_chunks"))
	assert.Less(t, ops.indexOf("delete_entities"), ops.indexOf("insert_entities"))
	assert.Less(t, ops.indexOf("insert_chunks"), ops.indexOf("finish"))
	assert.Less(t, ops.indexOf("insert_entities"), ops.indexOf("finish"))
	assert.Equal(t, 0, ops.indexOf("set_processing"))
}

func TestProcessDropsUnknownEntityTypes(t *testing.T) {
	f := newFixture()
	f.entityAI.entities = []ai.ExtractedEntity{
		{Text: "Jane Doe", Type: "PERSON"},
		{Text: "happiness", Type: "EMOTION"},
	}

	res, err := f.pipe.Process(context.Background(), Request{FileID: "file-1"})

	require.NoError(t, err)
	assert.Equal(t, 1, res.EntityCount)
	require.Len(t, f.entities.inserted, 1)
	assert.Equal(t, "Jane Doe", f.entities.inserted[0].EntityText)
}

func TestProcessEmptyTextSkipsDownstream(t *testing.T) {
	f := newFixture()
	f.factory.extractor = &fakeExtractor{text: "   \n "}

	res, err := f.pipe.Process(context.Background(), Request{FileID: "file-1"})

	require.NoError(t, err)
	assert.Zero(t, res.ChunkCount)
	assert.Zero(t, res.EntityCount)
	assert.Empty(t, f.chunks.inserted)
	assert.Empty(t, f.entities.inserted)
	assert.NotEmpty(t, res.Warnings)

	// Replacement is wholesale: an empty result still clears whatever a
	// previous run stored.
	ops := f.chunks.ops
	assert.GreaterOrEqual(t, ops.indexOf("delete_chunks"), 0)
	assert.GreaterOrEqual(t, ops.indexOf("delete_entities"), 0)
	assert.Equal(t, -1, ops.indexOf("insert_chunks"))
	assert.Equal(t, -1, ops.indexOf("insert_entities"))

	require.NotNil(t, f.files.finished)
	assert.Equal(t, models.StatusCompleted, f.files.finished.Status)
}
