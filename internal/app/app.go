package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	cfg "github.com/casewire/casefile-processor/config"
	"github.com/casewire/casefile-processor/internal/ai"
	"github.com/casewire/casefile-processor/internal/extract"
	"github.com/casewire/casefile-processor/internal/extract/docx"
	imageextract "github.com/casewire/casefile-processor/internal/extract/image"
	"github.com/casewire/casefile-processor/internal/extract/pdf"
	"github.com/casewire/casefile-processor/internal/extract/plaintext"
	"github.com/casewire/casefile-processor/internal/pipeline"
	"github.com/casewire/casefile-processor/internal/store"
	"github.com/casewire/casefile-processor/internal/thumbnail"
	"github.com/casewire/casefile-processor/pkg/logger"
	"github.com/casewire/casefile-processor/pkg/queue"
	"github.com/casewire/casefile-processor/pkg/storage"
)

var (
	appOnce     sync.Once
	appInstance *App
	appErr      error
)

// App bundles the wired collaborators shared by the server and worker
// binaries.
type App struct {
	Store    *store.Store
	Storage  storage.Storage
	Gemini   *ai.GeminiClient
	Pipeline *pipeline.Pipeline
	Queue    *queue.AsynqQueue
	Config   *cfg.PipelineConfig
	Logger   logger.Logger
}

// Get wires the application once and returns the shared instance.
func Get(ctx context.Context, log logger.Logger) (*App, error) {
	appOnce.Do(func() {
		appInstance, appErr = build(ctx, log)
	})
	return appInstance, appErr
}

func build(ctx context.Context, log logger.Logger) (*App, error) {
	pipeCfg := cfg.GetPipelineConfig()

	storageType := storage.StorageType(os.Getenv("STORAGE_TYPE"))
	if storageType == "" {
		storageType = storage.StorageTypeMinio
	}
	objectStore, err := storage.NewStorage(storageType, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init object storage: %w", err)
	}

	db, err := store.NewStore(ctx, cfg.GetPostgresConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	gemini, err := ai.NewGeminiClient(ctx, cfg.GetGeminiConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to init gemini client: %w", err)
	}

	var imageExtractor extract.Extractor
	switch pipeCfg.OCRBackend {
	case "tesseract":
		imageExtractor = imageextract.NewTesseractExtractor(log, "eng")
	default:
		imageExtractor = imageextract.NewExtractor(log, gemini)
	}

	factory := extract.NewFactory(log,
		pdf.NewExtractor(log, gemini, pipeCfg.MaxPDFPages),
		imageExtractor,
		docx.NewExtractor(log),
		plaintext.NewExtractor(),
	)

	thumbs := thumbnail.NewGenerator(objectStore, pipeCfg.ThumbnailMaxPixels, log)

	entities := ai.NewEntityExtractor(gemini, ai.EntityExtractorConfig{
		WindowChars:  pipeCfg.EntityWindowChars,
		OverlapChars: pipeCfg.EntityOverlapChars,
		Concurrency:  pipeCfg.EntityConcurrency,
		Timeout:      pipeCfg.GenerateTimeout,
	}, log)

	pipe := pipeline.New(
		db, db, db,
		objectStore,
		factory,
		thumbs,
		gemini,
		entities,
		pipeCfg,
		log,
	)

	redisCfg := cfg.GetRedisConfig()
	q, err := queue.NewAsynqQueue(&queue.Config{
		RedisAddr: redisCfg.Addr,
		RedisDB:   redisCfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init queue: %w", err)
	}

	return &App{
		Store:    db,
		Storage:  objectStore,
		Gemini:   gemini,
		Pipeline: pipe,
		Queue:    q,
		Config:   pipeCfg,
		Logger:   log,
	}, nil
}

// Close releases the app's long-lived resources.
func (a *App) Close() error {
	var firstErr error
	if err := a.Gemini.Close(); err != nil {
		firstErr = err
	}
	if err := a.Queue.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
