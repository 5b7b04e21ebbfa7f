package ai

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/casewire/casefile-processor/internal/chunker"
	"github.com/casewire/casefile-processor/pkg/logger"
)

const entitySystemPrompt = `You are a legal document analyst. Extract named entities from the provided text.
Entity types, use exactly these labels:
- PERSON: people's names
- ORG: organizations, companies, courts, agencies
- DATE: dates and date ranges
- LOCATION: places, addresses, jurisdictions
- LEGAL_TERM: statutes, case citations, legal doctrines and terms of art

Respond with JSON only, in the shape {"entities": [{"text": "...", "type": "..."}]}.
Do not include entities of any other type. Do not include commentary.`

// EntityExtractorConfig sizes the extraction windows. Entity extraction
// reads larger windows than embedding chunks because the model benefits
// from surrounding context.
type EntityExtractorConfig struct {
	WindowChars  int
	OverlapChars int
	Concurrency  int
	// Timeout bounds each per-window model call; zero means no bound.
	Timeout time.Duration
}

// EntityExtractor runs windowed entity extraction over document text.
type EntityExtractor struct {
	generator Generator
	config    EntityExtractorConfig
	logger    logger.Logger
}

func NewEntityExtractor(gen Generator, conf EntityExtractorConfig, log logger.Logger) *EntityExtractor {
	if conf.WindowChars <= 0 {
		conf.WindowChars = 6000
	}
	if conf.OverlapChars < 0 {
		conf.OverlapChars = 0
	}
	if conf.Concurrency <= 0 {
		conf.Concurrency = 3
	}
	return &EntityExtractor{
		generator: gen,
		config:    conf,
		logger:    log,
	}
}

// ExtractEntities re-chunks the full text into windows, queries the model
// per window with bounded concurrency, and returns entities deduplicated
// by (lowercased text, type). Window failures are logged and skipped; the
// only error returned is context cancellation.
func (x *EntityExtractor) ExtractEntities(ctx context.Context, text string) ([]ExtractedEntity, int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, 0, nil
	}

	windows := chunker.Split(text, chunker.Options{
		MaxTokens:     x.config.WindowChars / 4,
		OverlapTokens: x.config.OverlapChars / 4,
	})

	var (
		mu       sync.Mutex
		all      []ExtractedEntity
		failures int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.config.Concurrency)

	for _, w := range windows {
		window := w
		g.Go(func() error {
			entities, err := x.extractWindow(gctx, window.Text)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				x.logger.Warn("Entity window failed, skipping",
					logger.Int("windowStart", window.StartOffset),
					logger.Error(err),
				)
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			all = append(all, entities...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, failures, err
	}

	return Dedup(all), failures, nil
}

func (x *EntityExtractor) extractWindow(ctx context.Context, windowText string) ([]ExtractedEntity, error) {
	if x.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.config.Timeout)
		defer cancel()
	}

	raw, err := x.generator.Generate(ctx, entitySystemPrompt, windowText, true)
	if err != nil {
		return nil, err
	}
	return ParseEntityPayload(raw)
}

// Dedup collapses duplicates by (lowercased text, type), keeping first
// occurrence order.
func Dedup(entities []ExtractedEntity) []ExtractedEntity {
	seen := make(map[string]bool, len(entities))
	out := make([]ExtractedEntity, 0, len(entities))
	for _, e := range entities {
		key := strings.ToLower(e.Text) + "\x00" + e.Type
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
