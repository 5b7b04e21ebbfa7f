package handlers

import (
	"github.com/casewire/casefile-processor/internal/ai"
	"github.com/casewire/casefile-processor/pkg/logger"
	"github.com/casewire/casefile-processor/pkg/queue"
)

type Handlers struct {
	File   *FileHandler
	Search *SearchHandler
}

// Store is the full persistence surface the API consumes.
type Store interface {
	FileReader
	Searcher
}

func NewHandlers(
	processor Processor,
	st Store,
	q queue.Queue,
	embedder ai.Embedder,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		File:   NewFileHandler(processor, st, q, log),
		Search: NewSearchHandler(embedder, st, log),
	}
}
