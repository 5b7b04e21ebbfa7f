package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/casewire/casefile-processor/internal/ai"
	"github.com/casewire/casefile-processor/internal/store"
	"github.com/casewire/casefile-processor/pkg/logger"
)

// Searcher answers top-k vector queries against stored chunks.
type Searcher interface {
	SimilaritySearch(ctx context.Context, queryVec []float32, k int, filters store.SearchFilters) ([]store.SearchResult, error)
}

type SearchHandler struct {
	embedder ai.Embedder
	searcher Searcher
	logger   logger.Logger
}

// SearchRequest is a semantic search over a project's chunks.
type SearchRequest struct {
	Query     string `json:"query" binding:"required"`
	ProjectID string `json:"projectId"`
	FileID    string `json:"fileId"`
	Limit     int    `json:"limit"`
}

func NewSearchHandler(embedder ai.Embedder, searcher Searcher, log logger.Logger) *SearchHandler {
	return &SearchHandler{
		embedder: embedder,
		searcher: searcher,
		logger:   log,
	}
}

// Search embeds the query text and returns the nearest chunks by cosine
// distance, optionally scoped to a project or file.
func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.handleError(c, http.StatusBadRequest, "Query must not be empty", nil)
		return
	}

	queryVec, err := h.embedder.EmbedText(c.Request.Context(), req.Query)
	if err != nil {
		h.handleError(c, http.StatusBadGateway, "Failed to embed query", err)
		return
	}

	results, err := h.searcher.SimilaritySearch(c.Request.Context(), queryVec, req.Limit, store.SearchFilters{
		ProjectID: req.ProjectID,
		FileID:    req.FileID,
	})
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Search failed", err)
		return
	}

	hits := make([]gin.H, len(results))
	for i, r := range results {
		hits[i] = gin.H{
			"fileId":       r.Chunk.FileID,
			"sectionIndex": r.Chunk.SectionIndex,
			"content":      r.Chunk.Content,
			"distance":     r.Distance,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   req.Query,
		"results": hits,
	})
}

func (h *SearchHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(status, response)
}
