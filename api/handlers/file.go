package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/casewire/casefile-processor/internal/models"
	"github.com/casewire/casefile-processor/internal/pipeline"
	"github.com/casewire/casefile-processor/pkg/logger"
	"github.com/casewire/casefile-processor/pkg/queue"
)

// FileReader is the read-only slice of the store the API needs.
type FileReader interface {
	GetFile(ctx context.Context, id string) (*models.FileRecord, error)
	GetChunks(ctx context.Context, fileID string) ([]models.TextChunk, error)
	GetEntities(ctx context.Context, fileID string) ([]models.Entity, error)
}

// Processor runs the ingestion pipeline synchronously.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type FileHandler struct {
	processor Processor
	files     FileReader
	queue     queue.Queue
	logger    logger.Logger
}

// ProcessRequest identifies an already uploaded file to ingest.
type ProcessRequest struct {
	FileID    string `json:"fileId" binding:"required"`
	ProjectID string `json:"projectId"`
	Bucket    string `json:"bucketName"`
	Priority  int    `json:"priority"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewFileHandler(processor Processor, files FileReader, q queue.Queue, log logger.Logger) *FileHandler {
	return &FileHandler{
		processor: processor,
		files:     files,
		queue:     q,
		logger:    log,
	}
}

// ProcessFile runs the pipeline synchronously and returns the run summary.
func (h *FileHandler) ProcessFile(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.processor.Process(c.Request.Context(), pipeline.Request{
		FileID:    req.FileID,
		ProjectID: req.ProjectID,
		Bucket:    req.Bucket,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrFatalInput) {
			status = http.StatusUnprocessableEntity
		}
		h.handleError(c, status, "Failed to process file", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"fileId":       result.FileID,
		"textLength":   result.TextLength,
		"thumbnailUrl": result.ThumbnailURL,
		"chunkCount":   result.ChunkCount,
		"entityCount":  result.EntityCount,
		"warnings":     result.Warnings,
	})
}

// ReprocessFile enqueues an asynchronous ingestion run and returns 202.
func (h *FileHandler) ReprocessFile(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	payload, err := json.Marshal(pipeline.Request{
		FileID:    req.FileID,
		ProjectID: req.ProjectID,
		Bucket:    req.Bucket,
	})
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to build task", err)
		return
	}

	task := &queue.Task{
		ID:        uuid.New().String(),
		Type:      queue.TaskTypeFileIngest,
		Priority:  req.Priority,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.queue.Enqueue(c.Request.Context(), task); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to enqueue task", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"taskId": task.ID,
		"fileId": req.FileID,
		"status": "queued",
	})
}

// GetStatus reports a file's processing state and result summary.
func (h *FileHandler) GetStatus(c *gin.Context) {
	fileID := c.Param("fileId")
	if fileID == "" {
		h.handleError(c, http.StatusBadRequest, "File ID is required", nil)
		return
	}

	file, err := h.files.GetFile(c.Request.Context(), fileID)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to get file", err)
		return
	}
	if file == nil {
		h.handleError(c, http.StatusNotFound, "File not found", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fileId":              file.ID,
		"processingStatus":    file.ProcessingStatus,
		"thumbnailUrl":        file.ThumbnailURL,
		"extractedTextLength": file.ExtractedTextLength,
		"metadata":            file.Metadata,
		"updatedAt":           file.UpdatedAt.Format(time.RFC3339),
	})
}

// GetChunks returns a file's chunks in section order, without embeddings.
func (h *FileHandler) GetChunks(c *gin.Context) {
	fileID := c.Param("fileId")
	if fileID == "" {
		h.handleError(c, http.StatusBadRequest, "File ID is required", nil)
		return
	}

	chunks, err := h.files.GetChunks(c.Request.Context(), fileID)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to get chunks", err)
		return
	}

	out := make([]gin.H, len(chunks))
	for i, ch := range chunks {
		out[i] = gin.H{
			"sectionIndex": ch.SectionIndex,
			"content":      ch.Content,
			"tokens":       ch.Tokens,
			"startOffset":  ch.StartOffset,
			"endOffset":    ch.EndOffset,
			"embedded":     ch.Embedding != nil,
		}
	}

	c.JSON(http.StatusOK, gin.H{"fileId": fileID, "chunks": out})
}

// GetEntities returns a file's extracted entities.
func (h *FileHandler) GetEntities(c *gin.Context) {
	fileID := c.Param("fileId")
	if fileID == "" {
		h.handleError(c, http.StatusBadRequest, "File ID is required", nil)
		return
	}

	entities, err := h.files.GetEntities(c.Request.Context(), fileID)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to get entities", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"fileId": fileID, "entities": entities})
}

// GetTaskStatus reports the state of a queued reprocess task.
func (h *FileHandler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	status, err := h.queue.GetTaskStatus(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, http.StatusNotFound, "Failed to get task status", err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// CancelTask removes a pending reprocess task from the queue.
func (h *FileHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	if err := h.queue.CancelTask(c.Request.Context(), taskID); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to cancel task", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"taskId":  taskID,
	})
}

func (h *FileHandler) handleError(c *gin.Context, status int, message string, err error) {
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
