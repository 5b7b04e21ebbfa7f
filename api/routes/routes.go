package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/casewire/casefile-processor/api/handlers"
	"github.com/casewire/casefile-processor/api/middleware"
)

// SetupRoutes wires all API routes onto the engine.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	files := v1.Group("/files")
	{
		files.POST("/process", h.File.ProcessFile)
		files.POST("/reprocess", h.File.ReprocessFile)
		files.GET("/:fileId/status", h.File.GetStatus)
		files.GET("/:fileId/chunks", h.File.GetChunks)
		files.GET("/:fileId/entities", h.File.GetEntities)
	}

	tasks := v1.Group("/tasks")
	{
		tasks.GET("/:taskId", h.File.GetTaskStatus)
		tasks.DELETE("/:taskId", h.File.CancelTask)
	}

	v1.POST("/search", h.Search.Search)
}
