// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
)

// Options controls optional route behavior.
type Options struct {
	AllowFileDeletion bool
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, h *Handler, opts Options) {
	// Health check
	e.GET("/health", h.HandleHealth)

	// File upload routes
	fileGroup := e.Group("/api/files")
	fileGroup.POST("/upload", h.HandleUploadFile)
	fileGroup.POST("/upload/chunk", h.HandleUploadChunk)
	fileGroup.POST("/upload/complete", h.HandleCompleteUpload)
	fileGroup.GET("/upload/jobs/:jobId/stream", h.HandleUploadJobStream)
	fileGroup.GET("/recent", h.HandleRecentFiles)
	fileGroup.GET("/:id", h.HandleGetFile)
	if opts.AllowFileDeletion {
		fileGroup.DELETE("/:id", h.HandleDeleteFile)
	}

	// Ingest routes
	ingestGroup := e.Group("/api/ingest")
	ingestGroup.POST("", h.HandleStartIngest)
	ingestGroup.GET("/:jobId", h.HandleIngestStatus)

	// Metadata record routes
	recordGroup := e.Group("/api/records")
	recordGroup.GET("", h.HandleRecentRecords)
	recordGroup.GET("/msgpack", h.HandleRecentRecordsMsgpack)

	// Instrument registry
	e.GET("/api/instruments", h.HandleListInstruments)

	// WebSocket ingest progress stream
	ws := NewIngestSocket(h)
	e.GET("/api/ws/ingest", ws.HandleWebSocket)
}
