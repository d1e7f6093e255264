package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ooi-uploader/backend/internal/ingest"
	"github.com/ooi-uploader/backend/internal/models"
	"github.com/ooi-uploader/backend/internal/storage"
	"github.com/ooi-uploader/backend/internal/upload"
)

// RecordReader reads back persisted metadata records.
type RecordReader interface {
	Recent(limit int) ([]*models.MetadataRecord, error)
	Count() (int, error)
}

// Handler handles API requests.
type Handler struct {
	store         storage.Store
	ingestManager *ingest.Manager
	uploadManager *upload.Manager
	records       RecordReader
	registry      *models.InstrumentRegistry
	version       string
}

// NewHandler creates a new API handler.
func NewHandler(store storage.Store, ingestMgr *ingest.Manager, uploadMgr *upload.Manager, records RecordReader, registry *models.InstrumentRegistry, version string) *Handler {
	return &Handler{
		store:         store,
		ingestManager: ingestMgr,
		uploadManager: uploadMgr,
		records:       records,
		registry:      registry,
		version:       version,
	}
}

// acceptedName reports whether a configured instrument covers the file name.
// An empty registry accepts everything so a missing instruments.yaml does not
// block uploads.
func (h *Handler) acceptedName(name string) bool {
	if h.registry == nil || len(h.registry.Instruments) == 0 {
		return true
	}
	return h.registry.Accepts(name)
}

// HandleHealth returns server health status.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	})
}

// HandleUploadFile accepts a file as base64 JSON and saves it to storage.
// Passing the batch of a previously uploaded file stores the new file next
// to it, which is how hourly companion files end up beside their echogram.
func (h *Handler) HandleUploadFile(c echo.Context) error {
	var req struct {
		Name  string `json:"name"`
		Data  string `json:"data"` // Base64-encoded file content
		Batch string `json:"batch,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if req.Name == "" || req.Data == "" {
		return NewBadRequestError("name and data are required", nil)
	}

	if !h.acceptedName(req.Name) {
		return NewBadRequestError(fmt.Sprintf("no configured instrument accepts file %q", req.Name), nil)
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.SaveBytes(req.Batch, req.Name, decoded)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleUploadChunk accepts a single chunk of a file as base64 JSON.
func (h *Handler) HandleUploadChunk(c echo.Context) error {
	var req struct {
		UploadID   string `json:"uploadId"`
		ChunkIndex int    `json:"chunkIndex"`
		Data       string `json:"data"` // Base64-encoded chunk
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if req.UploadID == "" || req.Data == "" {
		return NewBadRequestError("uploadId and data are required", nil)
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if err := h.store.SaveChunk(req.UploadID, req.ChunkIndex, bytes.NewReader(decoded)); err != nil {
		return NewInternalError("failed to save chunk", err)
	}

	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload starts async processing of uploaded chunks.
// Returns immediately with a job ID for tracking progress via SSE.
func (h *Handler) HandleCompleteUpload(c echo.Context) error {
	var req struct {
		UploadID     string `json:"uploadId"`
		Name         string `json:"name"`
		Batch        string `json:"batch,omitempty"`
		TotalChunks  int    `json:"totalChunks"`
		OriginalSize int64  `json:"originalSize"`
		Encoding     string `json:"encoding"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if req.UploadID == "" || req.Name == "" || req.TotalChunks <= 0 {
		return NewBadRequestError("uploadId, name, and totalChunks are required", nil)
	}

	if !h.acceptedName(req.Name) {
		return NewBadRequestError(fmt.Sprintf("no configured instrument accepts file %q", req.Name), nil)
	}

	job := h.uploadManager.StartJob(
		req.UploadID,
		req.Batch,
		req.Name,
		req.TotalChunks,
		req.OriginalSize,
		req.Encoding,
	)

	fmt.Printf("[HandleCompleteUpload] Started async upload job %s for %s\n", job.ID, req.Name)

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// HandleUploadJobStream streams upload processing progress via Server-Sent Events.
func (h *Handler) HandleUploadJobStream(c echo.Context) error {
	jobID := c.Param("jobId")

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Response().WriteHeader(http.StatusOK)

	job, ok := h.uploadManager.GetJob(jobID)
	if !ok {
		data, _ := json.Marshal(map[string]string{"error": "job not found"})
		fmt.Fprintf(c.Response(), "data: %s\n\n", data)
		c.Response().Flush()
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-ticker.C:
			job, ok = h.uploadManager.GetJob(jobID)
			if !ok {
				data, _ := json.Marshal(map[string]string{"error": "job not found"})
				fmt.Fprintf(c.Response(), "data: %s\n\n", data)
				c.Response().Flush()
				return nil
			}

			data, err := json.Marshal(map[string]interface{}{
				"jobId":    job.ID,
				"status":   job.Status,
				"progress": job.Progress,
				"fileInfo": job.FileInfo,
				"error":    job.Error,
			})
			if err != nil {
				continue
			}

			fmt.Fprintf(c.Response(), "data: %s\n\n", data)
			c.Response().Flush()

			if job.Status == upload.StatusComplete || job.Status == upload.StatusError {
				return nil
			}
		}
	}
}

// HandleRecentFiles returns a list of recently uploaded files.
func (h *Handler) HandleRecentFiles(c echo.Context) error {
	files, err := h.store.List(20)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file.
func (h *Handler) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile removes a file from storage.
func (h *Handler) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("file", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleStartIngest starts an ingest job for an uploaded echogram.
func (h *Handler) HandleStartIngest(c echo.Context) error {
	var req struct {
		FileID string `json:"fileId"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if req.FileID == "" {
		return NewBadRequestError("fileId is required", nil)
	}

	path, err := h.store.FilePath(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}

	job := h.ingestManager.StartJob(req.FileID, path)

	fmt.Printf("[HandleStartIngest] Started ingest job %s for %s\n", job.ID, path)

	return c.JSON(http.StatusAccepted, job)
}

// HandleIngestStatus returns the status of an ingest job.
func (h *Handler) HandleIngestStatus(c echo.Context) error {
	id := c.Param("jobId")
	job := h.ingestManager.GetJob(id)
	if job == nil {
		return NewNotFoundError("ingest job", id)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleRecentRecords returns recently ingested metadata records.
func (h *Handler) HandleRecentRecords(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	records, err := h.records.Recent(limit)
	if err != nil {
		return NewInternalError("failed to query records", err)
	}

	total, err := h.records.Count()
	if err != nil {
		return NewInternalError("failed to count records", err)
	}

	if records == nil {
		records = []*models.MetadataRecord{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   total,
	})
}

// HandleRecentRecordsMsgpack returns recent records in MessagePack format.
// MessagePack is 30-50% smaller than JSON for record data.
func (h *Handler) HandleRecentRecordsMsgpack(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = 100
	}

	records, err := h.records.Recent(limit)
	if err != nil {
		return NewInternalError("failed to query records", err)
	}

	total, err := h.records.Count()
	if err != nil {
		return NewInternalError("failed to count records", err)
	}

	data, err := msgpack.Marshal(map[string]interface{}{
		"records": records,
		"total":   total,
	})
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleListInstruments returns the configured instrument registry.
func (h *Handler) HandleListInstruments(c echo.Context) error {
	if h.registry == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"instruments": []interface{}{}})
	}
	return c.JSON(http.StatusOK, h.registry)
}
