// Package upload runs the async side of chunked file uploads: chunk
// assembly and optional gzip decompression, tracked as jobs.
package upload

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ooi-uploader/backend/internal/models"
)

// Status represents the upload processing status.
type Status string

const (
	StatusProcessing    Status = "processing"
	StatusAssembling    Status = "assembling"
	StatusDecompressing Status = "decompressing"
	StatusComplete      Status = "complete"
	StatusError         Status = "error"
)

// Job represents an async upload processing job.
type Job struct {
	ID             string           `json:"id"`
	UploadID       string           `json:"uploadId"`
	Batch          string           `json:"batch,omitempty"`
	FileName       string           `json:"fileName"`
	TotalChunks    int              `json:"totalChunks"`
	OriginalSize   int64            `json:"originalSize"`
	CompressedSize int64            `json:"compressedSize"`
	Encoding       string           `json:"encoding"`
	Status         Status           `json:"status"`
	Progress       float64          `json:"progress"`
	FileInfo       *models.FileInfo `json:"fileInfo,omitempty"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
}

// Store defines the interface needed from the storage layer.
type Store interface {
	CompleteChunkedUpload(uploadID, batch, name string, totalChunks int) (*models.FileInfo, error)
	FilePath(id string) (string, error)
}

// Manager handles async upload processing.
type Manager struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	store Store
}

// NewManager creates a new upload processing manager.
func NewManager(store Store) *Manager {
	return &Manager{
		jobs:  make(map[string]*Job),
		store: store,
	}
}

// StartJob begins async processing of a completed chunked upload.
func (m *Manager) StartJob(uploadID, batch, fileName string, totalChunks int, originalSize int64, encoding string) *Job {
	job := &Job{
		ID:           uuid.New().String(),
		UploadID:     uploadID,
		Batch:        batch,
		FileName:     fileName,
		TotalChunks:  totalChunks,
		OriginalSize: originalSize,
		Encoding:     encoding,
		Status:       StatusProcessing,
		CreatedAt:    time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	go m.processJob(job)

	return job
}

// GetJob returns a snapshot of a job by ID. processJob keeps mutating the
// stored job under the manager's lock, so callers get a copy they can read
// without holding it.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

func (m *Manager) processJob(job *Job) {
	m.updateJobStatus(job, StatusAssembling, 20)

	info, err := m.store.CompleteChunkedUpload(job.UploadID, job.Batch, job.FileName, job.TotalChunks)
	if err != nil {
		m.markJobError(job, fmt.Sprintf("failed to assemble chunks: %v", err))
		return
	}

	if job.Encoding == "gzip" {
		m.updateJobStatus(job, StatusDecompressing, 60)
		if err := m.decompressFile(job, info); err != nil {
			m.markJobError(job, fmt.Sprintf("failed to decompress %s: %v", info.Name, err))
			return
		}
	}

	m.mu.Lock()
	job.FileInfo = info
	job.Status = StatusComplete
	job.Progress = 100
	now := time.Now()
	job.CompletedAt = &now
	m.mu.Unlock()
}

// decompressFile replaces the assembled file with its gzip-decompressed
// content, validating the expected original size when one was declared.
func (m *Manager) decompressFile(job *Job, info *models.FileInfo) error {
	path, err := m.store.FilePath(info.ID)
	if err != nil {
		return err
	}

	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	reader, err := gzip.NewReader(in)
	if err != nil {
		return err
	}
	defer reader.Close()

	tempPath := path + ".decompressing"
	out, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	written, err := io.Copy(out, reader)
	out.Close()
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("decompressing: %w", err)
	}

	if job.OriginalSize > 0 && written != job.OriginalSize {
		os.Remove(tempPath)
		return fmt.Errorf("decompressed size mismatch: got %d bytes, expected %d", written, job.OriginalSize)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}

	info.Size = written
	return nil
}

func (m *Manager) updateJobStatus(job *Job, status Status, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Status = status
	job.Progress = progress
}

func (m *Manager) markJobError(job *Job, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Status = StatusError
	job.Error = errMsg
	now := time.Now()
	job.CompletedAt = &now
}

// CleanupOldJobs removes completed or failed jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.Status == StatusComplete || job.Status == StatusError {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(m.jobs, id)
			}
		}
	}
}
