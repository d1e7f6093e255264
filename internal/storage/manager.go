// Package storage keeps uploaded echogram and companion files on the local
// filesystem, grouped into batch directories that preserve original names.
package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ooi-uploader/backend/internal/models"
)

// Store defines the interface for uploaded-file storage.
type Store interface {
	// Save stores a file under its original name inside batch; an empty
	// batch starts a new one.
	Save(batch, name string, r io.Reader) (*models.FileInfo, error)
	SaveBytes(batch, name string, data []byte) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	// FilePath returns the on-disk path of a stored file. The correlator
	// resolves companion files relative to this path's directory.
	FilePath(id string) (string, error)
	SaveChunk(uploadID string, chunkIndex int, r io.Reader) error
	CompleteChunkedUpload(uploadID, batch, name string, totalChunks int) (*models.FileInfo, error)
}

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
}

// NewLocalStore creates a new LocalStore rooted at uploadDir.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
	}, nil
}

// Save stores a file inside the given batch directory.
func (s *LocalStore) Save(batch, name string, r io.Reader) (*models.FileInfo, error) {
	if filepath.Base(name) != name || name == "." || name == "" {
		return nil, fmt.Errorf("invalid file name: %q", name)
	}
	if batch == "" {
		batch = uuid.New().String()
	} else if filepath.Base(batch) != batch || batch == "." {
		// Batch names come from clients too and are joined into the path,
		// so they get the same traversal check as file names.
		return nil, fmt.Errorf("invalid batch name: %q", batch)
	}

	dir := filepath.Join(s.uploadDir, batch)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating batch directory: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:         uuid.New().String(),
		Batch:      batch,
		Name:       name,
		Size:       size,
		UploadedAt: time.Now(),
		Status:     "uploaded",
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[info.ID] = info

	return info, nil
}

// SaveBytes stores an in-memory payload.
func (s *LocalStore) SaveBytes(batch, name string, data []byte) (*models.FileInfo, error) {
	return s.Save(batch, name, bytes.NewReader(data))
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}

	return info, nil
}

// List returns the most recently uploaded files.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.FileInfo
	for _, info := range s.files {
		list = append(list, info)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("file not found: %s", id)
	}

	path := filepath.Join(s.uploadDir, info.Batch, info.Name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// FilePath returns the absolute path to a stored file.
func (s *LocalStore) FilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return "", fmt.Errorf("file not found: %s", id)
	}

	return filepath.Join(s.uploadDir, info.Batch, info.Name), nil
}

// SaveChunk saves a single chunk of a chunked upload to a temporary location.
func (s *LocalStore) SaveChunk(uploadID string, chunkIndex int, r io.Reader) error {
	if filepath.Base(uploadID) != uploadID || uploadID == "." || uploadID == "" {
		return fmt.Errorf("invalid upload id: %q", uploadID)
	}

	chunkDir := filepath.Join(s.uploadDir, "chunks", uploadID)
	if err := os.MkdirAll(chunkDir, 0755); err != nil {
		return fmt.Errorf("creating chunk directory: %w", err)
	}

	path := filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", chunkIndex))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chunk file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("writing chunk: %w", err)
	}

	return nil
}

// CompleteChunkedUpload assembles all chunks into a final file in batch.
func (s *LocalStore) CompleteChunkedUpload(uploadID, batch, name string, totalChunks int) (*models.FileInfo, error) {
	if filepath.Base(uploadID) != uploadID || uploadID == "." || uploadID == "" {
		return nil, fmt.Errorf("invalid upload id: %q", uploadID)
	}

	chunkDir := filepath.Join(s.uploadDir, "chunks", uploadID)

	readers := make([]io.Reader, 0, totalChunks)
	files := make([]*os.File, 0, totalChunks)
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	for i := 0; i < totalChunks; i++ {
		f, err := os.Open(filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", i)))
		if err != nil {
			return nil, fmt.Errorf("opening chunk %d: %w", i, err)
		}
		files = append(files, f)
		readers = append(readers, f)
	}

	info, err := s.Save(batch, name, io.MultiReader(readers...))
	if err != nil {
		return nil, err
	}

	os.RemoveAll(chunkDir)
	return info, nil
}
