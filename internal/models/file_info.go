package models

import "time"

// FileInfo represents metadata about an uploaded file.
//
// Files are stored under their original names inside a batch directory:
// an echogram and its hourly companion files must share a batch so the
// correlator can find the companions next to the echogram.
type FileInfo struct {
	ID         string    `json:"id"`
	Batch      string    `json:"batch"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "ingesting", "ingested", "error"
}
