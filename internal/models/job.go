package models

// JobStatus represents the status of an ingest job.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusCorrelating JobStatus = "correlating"
	JobStatusComplete    JobStatus = "complete"
	JobStatusError       JobStatus = "error"
)

// IngestJob tracks one echogram correlation run from submission to completion.
type IngestJob struct {
	ID               string            `json:"id"`
	FileID           string            `json:"fileId,omitempty"`
	EchogramPath     string            `json:"echogramPath"`
	Status           JobStatus         `json:"status"`
	Record           *MetadataRecord   `json:"record,omitempty"`
	ProcessingInfo   map[string]string `json:"processingInfo,omitempty"`
	Error            string            `json:"error,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"`
	ProcessingTimeMs int64             `json:"processingTimeMs,omitempty"`
	StartTime        int64             `json:"startTime,omitempty"` // Unix ms
	EndTime          int64             `json:"endTime,omitempty"`   // Unix ms
}

// NewIngestJob creates a new IngestJob in pending status.
func NewIngestJob(id, fileID, echogramPath string) *IngestJob {
	return &IngestJob{
		ID:           id,
		FileID:       fileID,
		EchogramPath: echogramPath,
		Status:       JobStatusPending,
	}
}
