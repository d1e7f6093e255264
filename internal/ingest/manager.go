// Package ingest tracks echogram correlation runs as jobs: one job takes a
// single echogram path through the correlator and persists the resulting
// metadata record.
package ingest

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ooi-uploader/backend/internal/echogram"
	"github.com/ooi-uploader/backend/internal/models"
	"github.com/ooi-uploader/backend/internal/particle"
)

// MaxJobs limits tracked jobs to prevent unbounded growth.
const MaxJobs = 50

// JobMaxAge is how long finished jobs are kept before cleanup.
const JobMaxAge = 30 * time.Minute

// RecordStore persists assembled metadata records.
type RecordStore interface {
	Insert(rec *models.MetadataRecord) error
}

// Manager runs and tracks ingest jobs.
type Manager struct {
	mu         sync.RWMutex
	jobs       map[string]*models.IngestJob
	correlator *echogram.Correlator
	records    RecordStore
}

// NewManager creates a manager that correlates with c and persists to records.
func NewManager(c *echogram.Correlator, records RecordStore) *Manager {
	return &Manager{
		jobs:       make(map[string]*models.IngestJob),
		correlator: c,
		records:    records,
	}
}

// StartJob begins correlating the echogram at path in the background.
func (m *Manager) StartJob(fileID, path string) *models.IngestJob {
	m.cleanupIfNeeded()

	job := models.NewIngestJob(uuid.New().String(), fileID, path)
	job.StartTime = time.Now().UnixMilli()

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	go m.run(job.ID, path)

	return m.snapshot(job.ID)
}

// GetJob returns a copy of the job, or nil if unknown.
func (m *Manager) GetJob(id string) *models.IngestJob {
	return m.snapshot(id)
}

func (m *Manager) run(id, path string) {
	defer func() {
		if r := recover(); r != nil {
			m.fail(id, fmt.Sprintf("correlation panicked: %v", r))
		}
	}()

	m.mu.Lock()
	if job, ok := m.jobs[id]; ok {
		job.Status = models.JobStatusCorrelating
	}
	m.mu.Unlock()

	// Per-run correlator copy so warnings land on this job.
	c := *m.correlator
	c.Warnf = func(format string, args ...any) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if job, ok := m.jobs[id]; ok {
			job.Warnings = append(job.Warnings, fmt.Sprintf(format, args...))
		}
	}

	h := particle.NewCollector()
	if err := c.Parse(path, h); err != nil {
		m.fail(id, err.Error())
		return
	}

	rec := h.Records[0]
	if err := m.records.Insert(rec); err != nil {
		m.fail(id, fmt.Sprintf("storing record: %v", err))
		return
	}

	info := make(map[string]string, len(h.Info))
	for k, v := range h.Info {
		info[string(k)] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = models.JobStatusComplete
		job.Record = rec
		job.ProcessingInfo = info
		job.EndTime = time.Now().UnixMilli()
		job.ProcessingTimeMs = job.EndTime - job.StartTime
	}
}

func (m *Manager) fail(id, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = models.JobStatusError
		job.Error = msg
		job.EndTime = time.Now().UnixMilli()
		job.ProcessingTimeMs = job.EndTime - job.StartTime
	}
}

// snapshot returns a copy so callers never share the tracked struct.
func (m *Manager) snapshot(id string) *models.IngestJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UnixMilli() - maxAge.Milliseconds()
	for id, job := range m.jobs {
		done := job.Status == models.JobStatusComplete || job.Status == models.JobStatusError
		if done && job.EndTime > 0 && job.EndTime <= cutoff {
			delete(m.jobs, id)
		}
	}
}

func (m *Manager) cleanupIfNeeded() {
	m.mu.RLock()
	n := len(m.jobs)
	m.mu.RUnlock()
	if n >= MaxJobs {
		m.CleanupOldJobs(JobMaxAge)
	}
}
