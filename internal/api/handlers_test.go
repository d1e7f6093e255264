package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ooi-uploader/backend/internal/dataset"
	"github.com/ooi-uploader/backend/internal/echogram"
	"github.com/ooi-uploader/backend/internal/ingest"
	"github.com/ooi-uploader/backend/internal/models"
	"github.com/ooi-uploader/backend/internal/storage"
	"github.com/ooi-uploader/backend/internal/testutil"
	"github.com/ooi-uploader/backend/internal/upload"
)

// memRecords is an in-memory record store for handler tests.
type memRecords struct {
	mu      sync.Mutex
	records []*models.MetadataRecord
}

func (m *memRecords) Insert(rec *models.MetadataRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memRecords) Recent(limit int) ([]*models.MetadataRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.records
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRecords) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func newTestHandler(t *testing.T) (*Handler, *memRecords) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	records := &memRecords{}
	ingestMgr := ingest.NewManager(echogram.NewCorrelator(), records)
	uploadMgr := upload.NewManager(store)

	registry := &models.InstrumentRegistry{
		Instruments: []models.Instrument{
			{
				Series: "ZPLSC-C",
				Name:   "Bio-acoustic Sonar (Coastal)",
				FilePatterns: []string{
					`Bioacoustic_Echogram_[0-9]{8}-[0-9]{8}_Calibrated_Sv.*\.nc`,
					`OOI-D[0-9]{8}-T[0-9]{6}\.nc`,
				},
			},
		},
	}

	return NewHandler(store, ingestMgr, uploadMgr, records, registry, "test"), records
}

// datasetBytes encodes a dataset container to bytes via a temp file.
func datasetBytes(t *testing.T, d *dataset.Data) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.nc")
	require.NoError(t, dataset.Write(path, d))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestHandleHealth(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, h.HandleHealth(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	}
}

func TestFileUploadLifecycle(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	// Upload a file as base64 JSON
	payload := map[string]string{
		"name": "OOI-D20191020-T013835.nc",
		"data": base64.StdEncoding.EncodeToString([]byte("hello")),
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.HandleUploadFile(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "OOI-D20191020-T013835.nc", info.Name)
	assert.NotEmpty(t, info.Batch)

	// File appears in recent list
	req = httptest.NewRequest(http.MethodGet, "/api/files/recent", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	require.NoError(t, h.HandleRecentFiles(c))
	assert.Contains(t, rec.Body.String(), info.ID)

	// Get by ID
	req = httptest.NewRequest(http.MethodGet, "/api/files/"+info.ID, nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(info.ID)
	require.NoError(t, h.HandleGetFile(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Delete
	req = httptest.NewRequest(http.MethodDelete, "/api/files/"+info.ID, nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(info.ID)
	require.NoError(t, h.HandleDeleteFile(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCompanionUploadSharesBatch(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	uploadFile := func(name, batch string) *models.FileInfo {
		payload := map[string]string{
			"name":  name,
			"data":  base64.StdEncoding.EncodeToString([]byte("x")),
			"batch": batch,
		}
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/api/files/upload", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		require.NoError(t, h.HandleUploadFile(c))
		require.Equal(t, http.StatusCreated, rec.Code)
		var info models.FileInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		return &info
	}

	echogramInfo := uploadFile("Bioacoustic_Echogram_20191020-20191021_Calibrated_Sv_Averaged.nc", "")
	companion := uploadFile("OOI-D20191020-T013835.nc", echogramInfo.Batch)

	assert.Equal(t, echogramInfo.Batch, companion.Batch)

	p1, err := h.store.FilePath(echogramInfo.ID)
	require.NoError(t, err)
	p2, err := h.store.FilePath(companion.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(p1), filepath.Dir(p2))
}

func TestUploadFileValidation(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	body := []byte(`{"name":"","data":""}`)
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.HandleUploadFile(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestUploadRejectsUncoveredFileName(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	payload := map[string]string{
		"name": "vacation_photos.zip",
		"data": base64.StdEncoding.EncodeToString([]byte("x")),
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.HandleUploadFile(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	// Chunked completion applies the same registry check
	body = []byte(`{"uploadId":"u1","name":"vacation_photos.zip","totalChunks":1}`)
	req = httptest.NewRequest(http.MethodPost, "/api/files/upload/complete", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)

	err = h.HandleCompleteUpload(c)
	require.Error(t, err)
	apiErr, ok = err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestUploadFileSaveError(t *testing.T) {
	e := echo.New()
	mock := testutil.NewMockStore()
	mock.FailSave = true

	records := &memRecords{}
	h := NewHandler(mock, ingest.NewManager(echogram.NewCorrelator(), records),
		upload.NewManager(mock), records, nil, "test")

	payload := map[string]string{
		"name": "broken.nc",
		"data": base64.StdEncoding.EncodeToString([]byte("x")),
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.HandleUploadFile(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, 0, mock.FileCount())
}

func TestChunkedUploadComplete(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	uploadID := "upload-1"
	chunks := [][]byte{[]byte("first "), []byte("second")}

	for i, chunk := range chunks {
		payload := map[string]interface{}{
			"uploadId":   uploadID,
			"chunkIndex": i,
			"data":       base64.StdEncoding.EncodeToString(chunk),
		}
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/api/files/upload/chunk", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		require.NoError(t, h.HandleUploadChunk(c))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	payload := map[string]interface{}{
		"uploadId":    uploadID,
		"name":        "OOI-D20191020-T013835.nc",
		"totalChunks": 2,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload/complete", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.HandleCompleteUpload(c))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	var job *upload.Job
	for i := 0; i < 100; i++ {
		j, ok := h.uploadManager.GetJob(resp.JobID)
		require.True(t, ok)
		if j.Status == upload.StatusComplete || j.Status == upload.StatusError {
			job = j
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NotNil(t, job, "upload job did not finish in time")
	require.Equal(t, upload.StatusComplete, job.Status, "job error: %s", job.Error)
	require.NotNil(t, job.FileInfo)

	path, err := h.store.FilePath(job.FileInfo.ID)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first second", string(data))
}

func TestIngestLifecycle(t *testing.T) {
	e := echo.New()
	h, records := newTestHandler(t)

	// Flattened echogram with first ping at 2019-10-20T01:38:35Z (Unix seconds)
	echogramData := datasetBytes(t, &dataset.Data{
		Vars: map[string][]float64{"ping_time": {1571535515.0}},
	})
	// Hourly companion carrying the provenance group
	companionData := datasetBytes(t, &dataset.Data{
		Groups: map[string]dataset.GroupData{
			"Provenance": {
				Attrs: map[string]string{
					"src_filenames":               "/data/zplsc/ce04osps/2019/10/20/OOI-D20191020-T013835.raw",
					"conversion_software_name":    "echopype",
					"conversion_software_version": "0.4.1",
					"conversion_time":             "2019-10-21T04:00:00Z",
				},
			},
		},
	})

	echogramInfo, err := h.store.SaveBytes("", "Bioacoustic_Echogram_20191020-20191021_Calibrated_Sv_Averaged.nc", echogramData)
	require.NoError(t, err)
	_, err = h.store.SaveBytes(echogramInfo.Batch, "OOI-D20191020-T013835.nc", companionData)
	require.NoError(t, err)

	body := []byte(fmt.Sprintf(`{"fileId":%q}`, echogramInfo.ID))
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.HandleStartIngest(c))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started models.IngestJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started.ID)

	var job *models.IngestJob
	for i := 0; i < 100; i++ {
		req = httptest.NewRequest(http.MethodGet, "/api/ingest/"+started.ID, nil)
		rec = httptest.NewRecorder()
		c = e.NewContext(req, rec)
		c.SetParamNames("jobId")
		c.SetParamValues(started.ID)
		require.NoError(t, h.HandleIngestStatus(c))

		var j models.IngestJob
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &j))
		if j.Status == models.JobStatusComplete || j.Status == models.JobStatusError {
			job = &j
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NotNil(t, job, "ingest job did not finish in time")
	require.Equal(t, models.JobStatusComplete, job.Status, "job error: %s", job.Error)
	require.NotNil(t, job.Record)
	assert.Equal(t, "echopype", job.Record.Provenance.GeneratorName)

	// The record made it into the store and the records endpoint
	n, err := records.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	req = httptest.NewRequest(http.MethodGet, "/api/records", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	require.NoError(t, h.HandleRecentRecords(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
	assert.Contains(t, rec.Body.String(), "echopype")
}

func TestIngestUnknownFile(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	body := []byte(`{"fileId":"no-such-file"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.HandleStartIngest(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestRecordsMsgpack(t *testing.T) {
	e := echo.New()
	h, records := newTestHandler(t)

	require.NoError(t, records.Insert(&models.MetadataRecord{
		EchogramPath:      "/tmp/echogram.nc",
		InternalTimestamp: 3780114000.5,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/records/msgpack", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.HandleRecentRecordsMsgpack(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestListInstruments(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/instruments", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.HandleListInstruments(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ZPLSC-C")
}
