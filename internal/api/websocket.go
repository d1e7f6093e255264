package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ooi-uploader/backend/internal/models"
)

// WebSocket message types for the ingest progress protocol
const (
	// Client -> Server messages
	MsgTypeWatch = "watch"
	MsgTypePing  = "ping"

	// Server -> Client messages
	MsgTypeProgress = "progress"
	MsgTypeComplete = "complete"
	MsgTypeError    = "error"
	MsgTypePong     = "pong"
)

// WSMessage is the envelope for all socket traffic.
type WSMessage struct {
	Type      string          `json:"type"`
	JobID     string          `json:"jobId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSJobUpdate is pushed while a watched ingest job is running.
type WSJobUpdate struct {
	JobID          string                 `json:"jobId"`
	Status         models.JobStatus       `json:"status"`
	Record         *models.MetadataRecord `json:"record,omitempty"`
	ProcessingInfo map[string]string      `json:"processingInfo,omitempty"`
	Warnings       []string               `json:"warnings,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

// WSErrorResponse reports a protocol-level failure.
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// IngestSocket streams ingest job progress over WebSocket. A client sends a
// watch message with a job ID and receives progress updates until the job
// finishes or the connection closes. One IngestSocket serves all connections.
type IngestSocket struct {
	handler  *Handler
	upgrader websocket.Upgrader
}

// NewIngestSocket creates a WebSocket handler bound to the API handler.
func NewIngestSocket(h *Handler) *IngestSocket {
	return &IngestSocket{
		handler: h,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// wsSession wraps one client connection. Watch goroutines and the read loop
// write concurrently, and gorilla allows only one writer at a time, so every
// write goes through the session's mutex.
type wsSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSession) send(msg WSMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		fmt.Printf("[WebSocket] Failed to send message: %v\n", err)
	}
}

func (s *wsSession) sendError(message, code string) {
	s.send(WSMessage{
		Type:      MsgTypeError,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSErrorResponse{
			Message: message,
			Code:    code,
		}),
	})
}

// HandleWebSocket upgrades the connection and serves the watch protocol.
// Watches run in their own goroutines so pings keep getting answered while a
// job is streaming; closing done stops them when the client goes away.
func (s *IngestSocket) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	fmt.Println("[WebSocket] Client connected for ingest progress")

	sess := &wsSession{conn: ws}
	done := make(chan struct{})
	defer close(done)

	sess.send(WSMessage{
		Type:      "connected",
		Timestamp: time.Now().UnixMilli(),
	})

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			sess.send(WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		case MsgTypeWatch:
			go s.watchJob(sess, msg.JobID, done)
		default:
			sess.sendError("Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	fmt.Println("[WebSocket] Client disconnected")
	return nil
}

// watchJob pushes job state every poll tick until the job finishes or the
// connection's read loop exits.
func (s *IngestSocket) watchJob(sess *wsSession, jobID string, done <-chan struct{}) {
	if jobID == "" {
		sess.sendError("jobId is required", "INVALID_PAYLOAD")
		return
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		job := s.handler.ingestManager.GetJob(jobID)
		if job == nil {
			sess.sendError("Ingest job not found: "+jobID, "JOB_NOT_FOUND")
			return
		}

		update := WSJobUpdate{
			JobID:          job.ID,
			Status:         job.Status,
			Record:         job.Record,
			ProcessingInfo: job.ProcessingInfo,
			Warnings:       job.Warnings,
			Error:          job.Error,
		}

		isDone := job.Status == models.JobStatusComplete || job.Status == models.JobStatusError

		msgType := MsgTypeProgress
		if isDone {
			msgType = MsgTypeComplete
		}

		sess.send(WSMessage{
			Type:      msgType,
			JobID:     jobID,
			Timestamp: time.Now().UnixMilli(),
			Payload:   mustJSON(update),
		})

		if isDone {
			return
		}
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
