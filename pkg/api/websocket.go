package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"heart-audio/pkg/models"
)

const (
	statusPollInterval = 500 * time.Millisecond

	// wsFrameOverhead covers the JSON envelope around the base64 payload.
	wsFrameOverhead = 64 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsRequest is an inbound frame. Data arrives base64 encoded.
type wsRequest struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Data      []byte `json:"data,omitempty"`
}

type WebSocketMessage struct {
	Type       string            `json:"type"`
	AnalysisID string            `json:"analysis_id,omitempty"`
	Status     string            `json:"status,omitempty"`
	Error      string            `json:"error,omitempty"`
	Analysis   *analysisResponse `json:"analysis,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg WebSocketMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	if limit := wsReadLimit(h.cfg.MaxUploadBytes); limit > 0 {
		conn.SetReadLimit(limit)
	}

	ws := &wsConn{conn: conn}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var monitors sync.WaitGroup
	defer monitors.Wait()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Debug("WebSocket read failed")
			}
			cancel()
			return
		}

		switch req.Type {
		case "analyze":
			h.handleAnalyze(ctx, ws, &req, &monitors)
		case "ping":
			h.sendMessage(ws, WebSocketMessage{Type: "pong"})
		default:
			h.sendMessage(ws, WebSocketMessage{Type: "error", Error: "unknown message type"})
		}
	}
}

// wsReadLimit sizes the largest accepted frame for an upload of maxUpload bytes
// once base64 encoded.
func wsReadLimit(maxUpload int64) int64 {
	if maxUpload <= 0 {
		return 0
	}
	return (maxUpload+2)/3*4 + wsFrameOverhead
}

func (h *Handlers) handleAnalyze(ctx context.Context, ws *wsConn, req *wsRequest, monitors *sync.WaitGroup) {
	if req.UserID == "" {
		h.sendMessage(ws, WebSocketMessage{Type: "error", Error: "user_id is required"})
		return
	}

	filename := req.Filename
	if filename == "" {
		filename = "audio.m4a"
	}

	sub := models.NewAudioSubmission(req.UserID, req.SessionID, filename, req.Data)
	h.logger.WithFields(logrus.Fields{
		"analysis_id": sub.ID,
		"user_id":     sub.UserID,
		"size":        sub.Size,
	}).Info("WebSocket analysis requested")

	msg, err := h.pipeline.Submit(sub)
	if err != nil {
		h.sendMessage(ws, WebSocketMessage{Type: "error", AnalysisID: sub.ID, Error: err.Error()})
		return
	}

	h.sendMessage(ws, WebSocketMessage{
		Type:       "analysis_received",
		AnalysisID: sub.ID,
		Status:     string(models.StatusPending),
	})

	monitors.Add(1)
	go func() {
		defer monitors.Done()
		h.monitorAnalysis(ctx, ws, msg)
	}()
}

// monitorAnalysis reports status changes until the message reaches a terminal state.
func (h *Handlers) monitorAnalysis(ctx context.Context, ws *wsConn, msg *models.PipelineMessage) {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	id := msg.Analysis.ID
	var last models.ProcessingStatus

	for {
		select {
		case <-ctx.Done():
			return

		case <-msg.Done():
			if msg.Error != nil {
				h.sendMessage(ws, WebSocketMessage{
					Type:       "analysis_failed",
					AnalysisID: id,
					Status:     string(models.StatusFailed),
					Error:      msg.Error.Error(),
				})
				return
			}
			resp := toResponse(msg.Analysis.Clone(), true)
			h.sendMessage(ws, WebSocketMessage{
				Type:       "analysis_complete",
				AnalysisID: id,
				Status:     string(models.StatusCompleted),
				Analysis:   &resp,
			})
			return

		case <-ticker.C:
			a, err := h.memory.GetAnalysis(id)
			if err != nil || a.Status == last || a.Status.Terminal() {
				continue
			}
			last = a.Status
			h.sendMessage(ws, WebSocketMessage{
				Type:       "status_update",
				AnalysisID: id,
				Status:     string(a.Status),
			})
		}
	}
}

func (h *Handlers) sendMessage(ws *wsConn, msg WebSocketMessage) {
	if err := ws.send(msg); err != nil {
		h.logger.WithError(err).WithField("type", msg.Type).Debug("WebSocket write failed")
	}
}
