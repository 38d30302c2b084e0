package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// upgrader with reasonable buffer defaults. Origin checking follows the
// server's CORS origin setting.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BatchRequest is a batch detection request sent over the WebSocket.
// Images are base64-encoded by encoding/json on the wire.
type BatchRequest struct {
	Type   string   `json:"type"` // "batch"
	Images [][]byte `json:"images"`
	Kinds  string   `json:"kinds,omitempty"` // comma-separated
}

// BatchMessage is a streamed per-image update or terminal message.
type BatchMessage struct {
	Type      string          `json:"type"`   // "progress", "completed", "error"
	Status    string          `json:"status"` // "processing", "done", "failed"
	Index     int             `json:"index,omitempty"`
	Completed int             `json:"completed"`
	Total     int             `json:"total"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// batchWebSocketHandler streams per-image progress for batch detection.
func (s *Server) batchWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Keep the connection alive while a long batch runs.
	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType != websocket.TextMessage {
			continue
		}
		s.handleBatchMessage(r.Context(), conn, data)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}

// handleBatchMessage decodes one batch request and streams its results.
func (s *Server) handleBatchMessage(ctx context.Context, conn *websocket.Conn, data []byte) {
	var req BatchRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Type != "batch" {
		s.sendBatchMessage(conn, BatchMessage{Type: "error", Status: "failed", Error: "invalid batch request"})
		return
	}
	if len(req.Images) == 0 {
		s.sendBatchMessage(conn, BatchMessage{Type: "error", Status: "failed", Error: "no images provided"})
		return
	}

	kinds, err := parseKinds(req.Kinds)
	if err != nil {
		s.sendBatchMessage(conn, BatchMessage{Type: "error", Status: "failed", Error: err.Error()})
		return
	}

	total := len(req.Images)
	completed := 0
	for i, raw := range req.Images {
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			completed++
			s.sendBatchMessage(conn, BatchMessage{
				Type: "progress", Status: "failed", Index: i,
				Completed: completed, Total: total,
				Error: "invalid image format",
			})
			continue
		}

		det, err := s.detector.Detect(ctx, img, kinds...)
		completed++
		msg := BatchMessage{Type: "progress", Index: i, Completed: completed, Total: total}
		if err != nil {
			msg.Status = "failed"
			msg.Error = err.Error()
		} else {
			msg.Status = "processing"
			if encoded, err := json.Marshal(det); err == nil {
				msg.Result = encoded
			}
		}
		s.sendBatchMessage(conn, msg)
	}

	s.sendBatchMessage(conn, BatchMessage{Type: "completed", Status: "done", Completed: completed, Total: total})
}

func (s *Server) sendBatchMessage(conn *websocket.Conn, msg BatchMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to write WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
