package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/strang-ai/strang-backend/internal/jobs"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The extension connects from a chrome-extension:// origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient serializes writes to one websocket connection. The hub broadcasts
// from pipeline goroutines while the read loop answers pings, and gorilla
// connections do not allow concurrent writers.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsClient) Close() error {
	return c.conn.Close()
}

// StreamJobProgress handles GET /ws/job/:job_id
// Upgrades the connection, sends an initial snapshot so late subscribers
// resync immediately, then relays hub broadcasts until the client leaves.
func (h *JobHandler) StreamJobProgress(c *gin.Context) {
	jobID := c.Param("job_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	progress, ok := h.manager.GetProgress(jobID)
	if !ok {
		closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Job not found")
		_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	client := &wsClient{conn: conn}
	hub := h.manager.Hub()
	hub.Connect(client, jobID)
	defer func() {
		hub.Disconnect(client)
		_ = client.Close()
	}()

	if err := client.WriteJSON(jobs.ProgressMessage{
		Type:            jobs.MessageTypeConnected,
		JobID:           jobID,
		Status:          progress.Status,
		ProgressPercent: progress.ProgressPercent,
		CurrentStep:     progress.CurrentStep,
		Message:         progress.Message,
	}); err != nil {
		return
	}

	h.logger.Info("WebSocket subscriber connected",
		slog.String("job_id", jobID),
	)

	// Read loop: keep the connection alive and answer pings. Broadcasts
	// arrive through the hub on other goroutines.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if string(data) == "ping" {
			if err := client.WriteJSON(gin.H{"type": jobs.MessageTypePong}); err != nil {
				break
			}
		}
	}
}
