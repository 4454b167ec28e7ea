package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"coinsage/internal/logging"
	"coinsage/internal/rag"
	"coinsage/internal/services"
	"coinsage/internal/session"
)

// Greeting is sent to every client immediately after the upgrade.
const Greeting = "Connected. Ask your question."

// WebSocketHandler runs interactive question/answer sessions. Each
// connection gets its own bounded conversation memory, so follow-up
// questions are answered with the recent exchange in context.
type WebSocketHandler struct {
	connManager *services.ConnectionManager
	pipeline    *rag.Pipeline
	metrics     *services.Metrics
	historyMax  int
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(connManager *services.ConnectionManager, pipeline *rag.Pipeline, metrics *services.Metrics, historyMax int) *WebSocketHandler {
	return &WebSocketHandler{
		connManager: connManager,
		pipeline:    pipeline,
		metrics:     metrics,
		historyMax:  historyMax,
	}
}

// Handle serves one WebSocket connection until the client disconnects.
func (h *WebSocketHandler) Handle(c *websocket.Conn) {
	connID := uuid.New().String()
	logger := logging.WithCorrelation(connID)

	h.connManager.Add(&services.Connection{
		ID:        connID,
		Conn:      c,
		CreatedAt: time.Now(),
	})
	h.metrics.RecordWebSocketConnect()
	defer func() {
		h.connManager.Remove(connID)
		h.metrics.RecordWebSocketDisconnect()
		logger.Info("websocket session closed")
	}()

	logger.Info("websocket session opened")

	if err := c.WriteMessage(websocket.TextMessage, []byte(Greeting)); err != nil {
		logger.Warn("failed to send greeting", "error", err)
		return
	}
	h.metrics.RecordWebSocketMessage("outbound")

	memory := session.NewMemory(h.historyMax)

	for {
		msgType, payload, err := c.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.metrics.RecordWebSocketMessage("inbound")

		question := strings.TrimSpace(string(payload))
		if question == "" {
			continue
		}

		answer := h.pipeline.Answer(context.Background(), question, memory.Turns())
		memory.Update(question, answer)

		if err := c.WriteMessage(websocket.TextMessage, []byte(answer)); err != nil {
			logger.Warn("failed to send answer", "error", err)
			return
		}
		h.metrics.RecordWebSocketMessage("outbound")
	}
}
