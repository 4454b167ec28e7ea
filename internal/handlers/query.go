package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"coinsage/internal/rag"
	"coinsage/internal/services"
)

// QueryRequest is the REST query payload.
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryResponse is the REST query reply. Response is always non-empty:
// pipeline failures surface as the fallback answer, not as errors.
type QueryResponse struct {
	Response string `json:"response"`
}

// QueryHandler serves single-shot questions over REST. REST queries are
// stateless; conversation history lives on the WebSocket path.
type QueryHandler struct {
	pipeline *rag.Pipeline
	metrics  *services.Metrics
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(pipeline *rag.Pipeline, metrics *services.Metrics) *QueryHandler {
	return &QueryHandler{pipeline: pipeline, metrics: metrics}
}

// Handle answers one question.
func (h *QueryHandler) Handle(c *fiber.Ctx) error {
	h.metrics.APIRequests.Inc()

	var req QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Question) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	answer := h.pipeline.Answer(c.Context(), req.Question, nil)
	return c.JSON(QueryResponse{Response: answer})
}
