package rag

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"coinsage/internal/logging"
	"coinsage/internal/models"
	"coinsage/internal/prompt"
	"coinsage/internal/services"
)

// Fallback is the fixed reply returned whenever the query pipeline
// fails internally. Callers always get a non-empty answer.
const Fallback = "Sorry, I encountered an error while generating a response. Please try again."

// Retriever produces the bounded context set for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, kLexical, kVector int) (models.RetrievalResult, error)
}

// Generator produces a reply from a rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Reporter forwards internal errors to an external error-tracking
// sink so degraded answers stay observable.
type Reporter interface {
	Capture(err error)
}

// Pipeline sequences retrieve → compose → generate. It is the single
// boundary that converts internal errors into the fallback response;
// no component below it swallows errors.
type Pipeline struct {
	retriever Retriever
	composer  prompt.Composer
	generator Generator
	metrics   *services.Metrics
	reporter  Reporter
	topK      int
}

// NewPipeline wires the query pipeline. reporter may be nil when no
// error sink is configured. topK is the per-modality search depth.
func NewPipeline(retriever Retriever, composer prompt.Composer, generator Generator, metrics *services.Metrics, reporter Reporter, topK int) *Pipeline {
	return &Pipeline{
		retriever: retriever,
		composer:  composer,
		generator: generator,
		metrics:   metrics,
		reporter:  reporter,
		topK:      topK,
	}
}

// Answer runs the full query pipeline and never fails visibly: any
// internal error is recorded (metrics + error sink) and mapped to the
// fallback string.
func (p *Pipeline) Answer(ctx context.Context, question string, history []models.ConversationTurn) string {
	correlationID := uuid.New().String()
	logger := logging.WithCorrelation(correlationID)

	p.metrics.QueryRequests.Inc()
	timer := prometheus.NewTimer(p.metrics.QueryLatency)
	defer timer.ObserveDuration()

	logger.Info("running query", "question", question)

	result, err := p.retriever.Retrieve(ctx, question, p.topK, p.topK)
	if err != nil {
		return p.degrade(logger, "retrieve", err)
	}

	rendered := p.composer.Compose(question, result, history)

	reply, err := p.generator.Generate(ctx, rendered)
	if err != nil {
		return p.degrade(logger, "generate", err)
	}

	logger.Info("query answered", "context_documents", len(result.Documents))
	return reply
}

// degrade records a pipeline failure and returns the fallback reply.
func (p *Pipeline) degrade(logger *slog.Logger, stage string, err error) string {
	logger.Error("query pipeline failed", "stage", stage, "error", err)
	p.metrics.RecordQueryError(stage)
	if p.reporter != nil {
		p.reporter.Capture(err)
	}
	return Fallback
}
