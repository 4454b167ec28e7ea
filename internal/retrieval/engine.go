package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"coinsage/internal/models"
	"coinsage/internal/store"
)

// Engine combines lexical and vector search over the document store.
// Lexical search anchors on exact indicator terminology (symbols, RSI,
// MACD); vector search catches paraphrase and sentiment nuance. The
// union keeps either modality from silently starving recall.
type Engine struct {
	store    store.DocumentStore
	embedder Embedder
	maxDocs  int
}

// NewEngine creates a retrieval engine. maxDocs caps the merged result
// set; zero means no cap beyond kLexical+kVector.
func NewEngine(s store.DocumentStore, embedder Embedder, maxDocs int) *Engine {
	return &Engine{store: s, embedder: embedder, maxDocs: maxDocs}
}

// Retrieve runs both searches concurrently and merges their hits by
// document ID: lexical hits first in lexical order (lexical rank wins
// when a document appears in both), then vector-only hits in vector
// order, truncated to the cap.
//
// If one backend fails the survivor's results are returned alone;
// retrieval only fails when both modalities fail.
func (e *Engine) Retrieve(ctx context.Context, query string, kLexical, kVector int) (models.RetrievalResult, error) {
	var wg sync.WaitGroup
	var lexical, vector []models.ScoredDocument
	var lexicalErr, vectorErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		lexical, lexicalErr = e.store.LexicalSearch(ctx, query, kLexical)
	}()
	go func() {
		defer wg.Done()
		embedding, err := e.embedder.Embed(ctx, query)
		if err != nil {
			vectorErr = fmt.Errorf("query embedding failed: %w", err)
			return
		}
		vector, vectorErr = e.store.VectorSearch(ctx, embedding, kVector)
	}()
	wg.Wait()

	if lexicalErr != nil && vectorErr != nil {
		return models.RetrievalResult{}, fmt.Errorf("retrieval failed: lexical: %v; vector: %w", lexicalErr, vectorErr)
	}
	if lexicalErr != nil {
		slog.Warn("lexical search failed, using vector results only", "error", lexicalErr)
	}
	if vectorErr != nil {
		slog.Warn("vector search failed, using lexical results only", "error", vectorErr)
	}

	limit := e.maxDocs
	if limit <= 0 {
		limit = kLexical + kVector
	}

	seen := make(map[string]bool)
	docs := make([]models.Document, 0, limit)
	for _, hit := range append(lexical, vector...) {
		if seen[hit.Document.ID] {
			continue
		}
		seen[hit.Document.ID] = true
		docs = append(docs, hit.Document)
		if len(docs) == limit {
			break
		}
	}

	return models.RetrievalResult{Documents: docs}, nil
}
