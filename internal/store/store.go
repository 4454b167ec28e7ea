package store

import (
	"context"
	"errors"

	"coinsage/internal/models"
)

// WritePolicy controls what happens when a document ID already exists.
type WritePolicy string

const (
	// PolicySkip makes a duplicate-ID write a no-op. Combined with
	// deterministic document IDs this makes ingestion idempotent.
	PolicySkip WritePolicy = "skip"
	// PolicyOverwrite replaces the stored document.
	PolicyOverwrite WritePolicy = "overwrite"
)

var (
	// ErrUnavailable means the store could not be reached; callers may retry.
	ErrUnavailable = errors.New("document store unavailable")
	// ErrInvalidDocument means the store rejected the document; retrying
	// the same write cannot succeed.
	ErrInvalidDocument = errors.New("invalid document")
)

// DocumentStore abstracts the remote hybrid (lexical + vector) index.
// Both search operations are read-only; k bounds the result length but
// the store may return fewer. Implementations must be safe for
// concurrent reads and writes.
type DocumentStore interface {
	Write(ctx context.Context, doc models.Document, policy WritePolicy) error
	LexicalSearch(ctx context.Context, query string, k int) ([]models.ScoredDocument, error)
	VectorSearch(ctx context.Context, vector []float32, k int) ([]models.ScoredDocument, error)
}
