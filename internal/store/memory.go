package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"coinsage/internal/models"
)

// MemoryStore is an in-process DocumentStore used by tests and local
// development. Its ranking is deliberately simple: term overlap for
// lexical search, cosine similarity for vector search.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]models.Document
	order []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]models.Document)}
}

// Write stores doc, honoring the duplicate policy.
func (s *MemoryStore) Write(_ context.Context, doc models.Document, policy WritePolicy) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDocument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; exists {
		if policy == PolicySkip {
			return nil
		}
		s.docs[doc.ID] = doc
		return nil
	}

	s.docs[doc.ID] = doc
	s.order = append(s.order, doc.ID)
	return nil
}

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Get returns a stored document by ID.
func (s *MemoryStore) Get(id string) (models.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	return doc, ok
}

// LexicalSearch scores documents by the number of query terms their
// content contains.
func (s *MemoryStore) LexicalSearch(_ context.Context, query string, k int) ([]models.ScoredDocument, error) {
	terms := strings.Fields(strings.ToLower(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []models.ScoredDocument
	for _, id := range s.order {
		doc := s.docs[id]
		content := strings.ToLower(doc.Content)
		score := 0.0
		for _, term := range terms {
			if strings.Contains(content, term) {
				score++
			}
		}
		if score > 0 {
			results = append(results, models.ScoredDocument{Document: doc, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// VectorSearch scores documents by cosine similarity with the query
// vector. Documents written without a vector are skipped.
func (s *MemoryStore) VectorSearch(_ context.Context, vector []float32, k int) ([]models.ScoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []models.ScoredDocument
	for _, id := range s.order {
		doc := s.docs[id]
		if len(doc.Vector) == 0 || len(doc.Vector) != len(vector) {
			continue
		}
		results = append(results, models.ScoredDocument{Document: doc, Score: cosine(vector, doc.Vector)})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
