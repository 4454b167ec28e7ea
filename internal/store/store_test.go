package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"coinsage/internal/models"
)

func TestMemoryStore_DuplicateWriteIsNoOp(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	doc := models.Document{ID: "doc-1", Content: "BTC technicals and sentiment"}
	if err := s.Write(ctx, doc, PolicySkip); err != nil {
		t.Fatalf("first write failed: %v", err)
	}

	changed := models.Document{ID: "doc-1", Content: "something else"}
	if err := s.Write(ctx, changed, PolicySkip); err != nil {
		t.Fatalf("duplicate write must be a no-op, got %v", err)
	}

	if s.Len() != 1 {
		t.Fatalf("expected exactly one document, got %d", s.Len())
	}
	stored, _ := s.Get("doc-1")
	if stored.Content != "BTC technicals and sentiment" {
		t.Errorf("skip policy must keep the first write, got %q", stored.Content)
	}
}

func TestMemoryStore_OverwritePolicyReplaces(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Write(ctx, models.Document{ID: "doc-1", Content: "old"}, PolicySkip)
	s.Write(ctx, models.Document{ID: "doc-1", Content: "new"}, PolicyOverwrite)

	stored, _ := s.Get("doc-1")
	if stored.Content != "new" {
		t.Errorf("overwrite policy must replace content, got %q", stored.Content)
	}
	if s.Len() != 1 {
		t.Errorf("expected one document, got %d", s.Len())
	}
}

func TestMemoryStore_RejectsEmptyID(t *testing.T) {
	s := NewMemoryStore()
	err := s.Write(context.Background(), models.Document{Content: "no id"}, PolicySkip)
	if !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestMemoryStore_SearchBounds(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		s.Write(ctx, models.Document{ID: id, Content: "bitcoin rsi trend", Vector: []float32{1, 0}}, PolicySkip)
	}

	lexical, err := s.LexicalSearch(ctx, "bitcoin rsi", 2)
	if err != nil {
		t.Fatalf("LexicalSearch failed: %v", err)
	}
	if len(lexical) != 2 {
		t.Errorf("expected k to bound lexical results, got %d", len(lexical))
	}

	vector, err := s.VectorSearch(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("VectorSearch failed: %v", err)
	}
	if len(vector) != 2 {
		t.Errorf("expected k to bound vector results, got %d", len(vector))
	}
}

func TestWeaviateStore_SkipPolicyOnDuplicate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/objects" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(422)
		w.Write([]byte(`{"error":[{"message":"id '123' already exists"}]}`))
	}))
	defer server.Close()

	s := NewWeaviateStore(server.URL, "MarketDocument")
	err := s.Write(context.Background(), models.Document{ID: "123", Content: "x"}, PolicySkip)
	if err != nil {
		t.Fatalf("duplicate under skip policy must be a no-op, got %v", err)
	}
}

func TestWeaviateStore_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{"server error is retryable", 500, `{"error":"oom"}`, ErrUnavailable},
		{"schema rejection is permanent", 422, `{"error":[{"message":"invalid property"}]}`, ErrInvalidDocument},
		{"bad request is permanent", 400, `{"error":"malformed"}`, ErrInvalidDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			s := NewWeaviateStore(server.URL, "MarketDocument")
			err := s.Write(context.Background(), models.Document{ID: "123", Content: "x"}, PolicySkip)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestWeaviateStore_LexicalSearchParsesHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/graphql" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["query"] == "" {
			t.Error("expected graphql query in body")
		}
		w.Write([]byte(`{"data":{"Get":{"MarketDocument":[
			{"content":"BTC technicals","metadata":"{\"symbol\":\"BTC\"}","_additional":{"id":"id-1","score":"2.5"}},
			{"content":"ETH technicals","metadata":"{}","_additional":{"id":"id-2","score":"1.25"}}
		]}}}`))
	}))
	defer server.Close()

	s := NewWeaviateStore(server.URL, "MarketDocument")
	results, err := s.LexicalSearch(context.Background(), "BTC", 10)
	if err != nil {
		t.Fatalf("LexicalSearch failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(results))
	}
	if results[0].Document.ID != "id-1" || results[0].Score != 2.5 {
		t.Errorf("unexpected first hit %+v", results[0])
	}
	if got := results[0].Document.Metadata["symbol"]; got != "BTC" {
		t.Errorf("expected metadata round-trip, got %v", got)
	}
}

func TestWeaviateStore_VectorSearchScoresFromDistance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"Get":{"MarketDocument":[
			{"content":"BTC","metadata":"{}","_additional":{"id":"id-1","distance":0.25}}
		]}}}`))
	}))
	defer server.Close()

	s := NewWeaviateStore(server.URL, "MarketDocument")
	results, err := s.VectorSearch(context.Background(), []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("VectorSearch failed: %v", err)
	}
	if len(results) != 1 || results[0].Score != 0.75 {
		t.Errorf("expected score 1-distance=0.75, got %+v", results)
	}
}

func TestWeaviateStore_GraphQLErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"class not found"}]}`))
	}))
	defer server.Close()

	s := NewWeaviateStore(server.URL, "MarketDocument")
	_, err := s.LexicalSearch(context.Background(), "BTC", 10)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
