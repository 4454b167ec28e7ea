package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"coinsage/internal/models"
)

// WeaviateStore talks to a remote Weaviate instance over its REST and
// GraphQL APIs. One class holds all market documents; document
// metadata is stored as a JSON string property so the class schema
// stays flat.
type WeaviateStore struct {
	client *resty.Client
	class  string
}

// NewWeaviateStore creates a store adapter for the given base URL
// (e.g. http://weaviate:8080) and class name.
func NewWeaviateStore(baseURL, class string) *WeaviateStore {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(60 * time.Second)

	return &WeaviateStore{client: client, class: class}
}

type weaviateObject struct {
	Class      string            `json:"class"`
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	Vector     []float32         `json:"vector,omitempty"`
}

// Write stores doc. Under PolicySkip a duplicate ID is a no-op, not an
// error; under PolicyOverwrite the stored object is replaced.
func (s *WeaviateStore) Write(ctx context.Context, doc models.Document, policy WritePolicy) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata not serializable: %v", ErrInvalidDocument, err)
	}

	obj := weaviateObject{
		Class: s.class,
		ID:    doc.ID,
		Properties: map[string]string{
			"content":  doc.Content,
			"metadata": string(metadata),
		},
		Vector: doc.Vector,
	}

	req := s.client.R().SetContext(ctx).SetBody(obj)

	var resp *resty.Response
	if policy == PolicyOverwrite {
		resp, err = req.Put(fmt.Sprintf("/v1/objects/%s/%s", s.class, doc.ID))
	} else {
		resp, err = req.Post("/v1/objects")
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() == 422 && strings.Contains(resp.String(), "already exists"):
		if policy == PolicySkip {
			return nil
		}
		return fmt.Errorf("%w: duplicate id %s", ErrInvalidDocument, doc.ID)
	case resp.StatusCode() >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode(), resp.String())
	default:
		return fmt.Errorf("%w: status %d: %s", ErrInvalidDocument, resp.StatusCode(), resp.String())
	}
}

// LexicalSearch runs a BM25 query and returns up to k scored documents
// in store ranking order.
func (s *WeaviateStore) LexicalSearch(ctx context.Context, query string, k int) ([]models.ScoredDocument, error) {
	gql := fmt.Sprintf(
		`{ Get { %s(bm25: {query: %s}, limit: %d) { content metadata _additional { id score } } } }`,
		s.class, strconv.Quote(query), k,
	)
	return s.search(ctx, gql, func(score string, _ float64) float64 {
		parsed, err := strconv.ParseFloat(score, 64)
		if err != nil {
			return 0
		}
		return parsed
	})
}

// VectorSearch runs a nearVector query and returns up to k scored
// documents. Scores are 1-distance so higher is better, matching the
// lexical ordering convention.
func (s *WeaviateStore) VectorSearch(ctx context.Context, vector []float32, k int) ([]models.ScoredDocument, error) {
	encoded, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("%w: vector not serializable: %v", ErrInvalidDocument, err)
	}

	gql := fmt.Sprintf(
		`{ Get { %s(nearVector: {vector: %s}, limit: %d) { content metadata _additional { id distance } } } }`,
		s.class, encoded, k,
	)
	return s.search(ctx, gql, func(_ string, distance float64) float64 {
		return 1 - distance
	})
}

type graphqlResponse struct {
	Data struct {
		Get map[string][]struct {
			Content    string `json:"content"`
			Metadata   string `json:"metadata"`
			Additional struct {
				ID       string  `json:"id"`
				Score    string  `json:"score"`
				Distance float64 `json:"distance"`
			} `json:"_additional"`
		} `json:"Get"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (s *WeaviateStore) search(ctx context.Context, gql string, score func(string, float64) float64) ([]models.ScoredDocument, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"query": gql}).
		Post("/v1/graphql")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode(), resp.String())
	}

	var out graphqlResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: unparseable search response: %v", ErrUnavailable, err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("%w: graphql error: %s", ErrUnavailable, out.Errors[0].Message)
	}

	hits := out.Data.Get[s.class]
	results := make([]models.ScoredDocument, 0, len(hits))
	for _, hit := range hits {
		var metadata map[string]interface{}
		if hit.Metadata != "" {
			// Metadata was written by us as JSON; tolerate anything else.
			_ = json.Unmarshal([]byte(hit.Metadata), &metadata)
		}
		results = append(results, models.ScoredDocument{
			Document: models.Document{
				ID:       hit.Additional.ID,
				Content:  hit.Content,
				Metadata: metadata,
			},
			Score: score(hit.Additional.Score, hit.Additional.Distance),
		})
	}
	return results, nil
}
