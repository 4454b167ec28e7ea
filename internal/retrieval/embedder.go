package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Embedder turns text into the vector representation used by the
// document store. The same model must be used at index time and query
// time or vector search degenerates into noise.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingsClient calls an OpenAI-compatible embeddings endpoint.
type EmbeddingsClient struct {
	client *resty.Client
	apiKey string
	model  string
}

// NewEmbeddingsClient creates an embeddings client for the given base
// URL (the /embeddings path is appended) and model.
func NewEmbeddingsClient(baseURL, apiKey, model string) *EmbeddingsClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)

	return &EmbeddingsClient{client: client, apiKey: apiKey, model: model}
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text.
func (c *EmbeddingsClient) Embed(ctx context.Context, text string) ([]float32, error) {
	req := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"model": c.model,
			"input": []string{text},
		})
	if c.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := req.Post("/embeddings")
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("embeddings API error %d: %s", resp.StatusCode(), resp.String())
	}

	var out embeddingsResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("embeddings response parse failed: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embeddings API returned no vector")
	}

	return out.Data[0].Embedding, nil
}
