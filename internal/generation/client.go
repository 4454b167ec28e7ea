package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrorKind classifies generation failures. The query orchestrator
// maps every kind to the fallback response; the kind is kept for
// logging and metrics labels.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota + 1
	KindUnauthorized
	KindUpstream
	KindEmptyReply
)

// String returns the metrics label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnauthorized:
		return "unauthorized"
	case KindUpstream:
		return "upstream"
	case KindEmptyReply:
		return "empty_reply"
	default:
		return "unknown"
	}
}

// Error is a typed generation failure.
type Error struct {
	Kind ErrorKind
	Code int // HTTP status for KindUpstream
	Err  error
}

func (e *Error) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("generation %s (status %d): %v", e.Kind, e.Code, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("generation %s: %v", e.Kind, e.Err)
	}
	return "generation " + e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client calls an OpenRouter-compatible chat-completions API. One
// attempt per call: generation sits on the latency-sensitive query
// path, so retries belong to the caller's degradation policy, not here.
type Client struct {
	client    *resty.Client
	apiKey    string
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewClient creates a generation client.
func NewClient(baseURL, apiKey, model string, maxTokens int, timeout time.Duration) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)

	return &Client{
		client:    client,
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends the rendered prompt and returns the first candidate
// reply. Failures are always a typed *Error.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(chatRequest{
			Model:     c.model,
			Messages:  []chatMessage{{Role: "user", Content: prompt}},
			MaxTokens: c.maxTokens,
		}).
		Post("/chat/completions")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &Error{Kind: KindTimeout, Err: err}
		}
		return "", &Error{Kind: KindUpstream, Err: err}
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return "", &Error{Kind: KindUnauthorized, Code: resp.StatusCode(), Err: errors.New(resp.String())}
	case !resp.IsSuccess():
		return "", &Error{Kind: KindUpstream, Code: resp.StatusCode(), Err: errors.New(resp.String())}
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", &Error{Kind: KindUpstream, Code: resp.StatusCode(), Err: fmt.Errorf("unparseable reply: %w", err)}
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", &Error{Kind: KindEmptyReply}
	}

	return out.Choices[0].Message.Content, nil
}
