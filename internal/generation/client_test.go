package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return NewClient(url, "test-key", "openrouter/auto", 500, 2*time.Second)
}

func TestGenerate_ReturnsFirstCandidate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != 500 {
			t.Errorf("expected max_tokens 500, got %d", req.MaxTokens)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}

		w.Write([]byte(`{"choices":[{"message":{"content":"Buy the dip."}},{"message":{"content":"second"}}]}`))
	}))
	defer server.Close()

	reply, err := newTestClient(server.URL).Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if reply != "Buy the dip." {
		t.Errorf("expected first candidate, got %q", reply)
	}
}

func TestGenerate_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected ErrorKind
	}{
		{"unauthorized", 401, `{"error":"bad key"}`, KindUnauthorized},
		{"forbidden", 403, `{"error":"no access"}`, KindUnauthorized},
		{"upstream error", 502, `{"error":"overloaded"}`, KindUpstream},
		{"empty choices", 200, `{"choices":[]}`, KindEmptyReply},
		{"blank content", 200, `{"choices":[{"message":{"content":"  "}}]}`, KindEmptyReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Generate(context.Background(), "prompt")

			var genErr *Error
			if !errors.As(err, &genErr) {
				t.Fatalf("expected *Error, got %T: %v", err, err)
			}
			if genErr.Kind != tt.expected {
				t.Errorf("expected kind %s, got %s", tt.expected, genErr.Kind)
			}
		})
	}
}

func TestGenerate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"choices":[{"message":{"content":"too late"}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "openrouter/auto", 500, 50*time.Millisecond)
	_, err := client.Generate(context.Background(), "prompt")

	var genErr *Error
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if genErr.Kind != KindTimeout {
		t.Errorf("expected timeout kind, got %s", genErr.Kind)
	}
}

func TestGenerate_NoRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	newTestClient(server.URL).Generate(context.Background(), "prompt")
	if calls != 1 {
		t.Errorf("generation must not retry internally, got %d calls", calls)
	}
}
