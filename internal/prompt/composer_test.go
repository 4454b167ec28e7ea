package prompt

import (
	"strings"
	"testing"

	"coinsage/internal/models"
)

func docs(ids ...string) models.RetrievalResult {
	var result models.RetrievalResult
	for _, id := range ids {
		result.Documents = append(result.Documents, models.Document{
			ID:      id,
			Content: "document body " + id,
		})
	}
	return result
}

func TestCompose_ContainsAllSections(t *testing.T) {
	c := Composer{}
	out := c.Compose(
		"What's BTC's RSI trend?",
		docs("a", "b"),
		[]models.ConversationTurn{{User: "hello", Bot: "hi, ask away"}},
	)

	for _, want := range []string{
		"professional cryptocurrency trader",
		"MACD, RSI, Bollinger Bands, SMA, EMA",
		"User: hello",
		"Bot: hi, ask away",
		"document body a",
		"document body b",
		"Question: What's BTC's RSI trend?",
		"Expert Trader's Answer:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestCompose_EmptyContextStillRenders(t *testing.T) {
	c := Composer{}
	out := c.Compose("any question", models.RetrievalResult{}, nil)

	if !strings.Contains(out, "Context:") {
		t.Error("expected Context section even when empty")
	}
	if !strings.Contains(out, "Question: any question") {
		t.Error("expected question section")
	}
}

func TestCompose_DropsLowestRankedDocumentsFirst(t *testing.T) {
	base := Composer{}.Compose("q", docs("a"), nil)
	budget := len([]rune(base)) + 10 // room for one document but not three

	c := Composer{ContextBudget: budget}
	out := c.Compose("q", docs("a", "b", "c"), nil)

	if len([]rune(out)) > budget {
		t.Fatalf("prompt exceeds budget: %d > %d", len([]rune(out)), budget)
	}
	if !strings.Contains(out, "document body a") {
		t.Error("highest-ranked document must survive truncation")
	}
	if strings.Contains(out, "document body c") {
		t.Error("lowest-ranked document must be dropped first")
	}
}

func TestCompose_NeverTruncatesQuestion(t *testing.T) {
	question := strings.Repeat("why ", 200)
	c := Composer{ContextBudget: 50}
	out := c.Compose(question, docs("a", "b"), nil)

	if !strings.Contains(out, question) {
		t.Error("question must never be truncated, even over budget")
	}
}

func TestCompose_SerializesMetadata(t *testing.T) {
	result := models.RetrievalResult{Documents: []models.Document{{
		ID:      "x",
		Content: "BTC technicals and sentiment",
		Metadata: map[string]interface{}{
			"symbol": "BTC",
		},
	}}}

	out := Composer{}.Compose("q", result, nil)
	if !strings.Contains(out, `"symbol":"BTC"`) {
		t.Errorf("expected metadata serialized into context, got:\n%s", out)
	}
}

func TestCompose_IsPure(t *testing.T) {
	c := Composer{ContextBudget: 10000}
	input := docs("a", "b")
	first := c.Compose("q", input, nil)
	second := c.Compose("q", input, nil)

	if first != second {
		t.Error("Compose must be deterministic for identical input")
	}
	if len(input.Documents) != 2 {
		t.Error("Compose must not mutate its input")
	}
}
