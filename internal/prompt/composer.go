package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"coinsage/internal/models"
)

const traderInstruction = `You are a professional cryptocurrency trader with a strong track record of profitable trades.
You rely on multi-timeframe technical analysis (MACD, RSI, Bollinger Bands, SMA, EMA) and crypto sentiment data.
Use the context below to craft an expert response to the user's question.`

// Composer renders the fixed trader prompt from retrieved context, the
// user question and optional recent conversation turns. Compose is a
// pure function: no I/O, no state.
type Composer struct {
	// ContextBudget bounds the rendered prompt length in runes. When
	// the prompt would exceed it, the lowest-ranked context documents
	// are dropped first. The question and history are never truncated.
	// Zero means unbounded.
	ContextBudget int
}

// Compose renders the prompt.
func (c Composer) Compose(question string, context models.RetrievalResult, history []models.ConversationTurn) string {
	docs := context.Documents
	rendered := render(question, docs, history)

	for c.ContextBudget > 0 && len([]rune(rendered)) > c.ContextBudget && len(docs) > 0 {
		docs = docs[:len(docs)-1]
		rendered = render(question, docs, history)
	}

	return rendered
}

func render(question string, docs []models.Document, history []models.ConversationTurn) string {
	var b strings.Builder
	b.WriteString(traderInstruction)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "User: %s\nBot: %s\n", turn.User, turn.Bot)
		}
		b.WriteString("\n")
	}

	b.WriteString("Context:\n")
	for _, doc := range docs {
		b.WriteString(serializeDocument(doc))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n\nExpert Trader's Answer:\n", question)
	return b.String()
}

func serializeDocument(doc models.Document) string {
	if len(doc.Metadata) == 0 {
		return "- " + doc.Content
	}
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return "- " + doc.Content
	}
	return fmt.Sprintf("- %s %s", doc.Content, metadata)
}
