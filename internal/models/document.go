package models

import "encoding/json"

// Symbol identifies one tradable asset within an ingestion cycle.
// Ticker is the market-data key (Binance pair prefix), Slug is the
// sentiment-provider key (Santiment slug).
type Symbol struct {
	Ticker string `json:"ticker"`
	Slug   string `json:"slug"`
}

// IndicatorSnapshot is the raw time-series payload fetched for one
// symbol/interval. It is kept opaque: the document store receives it
// verbatim and the prompt composer never inspects its structure.
type IndicatorSnapshot json.RawMessage

// MarshalJSON passes the raw payload through unchanged.
func (s IndicatorSnapshot) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return []byte(s), nil
}

// UnmarshalJSON stores the raw payload verbatim.
func (s *IndicatorSnapshot) UnmarshalJSON(data []byte) error {
	*s = append((*s)[:0], data...)
	return nil
}

// SentimentScore holds one day's sentiment balance for a symbol.
// Value is nil when the upstream provider has no data for the day.
type SentimentScore struct {
	Value *float64 `json:"value"`
}

// Document is the unit stored in and retrieved from the document store.
// ID is deterministic from (symbol, cycle timestamp), so re-ingesting
// the same cycle produces the same ID and is skipped by the store's
// duplicate policy.
type Document struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Vector   []float32              `json:"vector,omitempty"`
}

// ScoredDocument pairs a document with the relevance score assigned by
// one search modality.
type ScoredDocument struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// RetrievalResult is an ordered set of context documents with no
// duplicate IDs, bounded by the retrieval engine's configured cap.
type RetrievalResult struct {
	Documents []Document `json:"documents"`
}
