package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"coinsage/internal/logging"
	"coinsage/internal/models"
	"coinsage/internal/retrieval"
	"coinsage/internal/services"
	"coinsage/internal/store"
)

// documentNamespace is the UUID namespace for deterministic document
// IDs. Changing it would re-ingest every document under new IDs.
var documentNamespace = uuid.MustParse("8f3c6a9b-42d1-4e0a-b7f3-5a1d9c2e6b04")

// DocumentID derives the document ID for one symbol in one cycle.
// The same (symbol, cycle start) always yields the same ID, which is
// what makes re-running a cycle idempotent at the document level.
func DocumentID(symbol models.Symbol, startedAt time.Time) string {
	seed := fmt.Sprintf("%s|%s|%s", symbol.Ticker, symbol.Slug, startedAt.UTC().Format(time.RFC3339))
	return uuid.NewSHA1(documentNamespace, []byte(seed)).String()
}

// SymbolSource lists the tradable universe.
type SymbolSource interface {
	TopSymbols(ctx context.Context, limit int) ([]models.Symbol, error)
}

// IndicatorSource fetches the raw technical payload for one ticker.
type IndicatorSource interface {
	Klines(ctx context.Context, ticker string) (models.IndicatorSnapshot, error)
}

// SentimentSource fetches the sentiment score for one slug.
type SentimentSource interface {
	SentimentBalance(ctx context.Context, slug string) (models.SentimentScore, error)
}

// Orchestrator runs one ingestion cycle: universe → per-symbol fetches
// → documents → deduplicated store writes. Cycle-level retry and
// alerting live in the queue worker; the orchestrator only reports
// whether this attempt succeeded.
type Orchestrator struct {
	symbols    SymbolSource
	indicators IndicatorSource
	sentiment  SentimentSource
	docs       store.DocumentStore
	embedder   retrieval.Embedder
	metrics    *services.Metrics

	universeSize int
	concurrency  int

	// The universe moves slowly; caching it keeps retried cycles from
	// burning CoinGecko quota.
	universeCache *cache.Cache
}

// NewOrchestrator wires an ingestion orchestrator.
func NewOrchestrator(symbols SymbolSource, indicators IndicatorSource, sentiment SentimentSource, docs store.DocumentStore, embedder retrieval.Embedder, metrics *services.Metrics, universeSize, concurrency int) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Orchestrator{
		symbols:       symbols,
		indicators:    indicators,
		sentiment:     sentiment,
		docs:          docs,
		embedder:      embedder,
		metrics:       metrics,
		universeSize:  universeSize,
		concurrency:   concurrency,
		universeCache: cache.New(10*time.Minute, 30*time.Minute),
	}
}

// RunCycle performs one attempt of the cycle that started at
// startedAt. Any connector or store failure aborts the remaining
// symbols and fails the attempt; completed writes stay in place and
// are skipped as duplicates when the cycle is retried.
func (o *Orchestrator) RunCycle(ctx context.Context, cycleID string, startedAt time.Time) error {
	logger := logging.WithCorrelation(cycleID)

	o.metrics.IngestionCycles.Inc()
	timer := prometheus.NewTimer(o.metrics.IngestionLatency)
	defer timer.ObserveDuration()

	symbols, err := o.universe(ctx)
	if err != nil {
		o.metrics.IngestionFailures.Inc()
		return fmt.Errorf("symbol universe: %w", err)
	}
	logger.Info("starting ingestion cycle", "symbols", len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			return o.ingestSymbol(gctx, symbol, startedAt)
		})
	}

	if err := g.Wait(); err != nil {
		o.metrics.IngestionFailures.Inc()
		return err
	}

	logger.Info("ingestion cycle completed", "symbols", len(symbols))
	return nil
}

// ingestSymbol fetches indicators then sentiment for one symbol —
// sequential within the symbol to avoid bursting a single upstream —
// and writes the resulting document under the skip policy.
func (o *Orchestrator) ingestSymbol(ctx context.Context, symbol models.Symbol, startedAt time.Time) error {
	indicators, err := o.indicators.Klines(ctx, symbol.Ticker)
	if err != nil {
		return fmt.Errorf("indicators for %s: %w", symbol.Ticker, err)
	}

	sentiment, err := o.sentiment.SentimentBalance(ctx, symbol.Slug)
	if err != nil {
		return fmt.Errorf("sentiment for %s: %w", symbol.Slug, err)
	}

	doc := models.Document{
		ID:      DocumentID(symbol, startedAt),
		Content: fmt.Sprintf("%s technicals and sentiment", symbol.Ticker),
		Metadata: map[string]interface{}{
			"symbol":     symbol.Ticker,
			"slug":       symbol.Slug,
			"cycle":      startedAt.UTC().Format(time.RFC3339),
			"indicators": indicators,
			"sentiment":  sentiment.Value,
		},
	}

	vector, err := o.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding for %s: %w", symbol.Ticker, err)
	}
	doc.Vector = vector

	if err := o.docs.Write(ctx, doc, store.PolicySkip); err != nil {
		return fmt.Errorf("write for %s: %w", symbol.Ticker, err)
	}

	o.metrics.DocumentsWritten.Inc()
	return nil
}

func (o *Orchestrator) universe(ctx context.Context) ([]models.Symbol, error) {
	if cached, ok := o.universeCache.Get("universe"); ok {
		return cached.([]models.Symbol), nil
	}

	symbols, err := o.symbols.TopSymbols(ctx, o.universeSize)
	if err != nil {
		return nil, err
	}

	o.universeCache.Set("universe", symbols, cache.DefaultExpiration)
	return symbols, nil
}
