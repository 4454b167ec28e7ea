package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string

	// Transport auth
	RESTAPIKey string
	WSAPIKey   string

	// Document store (Weaviate)
	WeaviateURL   string
	WeaviateClass string

	// Data sources
	CoinGeckoURL    string
	CoinGeckoAPIKey string
	BinanceURL      string
	SantimentURL    string
	SantimentAPIKey string
	UniverseSize    int

	// Generation backend (OpenRouter-compatible chat completions)
	OpenRouterURL       string
	OpenRouterAPIKey    string
	GenerationModel     string
	GenerationMaxTokens int
	GenerationTimeout   time.Duration

	// Embeddings backend (same model for indexing and querying)
	EmbeddingsURL    string
	EmbeddingsAPIKey string
	EmbeddingsModel  string

	// Ingestion
	RedisURL          string
	IngestInterval    time.Duration
	IngestConcurrency int
	AlertWebhookURL   string

	// Retrieval / prompt
	RetrievalTopK       int
	PromptContextBudget int
	HistoryMaxTurns     int

	// Observability
	SentryDSN string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8000"),
		Environment: getEnv("ENVIRONMENT", "development"),

		RESTAPIKey: getEnv("REST_API_KEY", "changeme"),
		WSAPIKey:   getEnv("WS_API_KEY", "changeme"),

		WeaviateURL:   getEnv("WEAVIATE_URL", "http://localhost:8080"),
		WeaviateClass: getEnv("WEAVIATE_CLASS", "MarketDocument"),

		CoinGeckoURL:    getEnv("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoAPIKey: getEnv("CG_API_KEY", ""),
		BinanceURL:      getEnv("BINANCE_URL", "https://api.binance.com/api/v3"),
		SantimentURL:    getEnv("SANTIMENT_URL", "https://api.santiment.net/graphql"),
		SantimentAPIKey: getEnv("SANTIMENT_API_KEY", ""),
		UniverseSize:    getIntEnv("UNIVERSE_SIZE", 50),

		OpenRouterURL:       getEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:    getEnv("OPENROUTER_API_KEY", ""),
		GenerationModel:     getEnv("GENERATION_MODEL", "openrouter/auto"),
		GenerationMaxTokens: getIntEnv("GENERATION_MAX_TOKENS", 500),
		GenerationTimeout:   getDurationEnv("GENERATION_TIMEOUT_SECONDS", 60),

		EmbeddingsURL:    getEnv("EMBEDDINGS_URL", "http://localhost:8081/v1"),
		EmbeddingsAPIKey: getEnv("EMBEDDINGS_API_KEY", ""),
		EmbeddingsModel:  getEnv("EMBEDDINGS_MODEL", "sentence-transformers/all-MiniLM-L6-v2"),

		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		IngestInterval:    time.Duration(getIntEnv("INGEST_INTERVAL_MINUTES", 30)) * time.Minute,
		IngestConcurrency: getIntEnv("INGEST_CONCURRENCY", 4),
		AlertWebhookURL:   getEnv("ALERT_WEBHOOK_URL", ""),

		RetrievalTopK:       getIntEnv("RETRIEVAL_TOP_K", 10),
		PromptContextBudget: getIntEnv("PROMPT_CONTEXT_BUDGET", 12000),
		HistoryMaxTurns:     getIntEnv("HISTORY_MAX_TURNS", 5),

		SentryDSN: getEnv("SENTRY_DSN", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultSeconds int) time.Duration {
	return time.Duration(getIntEnv(key, defaultSeconds)) * time.Second
}
