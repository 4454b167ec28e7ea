package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinsage/internal/config"
	"coinsage/internal/connectors"
	"coinsage/internal/generation"
	"coinsage/internal/handlers"
	"coinsage/internal/ingestion"
	"coinsage/internal/logging"
	"coinsage/internal/middleware"
	"coinsage/internal/prompt"
	"coinsage/internal/rag"
	"coinsage/internal/retrieval"
	"coinsage/internal/services"
	"coinsage/internal/store"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/getsentry/sentry-go"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	promclient "github.com/prometheus/client_golang/prometheus"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting CoinSage Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Store: %s)", cfg.Port, cfg.WeaviateURL)

	// Initialize Sentry error reporting (optional)
	var reporter rag.Reporter
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			log.Printf("⚠️ Failed to initialize Sentry: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			reporter = &rag.SentryReporter{}
			log.Println("✅ Sentry error reporting enabled")
		}
	} else {
		log.Println("⚠️ SENTRY_DSN not set - error reporting disabled")
	}

	// Metrics
	metrics := services.NewMetrics(promclient.DefaultRegisterer)

	// Document store and embeddings
	docStore := store.NewWeaviateStore(cfg.WeaviateURL, cfg.WeaviateClass)
	embedder := retrieval.NewEmbeddingsClient(cfg.EmbeddingsURL, cfg.EmbeddingsAPIKey, cfg.EmbeddingsModel)
	log.Printf("✅ Document store configured (class: %s)", cfg.WeaviateClass)

	// Market data connectors
	coingecko := connectors.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoAPIKey)
	binance := connectors.NewBinanceClient(cfg.BinanceURL)
	santiment := connectors.NewSantimentClient(cfg.SantimentURL, cfg.SantimentAPIKey)

	// Ingestion pipeline: scheduler → redis queue → worker → orchestrator
	orchestrator := ingestion.NewOrchestrator(coingecko, binance, santiment, docStore, embedder, metrics, cfg.UniverseSize, cfg.IngestConcurrency)
	alerter := ingestion.NewWebhookAlerter(cfg.AlertWebhookURL)

	var scheduler *ingestion.Scheduler
	var worker *ingestion.Worker

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	redisClient, err := ingestion.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Printf("⚠️ Redis unavailable: %v (scheduled ingestion disabled)", err)
	} else {
		defer redisClient.Close()
		queue := ingestion.NewRedisQueue(redisClient)
		lock := ingestion.NewRedisLock(redisClient, 10*time.Minute)
		worker = ingestion.NewWorker(queue, lock, orchestrator, alerter, metrics, 1, time.Minute)
		worker.Start(shutdownCtx)

		scheduler, err = ingestion.NewScheduler(worker, cfg.IngestInterval)
		if err != nil {
			log.Fatalf("❌ Failed to create ingestion scheduler: %v", err)
		}
		if err := scheduler.Start(shutdownCtx); err != nil {
			log.Fatalf("❌ Failed to start ingestion scheduler: %v", err)
		}
		log.Printf("✅ Ingestion scheduled every %s", cfg.IngestInterval)
	}

	// Query pipeline
	engine := retrieval.NewEngine(docStore, embedder, cfg.RetrievalTopK)
	composer := prompt.Composer{ContextBudget: cfg.PromptContextBudget}
	generator := generation.NewClient(cfg.OpenRouterURL, cfg.OpenRouterAPIKey, cfg.GenerationModel, cfg.GenerationMaxTokens, cfg.GenerationTimeout)
	pipeline := rag.NewPipeline(engine, composer, generator, metrics, reporter, cfg.RetrievalTopK)
	log.Printf("✅ Query pipeline ready (model: %s)", cfg.GenerationModel)

	// Connection tracking and handlers
	connManager := services.NewConnectionManager()
	healthHandler := handlers.NewHealthHandler(connManager)
	queryHandler := handlers.NewQueryHandler(pipeline, metrics)
	wsHandler := handlers.NewWebSocketHandler(connManager, pipeline, metrics, cfg.HistoryMaxTurns)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "CoinSage v1.0",
		ReadTimeout:  300 * time.Second, // generation backends can take minutes
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  300 * time.Second,
	})

	// Middleware
	app.Use(recover.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("coinsage")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	app.Use(cors.New(cors.Config{
		AllowOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-API-Key",
	}))

	// Routes
	app.Get("/health", healthHandler.Handle)
	app.Post("/query", middleware.RequireAPIKey(cfg.RESTAPIKey), queryHandler.Handle)

	// WebSocket route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Use("/ws/query", middleware.RequireAPIKey(cfg.WSAPIKey))
	app.Get("/ws/query", websocket.New(wsHandler.Handle))

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		// Stop scheduling new cycles, then let the worker drain
		if scheduler != nil {
			if err := scheduler.Stop(); err != nil {
				log.Printf("⚠️ Error stopping scheduler: %v", err)
			}
		}
		shutdownCancel()
		if worker != nil {
			worker.Stop()
		}

		// Shutdown Fiber
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
