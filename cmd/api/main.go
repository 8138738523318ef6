package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/farmrag/backend/internal/api/handlers"
	"github.com/farmrag/backend/internal/cache/redis"
	"github.com/farmrag/backend/internal/diagnose"
	"github.com/farmrag/backend/internal/ingestion"
	"github.com/farmrag/backend/internal/llm"
	"github.com/farmrag/backend/internal/metrics"
	"github.com/farmrag/backend/internal/middleware/ratelimit"
	"github.com/farmrag/backend/internal/middleware/security"
	"github.com/farmrag/backend/internal/middleware/validation"
	"github.com/farmrag/backend/internal/rag"
	"github.com/farmrag/backend/internal/storage/sqlite"
	"github.com/farmrag/backend/internal/translate"
	"github.com/farmrag/backend/internal/vector/milvus"
	"github.com/farmrag/backend/pkg/config"
	"github.com/farmrag/backend/pkg/httpx"
	appLogger "github.com/farmrag/backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting farm advisory API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	// Hosted dependencies are optional. A missing credential leaves the
	// client nil and the pipelines serve canned responses instead of failing.
	var milvusClient *milvus.Client
	if cfg.Milvus.Configured() {
		milvusClient, err = milvus.NewClient(
			cfg.Milvus.Endpoint,
			cfg.Milvus.APIKey,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
			cfg.Ingest.UpsertBatchSize,
		)
		if err != nil {
			appLogger.Warn("Vector store unavailable, continuing in demo mode", zap.Error(err))
			milvusClient = nil
		} else {
			defer milvusClient.Close()
			if err := milvusClient.EnsureCollection(context.Background()); err != nil {
				appLogger.Warn("Failed to ensure collection, continuing in demo mode", zap.Error(err))
				milvusClient = nil
			}
		}
	} else {
		appLogger.Warn("Milvus endpoint not configured, vector search disabled")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		}
	}

	var llmClient *llm.Client
	if cfg.LLM.Configured() {
		llmClient = llm.NewClient(
			cfg.LLM.APIKey,
			cfg.LLM.Model,
			cfg.LLM.VisionModel,
			cfg.LLM.EmbeddingModel,
			cfg.LLM.Temperature,
			cfg.LLM.MaxTokens,
			cfg.LLM.TimeoutSec,
		)
	} else {
		appLogger.Warn("LLM API key not configured, generation disabled")
	}

	httpClient := httpx.New(httpx.Config{Logger: appLogger.GetLogger()})
	translator := translate.NewTranslator(httpClient, cfg.Translate.Endpoint, cfg.Translate.APIKey, redisClient)

	chunker := ingestion.NewChunker(
		cfg.Ingest.ChunkSize,
		cfg.Ingest.ChunkOverlap,
		cfg.Ingest.MinChunkLen,
		cfg.Ingest.SentenceSnap,
	)

	// Typed nil pointers must not leak into the interfaces, otherwise the
	// readiness probes see a non-nil dependency.
	var ingestEmbedder ingestion.Embedder
	var ingestStore ingestion.VectorStore
	var chatEmbedder rag.Embedder
	var chatStore rag.Retriever
	var chatGenerator rag.Generator
	var classifier diagnose.Classifier
	var diagGenerator diagnose.Generator
	if llmClient != nil {
		ingestEmbedder = llmClient
		chatEmbedder = llmClient
		chatGenerator = llmClient
		classifier = llmClient
		diagGenerator = llmClient
	}
	if milvusClient != nil {
		ingestStore = milvusClient
		chatStore = milvusClient
	}

	processor := ingestion.NewProcessor(
		ingestEmbedder,
		ingestStore,
		chunker,
		redisClient,
		sqliteClient,
		time.Duration(cfg.Ingest.EmbedDelayMs)*time.Millisecond,
	)

	engine := rag.NewEngine(
		chatEmbedder,
		chatStore,
		chatGenerator,
		cfg.Chat.TopK,
		cfg.Chat.HistoryWindow,
		cfg.Chat.MaxMessageLen,
	)

	diagnoser := diagnose.NewDiagnoser(classifier, diagGenerator, translator)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		TokensPerMinute: 60,
		Logger:          appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxMessageLength: cfg.Chat.MaxMessageLen,
		MaxBodySize:      cfg.Server.BodyLimit,
		Logger:           appLogger.GetLogger(),
	}))

	chatHandler := handlers.NewChatHandler(engine, sqliteClient)
	uploadHandler := handlers.NewUploadHandler(processor, int64(cfg.Ingest.MaxFileBytes))
	diagnoseHandler := handlers.NewDiagnoseHandler(diagnoser)
	wsHandler := handlers.NewWebSocketHandler(engine)

	api := app.Group("/api/v1")

	api.Post("/chat", chatHandler.HandleChat)
	api.Get("/chat/history", chatHandler.GetHistory)
	api.Post("/upload", uploadHandler.HandleUpload)
	api.Post("/diagnose", diagnoseHandler.HandleDiagnose)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ready",
			"chat":        engine.Ready(),
			"ingestion":   processor.Ready(),
			"diagnosis":   diagnoser.Ready(),
			"translation": translator.Configured(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/api/v1/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
