package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentforge/api/internal/artifacts"
	"github.com/agentforge/api/internal/config"
	"github.com/agentforge/api/internal/database"
	"github.com/agentforge/api/internal/eventbus"
	"github.com/agentforge/api/internal/extract"
	"github.com/agentforge/api/internal/gate"
	"github.com/agentforge/api/internal/generation"
	"github.com/agentforge/api/internal/handlers"
	"github.com/agentforge/api/internal/llm"
	"github.com/agentforge/api/internal/middleware"
	"github.com/agentforge/api/internal/modelid"
	"github.com/agentforge/api/internal/remote"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger with stdout sync
	zapConfig := zap.NewProductionConfig()
	zapConfig.OutputPaths = []string{"stdout"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}
	logger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("AgentForge API starting...",
		zap.String("version", "0.1.0"),
		zap.String("environment", os.Getenv("GO_ENV")),
	)

	// Load configuration; degraded defaults are logged, never silent
	cfg := config.Load()
	for _, name := range cfg.AppliedDefaults() {
		logger.Warn("configuration fell back to development default", zap.String("key", name))
	}

	// Initialize NATS (optional)
	var bus *eventbus.Bus
	bus, err = eventbus.Connect(cfg.NATSURL, logger)
	if err != nil {
		logger.Error("failed to connect to NATS, lifecycle events disabled", zap.Error(err))
		bus = nil
	} else {
		defer bus.Close()
	}

	// Initialize database (optional bookkeeping)
	var db *database.Postgres
	if cfg.DatabaseURL != "" {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		db, err = database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
	} else {
		logger.Warn("DATABASE_URL not set, generation bookkeeping disabled")
	}

	// Initialize Redis
	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Core collaborators
	extractor := extract.NewExtractor(logger)
	store := artifacts.NewStore(artifacts.NewRedisBackend(rdb.Client()), cfg.ArtifactTTL, logger)
	resolver := modelid.NewResolver(modelid.NewRedisSettingsStore(rdb.Client()), cfg.Region, cfg.DefaultModelID, logger)
	securityGate := gate.NewGate(logger)

	// Model backend: the hosted model service by default, the Anthropic
	// API directly when a key is configured
	var client llm.Client
	if cfg.AnthropicAPIKey != "" {
		logger.Info("using Anthropic API backend")
		client = llm.NewAnthropicClient(cfg.AnthropicAPIKey, logger)
	} else {
		logger.Info("using model service backend", zap.String("url", cfg.ModelServiceURL))
		client = llm.NewServiceClient(cfg.ModelServiceURL, cfg.RemoteReadTimeout, logger)
	}

	// Remote expert agent runtime (optional)
	var runtime remote.Runtime
	var invoker *remote.Invoker
	if cfg.RemoteRuntimeURL != "" {
		runtime = remote.NewHTTPRuntime(cfg.RemoteRuntimeURL, cfg.RemoteConnectTimeout, cfg.RemoteReadTimeout, logger)
		invoker = remote.NewInvoker(runtime, extractor, store, cfg.RemoteRuntimeEnabled, cfg.RemoteAgentRef, logger)
	} else {
		logger.Info("no remote runtime configured, local generation only")
	}

	sessions := remote.NewSessionTable(cfg.SessionIdleTTL, logger)
	defer sessions.Stop()

	service := generation.NewService(client, invoker, extractor, store, resolver, securityGate, db, bus, cfg.Temperature, logger)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())

	// Health and metrics
	healthHandler := handlers.NewHealthHandler(db, rdb, cfg.ModelServiceURL)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/deep", healthHandler.DeepHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Initialize handlers
	generateHandler := handlers.NewGenerateHandler(service, db, middleware.ModelServiceCircuitBreaker, logger)
	artifactsHandler := handlers.NewArtifactsHandler(store, bus, logger)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(cfg.JWTSecret, logger))
		protected.Use(middleware.RateLimitMiddleware(middleware.DefaultRateLimiter))
		{
			// Generation routes - stricter rate limit + circuit breaker
			code := protected.Group("/code")
			code.Use(middleware.RateLimitMiddleware(middleware.StrictRateLimiter))
			code.Use(middleware.CircuitBreakerMiddleware(middleware.ModelServiceCircuitBreaker))
			{
				code.POST("/generate", generateHandler.Generate)
				code.GET("/history", generateHandler.History)
			}

			// Artifact routes
			artifactRoutes := protected.Group("/artifacts")
			{
				artifactRoutes.GET("/:id", artifactsHandler.List)
				artifactRoutes.GET("/:id/:slot", artifactsHandler.Get)
				artifactRoutes.DELETE("/:id", artifactsHandler.Delete)
			}

			// Chat routes require a configured runtime
			if runtime != nil {
				chat := remote.NewChatService(runtime, sessions, extractor, logger)
				chatHandler := handlers.NewChatHandler(chat, sessions, logger)
				chatRoutes := protected.Group("/chat")
				{
					chatRoutes.POST("/invoke", chatHandler.Invoke)
					chatRoutes.POST("/invoke/stream", chatHandler.InvokeStream)
					chatRoutes.POST("/sessions", chatHandler.CreateSession)
					chatRoutes.GET("/sessions", chatHandler.ListSessions)
					chatRoutes.GET("/sessions/:id/history", chatHandler.SessionHistory)
					chatRoutes.POST("/sessions/:id/close", chatHandler.CloseSession)
					chatRoutes.DELETE("/sessions/:id", chatHandler.DeleteSession)
				}
			}
		}
	}

	// Create HTTP server. Write timeout stays generous because buffered
	// generation responses arrive minutes after the request.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited gracefully")
}
