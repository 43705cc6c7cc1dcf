package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipic/internal/api"
	"recipic/internal/config"
	"recipic/internal/llm"
	"recipic/internal/logger"
	"recipic/internal/platform/gemini"
	"recipic/internal/platform/openai"
	"recipic/internal/ratelimit"
	"recipic/internal/recipe"
)

func main() {
	ctx := context.Background()

	configPath := os.Getenv("RECIPIC_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}

	log, err := logger.New(cfg.LogEnv)
	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}
	defer log.Sync()

	provider, closeProvider, err := newProvider(ctx, cfg)
	if err != nil {
		log.Fatal("error creating provider", zap.String("provider", cfg.Provider), zap.Error(err))
	}
	defer closeProvider()

	// Assigned only when configured so the interfaces stay nil otherwise.
	var cache recipe.GenerationCache
	var history api.GenerationStore
	if cfg.DatabaseURL != "" {
		dbStore, err := recipe.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("error creating postgresstore", zap.Error(err))
		}
		defer dbStore.Close()
		cache, history = dbStore, dbStore
	}

	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		l, redisClient, err := ratelimit.NewFromURL(pingCtx, cfg.RedisURL, ratelimit.Config{
			Window: time.Hour,
			Limit:  cfg.RateLimitPerHour,
		}, log)
		cancel()
		if err != nil {
			// Generation still works without the limiter.
			log.Warn("rate limiting disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			limiter = l
		}
	}

	generator := recipe.NewGenerator(provider, nil, cache, recipe.Options{
		TextModel:   cfg.TextModel,
		VisionModel: cfg.VisionModel,
		Choices:     cfg.Choices,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}, log)
	handler := api.NewHandler(generator, history, cfg.RequestTimeout(), log)

	if cfg.LogEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(cfg, handler, limiter, log)

	log.Info("server starting", zap.String("addr", cfg.ListenAddr), zap.String("provider", cfg.Provider))
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

// newProvider builds the configured LLM provider and the func that releases it.
func newProvider(ctx context.Context, cfg config.Config) (llm.Provider, func(), error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { client.Close() }, nil
	default:
		client := openai.NewClient(cfg.BaseURL, cfg.APIKey, &http.Client{Timeout: cfg.RequestTimeout() + 5*time.Second})
		return client, func() {}, nil
	}
}

// newRouter wires the middleware and routes. limiter may be nil.
func newRouter(cfg config.Config, handler *api.Handler, limiter *ratelimit.Limiter, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(logger.Middleware(log), gin.Recovery())

	// Configure CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logger.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if limiter == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{limiter.Middleware(), h}
	}

	r.GET("/", handler.Index)
	r.POST("/", limited(handler.SubmitForm)...)
	r.StaticFS("/static", api.StaticFS())

	apiGroup := r.Group("/api")
	apiGroup.POST("/text/generate", limited(handler.GenerateText)...)
	apiGroup.POST("/image/analyze", limited(handler.AnalyzeImage)...)
	apiGroup.POST("/image/upload", handler.UploadImage)
	apiGroup.GET("/generations", handler.ListGenerations)
	apiGroup.GET("/generations/:hash", handler.GetGeneration)
	apiGroup.GET("/healthz", handler.Health)

	return r
}
