package http

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"multirag/internal/ai"
	appsvc "multirag/internal/app"
	"multirag/internal/bootstrap"
	"multirag/internal/cache"
	"multirag/internal/metrics"
	"multirag/internal/platform/rabbitmq"
	"multirag/internal/ratelimit"
	"multirag/internal/repository"
	"multirag/internal/transport/http/handler"
	"multirag/internal/transport/http/middleware"
)

// Server owns the gin engine and the background pieces (IP limiter) that
// need explicit shutdown.
type Server struct {
	Engine    *gin.Engine
	ipLimiter *ratelimit.IPLimiter
}

func NewServer(ctx context.Context, app *bootstrap.App) (*Server, error) {
	cfg := app.Config
	gin.SetMode(cfg.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	m := metrics.New()
	router.Use(middleware.Metrics(m))

	userRepo := repository.NewUserRepository(app.Postgres)
	apiKeyRepo := repository.NewAPIKeyRepository(app.Postgres)
	docRepo := repository.NewDocumentRepository(app.Postgres)
	taskRepo := repository.NewTaskRepository(app.Postgres)
	searchLogRepo := repository.NewSearchLogRepository(app.Postgres)
	embeddingRepo := repository.NewEmbeddingRepository(app.Postgres)

	embedder := ai.NewCohereClient(ai.CohereConfig{
		BaseURL: cfg.Cohere.BaseURL,
		APIKey:  cfg.Cohere.APIKey,
		Model:   cfg.Cohere.EmbeddingModel,
	})

	var generator appsvc.AnswerGenerator
	if cfg.Gemini.APIKey != "" {
		gemini, err := ai.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("init gemini client failed: %w", err)
		}
		generator = gemini
	}

	publisher := rabbitmq.NewTaskPublisher(app.MQConn, cfg.RabbitMQ.IngestQueue)
	taskCache := cache.NewTaskCache(app.Redis, time.Duration(cfg.Redis.TaskTTLSeconds)*time.Second)

	authService := appsvc.NewAuthService(
		userRepo,
		apiKeyRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	uploadDir := filepath.Join(cfg.Storage.DataDir, cfg.Storage.UploadDir)
	docService := appsvc.NewDocumentService(
		docRepo, taskRepo, embeddingRepo, publisher, uploadDir, cfg.MaxFileSizeBytes(),
	)
	searchService := appsvc.NewSearchService(
		embeddingRepo, docRepo, searchLogRepo, embedder, generator,
		appsvc.SearchLimits{DefaultTopK: cfg.Search.DefaultTopK, MaxTopK: cfg.Search.MaxTopK},
		m,
	)
	taskService := appsvc.NewTaskService(taskRepo, taskCache)
	statsService := appsvc.NewStatsService(userRepo, docRepo, embeddingRepo, searchLogRepo)
	backupService := appsvc.NewBackupService(appsvc.BackupStorageConfig{
		Endpoint:  cfg.Backup.Endpoint,
		Region:    cfg.Backup.Region,
		Bucket:    cfg.Backup.Bucket,
		AccessKey: cfg.Backup.AccessKey,
		SecretKey: cfg.Backup.SecretKey,
	}, cfg.Storage.DataDir)

	userLimiter := ratelimit.NewRedisLimiter(app.Redis, cfg.Redis.RateLimitPrefix, cfg.RateLimit.PerMinute)
	ipLimiter := ratelimit.NewIPLimiter(cfg.RateLimit.IPRate, cfg.RateLimit.IPBurst)

	authHandler := handler.NewAuthHandler(authService)
	docHandler := handler.NewDocumentHandler(docService)
	searchHandler := handler.NewSearchHandler(searchService)
	taskHandler := handler.NewTaskHandler(taskService)
	adminHandler := handler.NewAdminHandler(statsService, taskService, backupService)
	n8nHandler := handler.NewN8NHandler(cfg.N8N.WebhookSecret, authService, searchService, docService)
	healthHandler := handler.NewHealthHandler(app)

	router.GET("/health", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.Use(middleware.IPRateLimit(ipLimiter))
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	authed := v1.Group("")
	authed.Use(middleware.Auth(cfg.Auth.JWTSecret, authService), middleware.UserRateLimit(userLimiter))

	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/auth/keys", authHandler.CreateAPIKey)
	authed.GET("/auth/keys", authHandler.ListAPIKeys)
	authed.DELETE("/auth/keys/:id", authHandler.RevokeAPIKey)
	authed.POST("/auth/keys/:id/rotate", authHandler.RotateAPIKey)

	authed.POST("/documents/upload", docHandler.Upload)
	authed.GET("/documents", docHandler.List)
	authed.GET("/documents/:id", docHandler.Get)
	authed.DELETE("/documents/:id", docHandler.Delete)

	authed.POST("/search", searchHandler.Search)
	authed.POST("/search/batch", searchHandler.SearchBatch)

	authed.GET("/tasks", taskHandler.List)
	authed.GET("/tasks/:id", taskHandler.Get)
	authed.POST("/tasks/:id/cancel", taskHandler.Cancel)

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/stats", adminHandler.Stats)
	admin.POST("/tasks/cleanup", adminHandler.CleanupTasks)
	admin.POST("/backups", adminHandler.CreateBackup)
	admin.GET("/backups", adminHandler.ListBackups)
	admin.POST("/backups/restore", adminHandler.RestoreBackup)

	n8n := router.Group("/n8n/webhook")
	n8n.Use(middleware.IPRateLimit(ipLimiter))
	n8n.POST("/search", n8nHandler.Search)
	n8n.POST("/upload", n8nHandler.Upload)

	return &Server{Engine: router, ipLimiter: ipLimiter}, nil
}

func (s *Server) Close() {
	if s.ipLimiter != nil {
		s.ipLimiter.Close()
	}
}
