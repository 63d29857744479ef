package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"multirag/internal/ai"
	"multirag/internal/app"
	"multirag/internal/bootstrap"
	"multirag/internal/metrics"
	"multirag/internal/repository"
	"multirag/internal/webhook"
	"multirag/internal/worker"
)

func main() {
	ctx := context.Background()

	boot, err := bootstrap.New(ctx)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer func() {
		if err := boot.Close(); err != nil {
			log.Printf("close resources failed: %v", err)
		}
	}()

	cfg := boot.Config

	docRepo := repository.NewDocumentRepository(boot.Postgres)
	taskRepo := repository.NewTaskRepository(boot.Postgres)
	embeddingRepo := repository.NewEmbeddingRepository(boot.Postgres)

	embedder := ai.NewCohereClient(ai.CohereConfig{
		BaseURL: cfg.Cohere.BaseURL,
		APIKey:  cfg.Cohere.APIKey,
		Model:   cfg.Cohere.EmbeddingModel,
	})
	notifier := webhook.NewNotifier(cfg.N8N.EventURL, cfg.N8N.WebhookSecret)

	ingestService := app.NewIngestService(
		docRepo,
		taskRepo,
		embeddingRepo,
		embedder,
		app.ChunkingConfig{Size: cfg.Ingest.ChunkSize, Overlap: cfg.Ingest.ChunkOverlap},
		cfg.Cohere.BatchSize,
		filepath.Join(cfg.Storage.DataDir, cfg.Storage.PreviewDir),
		metrics.New(),
		notifier,
	)

	ingestWorker := worker.NewIngestWorker(boot.MQConn, ingestService, cfg.RabbitMQ.IngestQueue)
	if err := ingestWorker.Start(ctx); err != nil {
		log.Fatalf("start ingest worker failed: %v", err)
	}
	defer ingestWorker.Close()

	log.Printf("ingest worker consuming queue %s", cfg.RabbitMQ.IngestQueue)

	// Worker housekeeping: drop terminal tasks older than a week.
	taskService := app.NewTaskService(taskRepo, nil)
	cleanupCtx, cancelCleanup := context.WithCancel(ctx)
	defer cancelCleanup()
	go runTaskCleanup(cleanupCtx, taskService)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("ingest worker shutting down")
}

func runTaskCleanup(ctx context.Context, taskService *app.TaskService) {
	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := taskService.CleanupOld(7 * 24 * time.Hour)
			if err != nil {
				log.Printf("task cleanup failed: %v", err)
				continue
			}
			if deleted > 0 {
				log.Printf("task cleanup removed %d old task(s)", deleted)
			}
		}
	}
}
