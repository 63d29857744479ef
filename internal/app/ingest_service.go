package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"multirag/internal/ai"
	"multirag/internal/metrics"
	"multirag/internal/model"
	"multirag/internal/pkg/pdfextract"
	"multirag/internal/platform/rabbitmq"
	"multirag/internal/webhook"
)

var ErrTaskNotFound = errors.New("task not found")

// ChunkingConfig controls how extracted text is split before embedding.
type ChunkingConfig struct {
	Size    int
	Overlap int
}

// IngestService turns uploaded files into embeddings. It runs inside the
// background worker, never in a request handler.
type IngestService struct {
	docRepo       DocumentStore
	taskRepo      TaskStore
	embeddingRepo EmbeddingStore
	embedder      Embedder
	chunking      ChunkingConfig
	batchSize     int
	previewDir    string
	metrics       *metrics.Metrics
	notifier      *webhook.Notifier
}

func NewIngestService(
	docRepo DocumentStore,
	taskRepo TaskStore,
	embeddingRepo EmbeddingStore,
	embedder Embedder,
	chunking ChunkingConfig,
	batchSize int,
	previewDir string,
	m *metrics.Metrics,
	notifier *webhook.Notifier,
) *IngestService {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &IngestService{
		docRepo:       docRepo,
		taskRepo:      taskRepo,
		embeddingRepo: embeddingRepo,
		embedder:      embedder,
		chunking:      chunking,
		batchSize:     batchSize,
		previewDir:    previewDir,
		metrics:       m,
		notifier:      notifier,
	}
}

// ProcessIngestTask runs one queued ingestion task to completion, updating
// task progress after every document. A failing document is marked failed and
// the rest of the batch still runs; the task itself fails only when no
// document made it through. A task cancelled by the user stops before the
// next document.
func (s *IngestService) ProcessIngestTask(ctx context.Context, msg rabbitmq.IngestTaskMessage) error {
	task, err := s.taskRepo.GetByID(msg.TaskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, msg.TaskID)
	}
	if task.Terminal() {
		log.Printf("skipping task %s: already %s", task.ID, task.Status)
		return nil
	}

	task.Status = model.TaskStatusProcessing
	task.Message = fmt.Sprintf("processing %d document(s)", len(msg.DocumentIDs))
	if err := s.taskRepo.Update(task); err != nil {
		return err
	}

	var processed, failed int
	var lastErr error
	for _, docID := range msg.DocumentIDs {
		if err := s.processDocument(ctx, docID, msg.UserID); err != nil {
			log.Printf("document %s failed: %v", docID, err)
			failed++
			lastErr = fmt.Errorf("document %s: %w", docID, err)
		} else {
			processed++
		}

		// Re-read before writing progress, so a user cancellation takes
		// effect between documents and is never overwritten.
		current, err := s.taskRepo.GetByID(task.ID)
		if err != nil {
			return err
		}
		if current == nil || current.Terminal() {
			log.Printf("stopping task %s: cancelled", task.ID)
			return nil
		}
		task = current
		task.Progress = float64(processed+failed) / float64(len(msg.DocumentIDs)) * 100
		task.Message = fmt.Sprintf("processed %d of %d document(s)", processed, len(msg.DocumentIDs))
		if err := s.taskRepo.Update(task); err != nil {
			return err
		}
	}

	if processed == 0 {
		s.failTask(task, fmt.Sprintf("all %d document(s) failed, last error: %v", failed, lastErr))
		return lastErr
	}

	now := time.Now()
	task.Status = model.TaskStatusCompleted
	task.Progress = 100
	task.Message = fmt.Sprintf("processed %d document(s)", processed)
	if failed > 0 {
		task.Message = fmt.Sprintf("processed %d document(s), %d failed", processed, failed)
	}
	task.CompletedAt = &now
	if err := s.taskRepo.Update(task); err != nil {
		return err
	}

	s.notifier.Notify("document.processed", map[string]any{
		"task_id":      task.ID,
		"user_id":      msg.UserID,
		"document_ids": msg.DocumentIDs,
	})
	return nil
}

func (s *IngestService) processDocument(ctx context.Context, documentID string, userID uint) error {
	start := time.Now()

	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}

	doc.Status = model.DocumentStatusProcessing
	if err := s.docRepo.Update(doc); err != nil {
		return err
	}

	var ingestErr error
	switch doc.ContentType {
	case "application/pdf":
		ingestErr = s.ingestPDF(ctx, doc)
	case "image/png", "image/jpeg":
		ingestErr = s.ingestImage(ctx, doc)
	default:
		ingestErr = fmt.Errorf("%w: %s", ErrUnsupportedFileType, doc.ContentType)
	}

	if ingestErr != nil {
		doc.Status = model.DocumentStatusFailed
		_ = s.docRepo.Update(doc)
		return ingestErr
	}

	doc.Status = model.DocumentStatusProcessed
	if err := s.docRepo.Update(doc); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.DocumentProcessingSeconds.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (s *IngestService) ingestPDF(ctx context.Context, doc *model.Document) error {
	f, err := os.Open(doc.StoragePath)
	if err != nil {
		return fmt.Errorf("open stored pdf failed: %w", err)
	}
	defer f.Close()

	text, pages, err := pdfextract.ExtractText(f)
	if err != nil {
		return fmt.Errorf("extract pdf text failed: %w", err)
	}
	doc.PageCount = pages

	chunks := chunkText(text, s.chunking.Size, s.chunking.Overlap)
	if len(chunks) == 0 {
		return errors.New("pdf contains no extractable text")
	}

	// Embed in batches to respect provider limits.
	var vectors [][]float32
	for i := 0; i < len(chunks); i += s.batchSize {
		end := i + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := s.embedder.EmbedTexts(ctx, ai.InputTypeSearchDocument, chunks[i:end])
		if err != nil {
			return err
		}
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(chunks) {
		return errors.New("embedding count mismatch")
	}

	embeddings := make([]model.Embedding, len(chunks))
	for i := range chunks {
		embeddings[i] = model.Embedding{
			DocumentID:  doc.ID,
			ChunkIndex:  i,
			ContentType: model.ContentTypeText,
			Content:     chunks[i],
		}
		embeddings[i].SetVector(vectors[i])
	}
	if err := s.embeddingRepo.CreateBatch(embeddings); err != nil {
		return err
	}

	doc.TextChunks = len(chunks)
	if s.metrics != nil {
		s.metrics.EmbeddingsWrittenTotal.WithLabelValues(model.ContentTypeText).Add(float64(len(chunks)))
	}
	return nil
}

func (s *IngestService) ingestImage(ctx context.Context, doc *model.Document) error {
	data, err := os.ReadFile(doc.StoragePath)
	if err != nil {
		return fmt.Errorf("read stored image failed: %w", err)
	}

	vector, err := s.embedder.EmbedImage(ctx, data, doc.ContentType)
	if err != nil {
		return err
	}

	// The preview copy survives as the answer-time source for image hits.
	previewPath := doc.StoragePath
	if s.previewDir != "" {
		if err := os.MkdirAll(s.previewDir, 0o755); err != nil {
			return fmt.Errorf("create preview dir failed: %w", err)
		}
		previewPath = filepath.Join(s.previewDir, doc.ID+filepath.Ext(doc.StoragePath))
		if err := os.WriteFile(previewPath, data, 0o644); err != nil {
			return fmt.Errorf("write preview copy failed: %w", err)
		}
	}

	embedding := model.Embedding{
		DocumentID:  doc.ID,
		ChunkIndex:  0,
		ContentType: model.ContentTypeImage,
		Content:     doc.Filename,
		PreviewPath: previewPath,
	}
	embedding.SetVector(vector)
	if err := s.embeddingRepo.CreateBatch([]model.Embedding{embedding}); err != nil {
		return err
	}

	doc.ImageChunks = 1
	if s.metrics != nil {
		s.metrics.EmbeddingsWrittenTotal.WithLabelValues(model.ContentTypeImage).Inc()
	}
	return nil
}

func (s *IngestService) failTask(task *model.Task, message string) {
	now := time.Now()
	task.Status = model.TaskStatusFailed
	task.ErrorMessage = message
	task.CompletedAt = &now
	if err := s.taskRepo.Update(task); err != nil {
		log.Printf("mark task %s failed: %v", task.ID, err)
	}
}

// chunkText splits text into overlapping chunks by rune count. Chunks that
// are all whitespace carry nothing worth embedding and are dropped.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = 1000
	}
	if overlap >= size {
		overlap = size / 2
	}
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		if chunk := string(runes[i:end]); strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		i += size - overlap
		if i >= len(runes) {
			break
		}
	}
	return chunks
}
