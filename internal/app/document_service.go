package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"multirag/internal/model"
	"multirag/internal/platform/rabbitmq"
	"multirag/internal/repository"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds the size limit")
	ErrNoFiles             = errors.New("no files in upload")
)

// extContentTypes maps accepted upload extensions to the content type stored
// with the document.
var extContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// IngestTaskPublisher enqueues an ingestion task for the background worker.
type IngestTaskPublisher interface {
	Publish(ctx context.Context, msg rabbitmq.IngestTaskMessage) error
}

type DocumentService struct {
	docRepo       DocumentStore
	taskRepo      TaskStore
	embeddingRepo EmbeddingStore
	publisher     IngestTaskPublisher
	uploadDir     string
	maxFileSize   int64
}

func NewDocumentService(
	docRepo DocumentStore,
	taskRepo TaskStore,
	embeddingRepo EmbeddingStore,
	publisher IngestTaskPublisher,
	uploadDir string,
	maxFileSize int64,
) *DocumentService {
	return &DocumentService{
		docRepo:       docRepo,
		taskRepo:      taskRepo,
		embeddingRepo: embeddingRepo,
		publisher:     publisher,
		uploadDir:     uploadDir,
		maxFileSize:   maxFileSize,
	}
}

// UploadResult is returned synchronously from an upload; processing finishes
// later under the returned task.
type UploadResult struct {
	TaskID           string           `json:"task_id"`
	Documents        []model.Document `json:"documents"`
	EstimatedSeconds int              `json:"estimated_seconds"`
}

// Rough per-file processing estimate shown to polling clients.
const estimatedSecondsPerFile = 15

// Upload validates and stores the files, records one document row per file,
// and enqueues a single ingestion task covering all of them.
func (s *DocumentService) Upload(ctx context.Context, userID uint, files []*multipart.FileHeader) (*UploadResult, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if _, ok := extContentTypes[ext]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, fh.Filename)
		}
		if s.maxFileSize > 0 && fh.Size > s.maxFileSize {
			return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, fh.Filename)
		}
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir failed: %w", err)
	}

	docs := make([]model.Document, 0, len(files))
	docIDs := make([]string, 0, len(files))
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		docID := uuid.NewString()
		storagePath := filepath.Join(s.uploadDir, docID+ext)

		if err := saveUploadedFile(fh, storagePath); err != nil {
			s.discardUploaded(userID, docs)
			return nil, err
		}

		doc := model.Document{
			ID:          docID,
			UserID:      userID,
			Filename:    filepath.Base(fh.Filename),
			SizeBytes:   fh.Size,
			ContentType: extContentTypes[ext],
			Status:      model.DocumentStatusUploaded,
			StoragePath: storagePath,
		}
		if err := s.docRepo.Create(&doc); err != nil {
			_ = os.Remove(storagePath)
			s.discardUploaded(userID, docs)
			return nil, err
		}
		docs = append(docs, doc)
		docIDs = append(docIDs, doc.ID)
	}

	task := &model.Task{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   model.TaskTypeDocumentIngest,
		Status: model.TaskStatusPending,
	}
	if err := s.taskRepo.Create(task); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, rabbitmq.IngestTaskMessage{
		TaskID:      task.ID,
		UserID:      userID,
		DocumentIDs: docIDs,
	}); err != nil {
		now := time.Now()
		task.Status = model.TaskStatusFailed
		task.ErrorMessage = "failed to enqueue ingestion"
		task.CompletedAt = &now
		_ = s.taskRepo.Update(task)
		return nil, err
	}

	return &UploadResult{
		TaskID:           task.ID,
		Documents:        docs,
		EstimatedSeconds: estimatedSecondsPerFile * len(docs),
	}, nil
}

// UploadBytes ingests a file delivered as raw bytes, for callers that do not
// speak multipart (the n8n webhook).
func (s *DocumentService) UploadBytes(ctx context.Context, userID uint, filename string, data []byte) (*UploadResult, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	if len(data) == 0 {
		return nil, ErrNoFiles
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := extContentTypes[ext]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filename)
	}
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, filename)
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir failed: %w", err)
	}

	docID := uuid.NewString()
	storagePath := filepath.Join(s.uploadDir, docID+ext)
	if err := os.WriteFile(storagePath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write stored file failed: %w", err)
	}

	doc := model.Document{
		ID:          docID,
		UserID:      userID,
		Filename:    filepath.Base(filename),
		SizeBytes:   int64(len(data)),
		ContentType: extContentTypes[ext],
		Status:      model.DocumentStatusUploaded,
		StoragePath: storagePath,
	}
	if err := s.docRepo.Create(&doc); err != nil {
		_ = os.Remove(storagePath)
		return nil, err
	}

	task := &model.Task{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   model.TaskTypeDocumentIngest,
		Status: model.TaskStatusPending,
	}
	if err := s.taskRepo.Create(task); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, rabbitmq.IngestTaskMessage{
		TaskID:      task.ID,
		UserID:      userID,
		DocumentIDs: []string{doc.ID},
	}); err != nil {
		now := time.Now()
		task.Status = model.TaskStatusFailed
		task.ErrorMessage = "failed to enqueue ingestion"
		task.CompletedAt = &now
		_ = s.taskRepo.Update(task)
		return nil, err
	}

	return &UploadResult{
		TaskID:           task.ID,
		Documents:        []model.Document{doc},
		EstimatedSeconds: estimatedSecondsPerFile,
	}, nil
}

func (s *DocumentService) List(userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByUserID(userID)
}

func (s *DocumentService) Get(userID uint, documentID string) (*model.Document, error) {
	if userID == 0 || documentID == "" {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Delete removes the document row, its embeddings, and all files on disk.
func (s *DocumentService) Delete(userID uint, documentID string) error {
	doc, err := s.Get(userID, documentID)
	if err != nil {
		return err
	}

	previews, err := s.embeddingRepo.ListPreviewPathsByDocumentID(doc.ID)
	if err != nil {
		return err
	}
	if err := s.embeddingRepo.DeleteByDocumentID(doc.ID); err != nil {
		return err
	}
	if err := s.docRepo.DeleteByIDAndUserID(doc.ID, userID); err != nil {
		return err
	}

	// Files go last so a failed DB delete never leaves dangling rows.
	_ = os.Remove(doc.StoragePath)
	for _, p := range previews {
		_ = os.Remove(p)
	}
	return nil
}

// Stats summarizes global corpus counters for the admin endpoint.
type Stats struct {
	Users           int64 `json:"users"`
	Documents       int64 `json:"documents"`
	Embeddings      int64 `json:"embeddings"`
	TotalSizeBytes  int64 `json:"total_size_bytes"`
	SearchesLastDay int64 `json:"searches_last_day"`
}

type StatsService struct {
	userRepo      *repository.UserRepository
	docRepo       *repository.DocumentRepository
	embeddingRepo *repository.EmbeddingRepository
	searchLogRepo *repository.SearchLogRepository
}

func NewStatsService(
	userRepo *repository.UserRepository,
	docRepo *repository.DocumentRepository,
	embeddingRepo *repository.EmbeddingRepository,
	searchLogRepo *repository.SearchLogRepository,
) *StatsService {
	return &StatsService{
		userRepo:      userRepo,
		docRepo:       docRepo,
		embeddingRepo: embeddingRepo,
		searchLogRepo: searchLogRepo,
	}
}

func (s *StatsService) Collect() (*Stats, error) {
	users, err := s.userRepo.Count()
	if err != nil {
		return nil, err
	}
	docs, err := s.docRepo.Count()
	if err != nil {
		return nil, err
	}
	embeddings, err := s.embeddingRepo.Count()
	if err != nil {
		return nil, err
	}
	totalSize, err := s.docRepo.SumSizeBytes()
	if err != nil {
		return nil, err
	}
	searches, err := s.searchLogRepo.CountSince(time.Now().Add(-24 * time.Hour))
	if err != nil {
		return nil, err
	}
	return &Stats{
		Users:           users,
		Documents:       docs,
		Embeddings:      embeddings,
		TotalSizeBytes:  totalSize,
		SearchesLastDay: searches,
	}, nil
}

// discardUploaded rolls back the rows and files of a partially stored batch
// so a mid-upload failure never leaves orphaned documents with no task.
func (s *DocumentService) discardUploaded(userID uint, docs []model.Document) {
	for _, doc := range docs {
		if err := s.docRepo.DeleteByIDAndUserID(doc.ID, userID); err != nil {
			log.Printf("discard document %s failed: %v", doc.ID, err)
		}
		_ = os.Remove(doc.StoragePath)
	}
}

func saveUploadedFile(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open uploaded file failed: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create stored file failed: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("write stored file failed: %w", err)
	}
	return nil
}
