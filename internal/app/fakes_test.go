package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"multirag/internal/model"
	"multirag/internal/platform/rabbitmq"
	"multirag/internal/repository"
)

var errStoreDown = errors.New("store unavailable")

// In-memory stand-ins for the stores and providers, so failure paths can be
// driven without Postgres or the vendor APIs.

type fakeDocumentStore struct {
	mu           sync.Mutex
	docs         map[string]*model.Document
	deleted      []string
	creates      int
	failCreateAt int // fail the nth Create call, 0 means never
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: map[string]*model.Document{}}
}

func (f *fakeDocumentStore) Create(doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreateAt > 0 && f.creates >= f.failCreateAt {
		return errStoreDown
	}
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocumentStore) GetByID(id string) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeDocumentStore) GetByIDAndUserID(id string, userID uint) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.UserID != userID {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeDocumentStore) ListByUserID(userID uint) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Document
	for _, doc := range f.docs {
		if doc.UserID == userID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) Update(doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocumentStore) DeleteByIDAndUserID(id string, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDocumentStore) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.docs[id]; ok {
		return doc.Status
	}
	return ""
}

type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*model.Task
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[string]*model.Task{}}
}

func (f *fakeTaskStore) Create(task *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *task
	f.tasks[task.ID] = &cp
	return nil
}

func (f *fakeTaskStore) GetByID(id string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *task
	return &cp, nil
}

func (f *fakeTaskStore) GetByIDAndUserID(id string, userID uint) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok || task.UserID != userID {
		return nil, nil
	}
	cp := *task
	return &cp, nil
}

func (f *fakeTaskStore) ListByUserID(userID uint, limit int) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Task
	for _, task := range f.tasks {
		if task.UserID == userID {
			out = append(out, *task)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) Update(task *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *task
	f.tasks[task.ID] = &cp
	return nil
}

func (f *fakeTaskStore) DeleteTerminalBefore(cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeTaskStore) setStatus(id, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task, ok := f.tasks[id]; ok {
		task.Status = status
	}
}

func (f *fakeTaskStore) get(id string) model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.tasks[id]
}

type fakeEmbeddingStore struct {
	mu      sync.Mutex
	batches [][]model.Embedding
	matches []repository.EmbeddingMatch
}

func (f *fakeEmbeddingStore) CreateBatch(embeddings []model.Embedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, embeddings)
	return nil
}

func (f *fakeEmbeddingStore) SearchByUser(userID uint, query []float32, topK int, filter repository.SearchFilter) ([]repository.EmbeddingMatch, error) {
	return f.matches, nil
}

func (f *fakeEmbeddingStore) ListPreviewPathsByDocumentID(documentID string) ([]string, error) {
	return nil, nil
}

func (f *fakeEmbeddingStore) DeleteByDocumentID(documentID string) error {
	return nil
}

type fakeEmbedder struct {
	mu         sync.Mutex
	imageCalls int
	onImage    func(calls int) // runs after each EmbedImage
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, inputType string, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{0.1, 0.2}
	}
	return vecs, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (f *fakeEmbedder) EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error) {
	f.mu.Lock()
	f.imageCalls++
	calls := f.imageCalls
	hook := f.onImage
	f.mu.Unlock()
	if hook != nil {
		hook(calls)
	}
	return []float32{0.3, 0.4}, nil
}

type fakeGenerator struct {
	answer string
	err    error
}

func (f *fakeGenerator) AnswerText(ctx context.Context, question, contextBlock string) (string, error) {
	return f.answer, f.err
}

func (f *fakeGenerator) AnswerImage(ctx context.Context, question string, image []byte, mimeType string) (string, error) {
	return f.answer, f.err
}

type fakeSearchLogStore struct {
	mu      sync.Mutex
	entries []model.SearchLog
}

func (f *fakeSearchLogStore) Create(entry *model.SearchLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []rabbitmq.IngestTaskMessage
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, msg rabbitmq.IngestTaskMessage) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}
