package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multirag/internal/model"
	"multirag/internal/platform/rabbitmq"
)

type ingestFixture struct {
	svc        *IngestService
	docs       *fakeDocumentStore
	tasks      *fakeTaskStore
	embeddings *fakeEmbeddingStore
	embedder   *fakeEmbedder
}

func newIngestFixture() *ingestFixture {
	docs := newFakeDocumentStore()
	tasks := newFakeTaskStore()
	embeddings := &fakeEmbeddingStore{}
	embedder := &fakeEmbedder{}
	svc := NewIngestService(docs, tasks, embeddings, embedder,
		ChunkingConfig{Size: 100, Overlap: 10}, 10, "", nil, nil)
	return &ingestFixture{svc: svc, docs: docs, tasks: tasks, embeddings: embeddings, embedder: embedder}
}

// seedImageDoc stores an uploaded PNG document with a real file on disk.
func seedImageDoc(t *testing.T, fx *ingestFixture, dir, id string) {
	t.Helper()
	path := filepath.Join(dir, id+".png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0o644))
	fx.docs.docs[id] = &model.Document{
		ID:          id,
		UserID:      1,
		Filename:    id + ".png",
		ContentType: "image/png",
		Status:      model.DocumentStatusUploaded,
		StoragePath: path,
	}
}

// seedBrokenDoc stores a document whose file is missing, so processing fails.
func seedBrokenDoc(t *testing.T, fx *ingestFixture, dir, id string) {
	t.Helper()
	fx.docs.docs[id] = &model.Document{
		ID:          id,
		UserID:      1,
		Filename:    id + ".png",
		ContentType: "image/png",
		Status:      model.DocumentStatusUploaded,
		StoragePath: filepath.Join(dir, "does-not-exist.png"),
	}
}

func seedPendingTask(fx *ingestFixture, id string) {
	fx.tasks.tasks[id] = &model.Task{
		ID:     id,
		UserID: 1,
		Type:   model.TaskTypeDocumentIngest,
		Status: model.TaskStatusPending,
	}
}

func TestProcessIngestTaskContinuesPastFailingDocument(t *testing.T) {
	fx := newIngestFixture()
	dir := t.TempDir()
	seedBrokenDoc(t, fx, dir, "doc-bad")
	seedImageDoc(t, fx, dir, "doc-good")
	seedPendingTask(fx, "task-1")

	err := fx.svc.ProcessIngestTask(context.Background(), rabbitmq.IngestTaskMessage{
		TaskID:      "task-1",
		UserID:      1,
		DocumentIDs: []string{"doc-bad", "doc-good"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.DocumentStatusFailed, fx.docs.status("doc-bad"))
	assert.Equal(t, model.DocumentStatusProcessed, fx.docs.status("doc-good"))

	task := fx.tasks.get("task-1")
	assert.Equal(t, model.TaskStatusCompleted, task.Status)
	assert.Equal(t, float64(100), task.Progress)
	assert.Contains(t, task.Message, "1 failed")
	require.Len(t, fx.embeddings.batches, 1)
}

func TestProcessIngestTaskFailsWhenAllDocumentsFail(t *testing.T) {
	fx := newIngestFixture()
	dir := t.TempDir()
	seedBrokenDoc(t, fx, dir, "doc-a")
	seedBrokenDoc(t, fx, dir, "doc-b")
	seedPendingTask(fx, "task-1")

	err := fx.svc.ProcessIngestTask(context.Background(), rabbitmq.IngestTaskMessage{
		TaskID:      "task-1",
		UserID:      1,
		DocumentIDs: []string{"doc-a", "doc-b"},
	})
	require.Error(t, err)

	task := fx.tasks.get("task-1")
	assert.Equal(t, model.TaskStatusFailed, task.Status)
	assert.Contains(t, task.ErrorMessage, "all 2 document(s) failed")
	assert.Empty(t, fx.embeddings.batches)
}

func TestProcessIngestTaskStopsWhenCancelled(t *testing.T) {
	fx := newIngestFixture()
	dir := t.TempDir()
	seedImageDoc(t, fx, dir, "doc-1")
	seedImageDoc(t, fx, dir, "doc-2")
	seedPendingTask(fx, "task-1")

	// Cancel the task while the first document is being embedded; the worker
	// must notice before picking up the second one.
	fx.embedder.onImage = func(calls int) {
		if calls == 1 {
			fx.tasks.setStatus("task-1", model.TaskStatusFailed)
		}
	}

	err := fx.svc.ProcessIngestTask(context.Background(), rabbitmq.IngestTaskMessage{
		TaskID:      "task-1",
		UserID:      1,
		DocumentIDs: []string{"doc-1", "doc-2"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, fx.embedder.imageCalls)
	assert.Equal(t, model.DocumentStatusProcessed, fx.docs.status("doc-1"))
	assert.Equal(t, model.DocumentStatusUploaded, fx.docs.status("doc-2"))
	assert.Equal(t, model.TaskStatusFailed, fx.tasks.get("task-1").Status)
}

func TestProcessIngestTaskSkipsTerminalTask(t *testing.T) {
	fx := newIngestFixture()
	seedPendingTask(fx, "task-1")
	fx.tasks.setStatus("task-1", model.TaskStatusCompleted)

	err := fx.svc.ProcessIngestTask(context.Background(), rabbitmq.IngestTaskMessage{
		TaskID:      "task-1",
		UserID:      1,
		DocumentIDs: []string{"doc-1"},
	})
	require.NoError(t, err)
	assert.Zero(t, fx.embedder.imageCalls)
}
