package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multirag/internal/model"
	"multirag/internal/repository"
)

// Input validation happens before the embedding call, so nil dependencies are
// fine for these cases.
func newValidationOnlySearchService() *SearchService {
	return NewSearchService(nil, nil, nil, nil, nil, SearchLimits{DefaultTopK: 5, MaxTopK: 20}, nil)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc := newValidationOnlySearchService()

	_, err := svc.Search(context.Background(), SearchInput{UserID: 1, Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearchRejectsMissingUser(t *testing.T) {
	svc := newValidationOnlySearchService()

	_, err := svc.Search(context.Background(), SearchInput{Query: "hello"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearchRejectsBadContentType(t *testing.T) {
	svc := newValidationOnlySearchService()

	_, err := svc.Search(context.Background(), SearchInput{
		UserID:      1,
		Query:       "hello",
		ContentType: "video",
	})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestSearchRejectsExcessiveTopK(t *testing.T) {
	svc := newValidationOnlySearchService()

	_, err := svc.Search(context.Background(), SearchInput{
		UserID: 1,
		Query:  "hello",
		TopK:   100,
	})
	assert.ErrorIs(t, err, ErrInvalidTopK)
}

func newRetrievalSearchService(generator AnswerGenerator) (*SearchService, *fakeSearchLogStore) {
	docs := newFakeDocumentStore()
	docs.docs["doc-1"] = &model.Document{ID: "doc-1", UserID: 1, Filename: "notes.pdf"}
	embeddings := &fakeEmbeddingStore{matches: []repository.EmbeddingMatch{{
		Embedding: model.Embedding{
			DocumentID:  "doc-1",
			ChunkIndex:  0,
			ContentType: model.ContentTypeText,
			Content:     "relevant text",
		},
		Distance: 0.25,
	}}}
	logs := &fakeSearchLogStore{}
	svc := NewSearchService(embeddings, docs, logs, &fakeEmbedder{}, generator,
		SearchLimits{DefaultTopK: 5, MaxTopK: 20}, nil)
	return svc, logs
}

// A generation failure must degrade to a hits-only result, not take the
// retrieval down with it.
func TestSearchKeepsHitsWhenAnswerFails(t *testing.T) {
	svc, _ := newRetrievalSearchService(&fakeGenerator{err: errors.New("model overloaded")})

	res, err := svc.Search(context.Background(), SearchInput{
		UserID:        1,
		Query:         "what is in my notes",
		IncludeAnswer: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "notes.pdf", res.Hits[0].Filename)
	assert.InDelta(t, 0.75, res.Hits[0].Similarity, 1e-9)
	assert.Empty(t, res.Answer)
}

func TestSearchKeepsHitsWithoutGenerator(t *testing.T) {
	svc, _ := newRetrievalSearchService(nil)

	res, err := svc.Search(context.Background(), SearchInput{
		UserID:        1,
		Query:         "what is in my notes",
		IncludeAnswer: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Empty(t, res.Answer)
}

func TestSearchIncludesAnswerWhenGenerationSucceeds(t *testing.T) {
	svc, _ := newRetrievalSearchService(&fakeGenerator{answer: "the notes mention pgvector"})

	res, err := svc.Search(context.Background(), SearchInput{
		UserID:        1,
		Query:         "what is in my notes",
		IncludeAnswer: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "the notes mention pgvector", res.Answer)
}

func TestSearchLogsEffectiveTopK(t *testing.T) {
	svc, logs := newRetrievalSearchService(nil)

	// TopK omitted: the applied default must land in the log, not the zero.
	_, err := svc.Search(context.Background(), SearchInput{UserID: 1, Query: "hello"})
	require.NoError(t, err)

	require.Len(t, logs.entries, 1)
	assert.Equal(t, 5, logs.entries[0].TopK)
	assert.Equal(t, 1, logs.entries[0].ResultCount)
}

func TestSearchBatchRejectsTooManyQueries(t *testing.T) {
	svc := newValidationOnlySearchService()

	queries := make([]string, maxBatchQueries+1)
	for i := range queries {
		queries[i] = "q"
	}
	_, err := svc.SearchBatch(context.Background(), 1, queries, 5)
	assert.ErrorIs(t, err, ErrTooManyQueries)
}

func TestSearchBatchRejectsEmptyList(t *testing.T) {
	svc := newValidationOnlySearchService()

	_, err := svc.SearchBatch(context.Background(), 1, nil, 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}
