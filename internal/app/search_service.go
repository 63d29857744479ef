package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"multirag/internal/metrics"
	"multirag/internal/model"
	"multirag/internal/repository"
)

var (
	ErrEmptyQuery     = errors.New("query must not be empty")
	ErrTooManyQueries = errors.New("too many queries in batch")
	ErrInvalidTopK    = errors.New("top_k out of range")
	ErrInvalidFilter  = errors.New("invalid search filter")
	errAnswerDisabled = errors.New("answer generation is not configured")
	errNoImagePreview = errors.New("image hit has no stored preview")

	validContentTypes = map[string]bool{"": true, model.ContentTypeText: true, model.ContentTypeImage: true}
)

const maxBatchQueries = 10

// SearchLimits caps the user-supplied top_k.
type SearchLimits struct {
	DefaultTopK int
	MaxTopK     int
}

type SearchService struct {
	embeddingRepo EmbeddingStore
	docRepo       DocumentStore
	searchLogRepo SearchLogStore
	embedder      Embedder
	generator     AnswerGenerator
	limits        SearchLimits
	metrics       *metrics.Metrics
}

// NewSearchService wires the retrieval pipeline. A nil generator disables
// answer synthesis; searches still return hits.
func NewSearchService(
	embeddingRepo EmbeddingStore,
	docRepo DocumentStore,
	searchLogRepo SearchLogStore,
	embedder Embedder,
	generator AnswerGenerator,
	limits SearchLimits,
	m *metrics.Metrics,
) *SearchService {
	if limits.DefaultTopK <= 0 {
		limits.DefaultTopK = 5
	}
	if limits.MaxTopK <= 0 {
		limits.MaxTopK = 20
	}
	return &SearchService{
		embeddingRepo: embeddingRepo,
		docRepo:       docRepo,
		searchLogRepo: searchLogRepo,
		embedder:      embedder,
		generator:     generator,
		limits:        limits,
		metrics:       m,
	}
}

type SearchInput struct {
	UserID        uint
	Query         string
	TopK          int
	IncludeAnswer bool
	ContentType   string
	DocumentIDs   []string
}

// SearchHit is one retrieved chunk with its similarity score (1 - cosine
// distance, so higher is closer).
type SearchHit struct {
	DocumentID  string  `json:"document_id"`
	Filename    string  `json:"filename"`
	ChunkIndex  int     `json:"chunk_index"`
	ContentType string  `json:"content_type"`
	Content     string  `json:"content"`
	Page        int     `json:"page,omitempty"`
	Similarity  float64 `json:"similarity"`
}

type SearchResult struct {
	Query      string      `json:"query"`
	Hits       []SearchHit `json:"hits"`
	Answer     string      `json:"answer,omitempty"`
	DurationMS int64       `json:"duration_ms"`
}

func (s *SearchService) Search(ctx context.Context, input SearchInput) (*SearchResult, error) {
	start := time.Now()

	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if !validContentTypes[input.ContentType] {
		return nil, fmt.Errorf("%w: content_type %q", ErrInvalidFilter, input.ContentType)
	}

	topK := input.TopK
	if topK == 0 {
		topK = s.limits.DefaultTopK
	}
	if topK < 0 || topK > s.limits.MaxTopK {
		return nil, ErrInvalidTopK
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.embeddingRepo.SearchByUser(input.UserID, queryVec, topK, repository.SearchFilter{
		ContentType: input.ContentType,
		DocumentIDs: input.DocumentIDs,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(matches))
	filenames := map[string]string{}
	for _, m := range matches {
		name, ok := filenames[m.DocumentID]
		if !ok {
			if doc, err := s.docRepo.GetByID(m.DocumentID); err == nil && doc != nil {
				name = doc.Filename
			}
			filenames[m.DocumentID] = name
		}
		hits = append(hits, SearchHit{
			DocumentID:  m.DocumentID,
			Filename:    name,
			ChunkIndex:  m.ChunkIndex,
			ContentType: m.ContentType,
			Content:     m.Content,
			Page:        m.Page,
			Similarity:  1 - m.Distance,
		})
	}

	result := &SearchResult{Query: query, Hits: hits}

	if input.IncludeAnswer && len(matches) > 0 {
		// Answer synthesis is best-effort: a generation failure must not
		// cost the caller their hits.
		answer, err := s.generateAnswer(ctx, query, matches)
		if err != nil {
			log.Printf("generate answer for user %d failed: %v", input.UserID, err)
		} else {
			result.Answer = answer
		}
	}

	result.DurationMS = time.Since(start).Milliseconds()
	s.logSearch(input, topK, result)
	if s.metrics != nil {
		s.metrics.SearchDurationSeconds.
			WithLabelValues(strconv.FormatBool(result.Answer != "")).
			Observe(time.Since(start).Seconds())
	}
	return result, nil
}

// SearchBatch runs up to maxBatchQueries searches sequentially and returns
// one result per query, in order.
func (s *SearchService) SearchBatch(ctx context.Context, userID uint, queries []string, topK int) ([]SearchResult, error) {
	if len(queries) == 0 {
		return nil, ErrEmptyQuery
	}
	if len(queries) > maxBatchQueries {
		return nil, ErrTooManyQueries
	}

	results := make([]SearchResult, 0, len(queries))
	for _, q := range queries {
		res, err := s.Search(ctx, SearchInput{UserID: userID, Query: q, TopK: topK})
		if err != nil {
			return nil, fmt.Errorf("query %q failed: %w", q, err)
		}
		results = append(results, *res)
	}
	return results, nil
}

// generateAnswer grounds Gemini on the top hit when it is an image, otherwise
// on the concatenated text hits.
func (s *SearchService) generateAnswer(ctx context.Context, query string, matches []repository.EmbeddingMatch) (string, error) {
	if s.generator == nil {
		return "", errAnswerDisabled
	}

	if matches[0].ContentType == model.ContentTypeImage {
		data, mimeType, err := s.loadPreview(&matches[0])
		if err != nil {
			return "", err
		}
		return s.generator.AnswerImage(ctx, query, data, mimeType)
	}

	var sb strings.Builder
	for _, m := range matches {
		if m.ContentType != model.ContentTypeText {
			continue
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n---\n")
	}
	return s.generator.AnswerText(ctx, query, sb.String())
}

func (s *SearchService) loadPreview(m *repository.EmbeddingMatch) ([]byte, string, error) {
	if m.PreviewPath == "" {
		return nil, "", errNoImagePreview
	}
	data, err := os.ReadFile(m.PreviewPath)
	if err != nil {
		return nil, "", fmt.Errorf("read preview image failed: %w", err)
	}
	mimeType := "image/png"
	if strings.HasSuffix(strings.ToLower(m.PreviewPath), ".jpg") ||
		strings.HasSuffix(strings.ToLower(m.PreviewPath), ".jpeg") {
		mimeType = "image/jpeg"
	}
	return data, mimeType, nil
}

func (s *SearchService) logSearch(input SearchInput, topK int, result *SearchResult) {
	entry := &model.SearchLog{
		UserID:      input.UserID,
		Query:       result.Query,
		TopK:        topK,
		ResultCount: len(result.Hits),
		Answered:    result.Answer != "",
		DurationMS:  result.DurationMS,
	}
	if err := s.searchLogRepo.Create(entry); err != nil {
		log.Printf("write search log failed: %v", err)
	}
}
