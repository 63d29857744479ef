package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *CohereClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCohereClient(CohereConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "embed-v4.0",
	})
}

func TestEmbedTexts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "embed-v4.0", req.Model)
		assert.Equal(t, InputTypeSearchDocument, req.InputType)
		assert.Equal(t, []string{"float"}, req.EmbeddingTypes)
		assert.Equal(t, []string{"hello", "world"}, req.Texts)
		assert.Empty(t, req.Images)

		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": map[string]any{
				"float": [][]float32{{0.1, 0.2}, {0.3, 0.4}},
			},
		})
	})

	vecs, err := client.EmbedTexts(context.Background(), InputTypeSearchDocument, []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vecs[0])
	assert.Equal(t, []float32{0.3, 0.4}, vecs[1])
}

// A blank element must fail loudly instead of silently producing fewer
// vectors than texts, which would misalign vectors with chunks downstream.
func TestEmbedTextsRejectsBlankElement(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.EmbedTexts(context.Background(), InputTypeSearchDocument,
		[]string{"real chunk", "     ", "another"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text 1 is empty")
}

func TestEmbedTextsNoInputs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.EmbedTexts(context.Background(), InputTypeSearchDocument, nil)
	assert.Error(t, err)
}

func TestEmbedTextsCountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": map[string]any{"float": [][]float32{{1}}},
		})
	})

	_, err := client.EmbedTexts(context.Background(), InputTypeSearchDocument, []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestEmbedQueryUsesQueryInputType(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, InputTypeSearchQuery, req.InputType)

		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": map[string]any{"float": [][]float32{{0.5, 0.6}}},
		})
	})

	vec, err := client.EmbedQuery(context.Background(), "what is this")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.6}, vec)
}

func TestEmbedImageSendsDataURL(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Images, 1)
		assert.True(t, strings.HasPrefix(req.Images[0], "data:image/png;base64,"))
		assert.Empty(t, req.Texts)

		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": map[string]any{"float": [][]float32{{0.9}}},
		})
	})

	vec, err := client.EmbedImage(context.Background(), []byte{0x89, 0x50, 0x4e, 0x47}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.9}, vec)
}

func TestEmbedAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"rate limited"}`))
	})

	_, err := client.EmbedTexts(context.Background(), InputTypeSearchDocument, []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
