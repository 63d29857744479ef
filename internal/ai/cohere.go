package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Input types the Cohere embed API distinguishes between: documents are
// embedded for storage, queries for retrieval.
const (
	InputTypeSearchDocument = "search_document"
	InputTypeSearchQuery    = "search_query"
)

// CohereConfig holds API settings for the Cohere v2 embed endpoint.
type CohereConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type CohereClient struct {
	cfg        CohereConfig
	httpClient *http.Client
}

func NewCohereClient(cfg CohereConfig) *CohereClient {
	return &CohereClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type embedRequest struct {
	Model          string   `json:"model"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
	Texts          []string `json:"texts,omitempty"`
	Images         []string `json:"images,omitempty"`
}

type embedResponse struct {
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
}

// EmbedTexts returns one embedding per input text, in input order. Callers
// must filter out blank texts first; a blank element is an error, never a
// silently shorter result.
func (c *CohereClient) EmbedTexts(ctx context.Context, inputType string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts for embedding")
	}
	trimmed := make([]string, len(texts))
	for i, t := range texts {
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, fmt.Errorf("text %d is empty", i)
		}
		trimmed[i] = s
	}

	resp, err := c.embed(ctx, embedRequest{
		Model:          c.cfg.Model,
		InputType:      inputType,
		EmbeddingTypes: []string{"float"},
		Texts:          trimmed,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings.Float) != len(trimmed) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d embeddings",
			len(trimmed), len(resp.Embeddings.Float))
	}
	return resp.Embeddings.Float, nil
}

// EmbedQuery embeds a single search query.
func (c *CohereClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := c.EmbedTexts(ctx, InputTypeSearchQuery, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedImage embeds raw image bytes as a base64 data URL.
func (c *CohereClient) EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("embedding image is empty")
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	resp, err := c.embed(ctx, embedRequest{
		Model:          c.cfg.Model,
		InputType:      InputTypeSearchDocument,
		EmbeddingTypes: []string{"float"},
		Images:         []string{dataURL},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings.Float) == 0 || len(resp.Embeddings.Float[0]) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return resp.Embeddings.Float[0], nil
}

func (c *CohereClient) embed(ctx context.Context, reqBody embedRequest) (*embedResponse, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build embed request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embed response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed embedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embed json failed: %w", err)
	}
	return &parsed, nil
}
