package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const answerSystemPrompt = "You are a helpful assistant. Answer the user's question based only on the provided context. If the context does not contain enough information, say so. Do not make up facts."

// GeminiClient generates answers from retrieved context via the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client failed: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// AnswerText answers a question grounded on a text context block.
func (c *GeminiClient) AnswerText(ctx context.Context, question, contextBlock string) (string, error) {
	prompt := answerSystemPrompt +
		"\n\nContext:\n---\n" + contextBlock + "\n---\n\nQuestion: " + question + "\n\nAnswer:"

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// AnswerImage answers a question grounded on an image.
func (c *GeminiClient) AnswerImage(ctx context.Context, question string, image []byte, mimeType string) (string, error) {
	prompt := answerSystemPrompt + "\n\nQuestion about the attached image: " + question

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(image, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
