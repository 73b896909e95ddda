package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// CohereProvider generates text through the Cohere chat API.
type CohereProvider struct {
	Model  string
	APIKey string
	client *cohereclient.Client
}

// NewCohereProvider creates a Cohere provider reading its key from apiKeyEnv.
func NewCohereProvider(model, apiKeyEnv string) *CohereProvider {
	key := os.Getenv(apiKeyEnv)
	client := cohereclient.NewClient(
		cohereclient.WithToken(key),
		cohereclient.WithHTTPClient(&http.Client{}),
	)
	return &CohereProvider{Model: model, APIKey: key, client: client}
}

// IsConfigured checks if the API key is set.
func (c *CohereProvider) IsConfigured() bool {
	return c.APIKey != ""
}

// Generate sends a prompt to Cohere and returns the response text.
func (c *CohereProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.APIKey == "" {
		return "", errors.New("cohere API key not configured")
	}

	resp, err := c.client.Chat(ctx, &cohere.ChatRequest{
		Message:     prompt,
		Model:       cohere.String(c.Model),
		MaxTokens:   cohere.Int(maxTokens),
		Temperature: cohere.Float64(0.3),
	})
	if err != nil {
		return "", fmt.Errorf("cohere chat error: %w", err)
	}
	if resp == nil {
		return "", errors.New("cohere chat returned empty response")
	}
	return resp.Text, nil
}
