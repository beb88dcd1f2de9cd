// Package perception maps free-text user input to typed intents. The LLM
// is a perception transducer here: it describes what the user asked for,
// and the classifier validates and routes that description. All field
// validation lives in this package so the workflow engine can assume
// well-formed input.
package perception

import (
	"context"
	"fmt"
	"strings"
	"time"

	"floragent/internal/logging"

	"google.golang.org/genai"
)

// LLMClient defines the completion contract for the language-model
// provider. Both the classifier and the response composer speak it; tests
// substitute fakes.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:  apiKey,
		Model:   "gemini-2.5-flash",
		Timeout: 60 * time.Second,
	}
}

// GeminiClient implements LLMClient on the official genai SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a Gemini client. A missing API key is a
// configuration error caught before this point; here it only fails the
// SDK handshake.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// Complete sends a prompt and returns the trimmed completion text. The
// call is bounded by the configured timeout so a hung provider surfaces
// as an error instead of blocking the turn forever.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	timer := logging.StartTimer(logging.CategoryPerception, "gemini completion")
	defer timer.StopWithInfo()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty completion")
	}
	return text, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}
