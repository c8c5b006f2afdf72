package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context) (*GeminiClient, error) {
	apiKey := os.Getenv("GOOGLE_AI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_AI_API_KEY environment variable not set")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.5-flash"
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	slog.Info("Initializing Gemini client", "model", model)
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Provider() Provider { return ProviderGemini }

// Generate implements the Backend interface
func (g *GeminiClient) Generate(ctx context.Context, prompt, contextText string) (*Result, error) {
	full := buildPrompt(prompt, contextText)

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		nil,
	)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &ProviderError{
			Provider: ProviderGemini,
			Class:    FailureUnknown,
			Err:      fmt.Errorf("gemini returned no candidates"),
		}
	}

	text := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	if text == "" {
		return nil, &ProviderError{
			Provider: ProviderGemini,
			Class:    FailureUnknown,
			Err:      fmt.Errorf("gemini returned empty text"),
		}
	}

	result := &Result{Content: text, Provider: ProviderGemini}
	if resp.UsageMetadata != nil {
		result.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}

func classifyGeminiError(err error) *ProviderError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newProviderError(ProviderGemini, apiErr.Code, err)
	}
	return networkError(ProviderGemini, err)
}
