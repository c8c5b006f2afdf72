package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sashabaranov/go-openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqClient talks to Groq's OpenAI-compatible chat completions API.
type GroqClient struct {
	client *openai.Client
	model  string
}

func NewGroqClient() (*GroqClient, error) {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY environment variable not set")
	}

	model := os.Getenv("GROQ_MODEL")
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL

	slog.Info("Initializing Groq client", "model", model)
	return &GroqClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (g *GroqClient) Provider() Provider { return ProviderGroq }

// Generate implements the Backend interface
func (g *GroqClient) Generate(ctx context.Context, prompt, contextText string) (*Result, error) {
	slog.Debug("Generating text via Groq", "model", g.model)

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if contextText != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: "Project Context:\n" + contextText,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: 0.5,
		MaxTokens:   2048,
		TopP:        1,
	})
	if err != nil {
		return nil, classifyOpenAIError(ProviderGroq, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, &ProviderError{
			Provider: ProviderGroq,
			Class:    FailureUnknown,
			Err:      fmt.Errorf("Groq returned empty content"),
		}
	}

	return &Result{
		Content:    resp.Choices[0].Message.Content,
		Provider:   ProviderGroq,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
