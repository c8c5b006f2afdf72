package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicBaseURL    = "https://api.anthropic.com/v1/messages"
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`

	Temperature *float32 `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
	Usage   *anthropicUsage    `json:"usage,omitempty"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// --- Client Implementation ---

type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
}

func NewAnthropicClient() (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	model := os.Getenv("CLAUDE_MODEL")

	if apiKey == "" {
		secretPath := "/run/secrets/anthropic_api_key"
		if content, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			slog.Info("Read Anthropic API Key from secrets")
		}
	}

	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is missing")
	}

	if model == "" {
		model = "claude-3-haiku-20240307"
		slog.Info("CLAUDE_MODEL not set, defaulting to", "model", model)
	}

	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		model:      model,
	}, nil
}

func (a *AnthropicClient) Provider() Provider { return ProviderAnthropic }

// Generate implements the Backend interface
func (a *AnthropicClient) Generate(ctx context.Context, prompt, contextText string) (*Result, error) {
	messages := []anthropicMessage{}
	if contextText != "" {
		messages = append(messages, anthropicMessage{
			Role:    "user",
			Content: "Project Context:\n" + contextText,
		})
		messages = append(messages, anthropicMessage{
			Role:    "assistant",
			Content: "Understood. I have the project context.",
		})
	}
	messages = append(messages, anthropicMessage{Role: "user", Content: prompt})

	reqPayload := anthropicRequest{
		Model:     a.model,
		Messages:  messages,
		System:    systemPrompt,
		MaxTokens: 2048,
	}

	reqBodyBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, &ProviderError{
			Provider: ProviderAnthropic,
			Class:    FailurePermanent,
			Err:      fmt.Errorf("failed to marshal request: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", anthropicBaseURL, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return nil, &ProviderError{
			Provider: ProviderAnthropic,
			Class:    FailurePermanent,
			Err:      fmt.Errorf("failed to create request: %w", err),
		}
	}

	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	slog.Debug("Sending REST request to Anthropic", "model", a.model)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, networkError(ProviderAnthropic, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, newProviderError(ProviderAnthropic, resp.StatusCode,
			fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(bodyBytes)))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, &ProviderError{
			Provider: ProviderAnthropic,
			Class:    FailureUnknown,
			Err:      fmt.Errorf("failed to parse response JSON: %w", err),
		}
	}

	if apiResp.Error != nil {
		return nil, &ProviderError{
			Provider: ProviderAnthropic,
			Class:    FailureUnknown,
			Err:      fmt.Errorf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message),
		}
	}

	finalText := ""
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			finalText += block.Text
		}
	}
	if finalText == "" {
		return nil, &ProviderError{
			Provider: ProviderAnthropic,
			Class:    FailureUnknown,
			Err:      fmt.Errorf("received empty content from Anthropic"),
		}
	}

	result := &Result{Content: finalText, Provider: ProviderAnthropic}
	if apiResp.Usage != nil {
		result.TokensUsed = apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens
	}
	return result, nil
}
