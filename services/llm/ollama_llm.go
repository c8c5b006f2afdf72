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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("devdocs.llm.ollama") // Specific tracer name

type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// Ollama API request structure
type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model         string `json:"model"`
	CreatedAt     string `json:"created_at"`
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	EvalCount     int    `json:"eval_count,omitempty"`
	PromptEvalCnt int    `json:"prompt_eval_count,omitempty"`
}

func NewOllamaClient() (*OllamaClient, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	model := os.Getenv("OLLAMA_MODEL")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama2"
		slog.Warn("OLLAMA_MODEL not set, defaulting to llama2")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing Ollama client", "base_url", baseURL, "default_model", model)
	return &OllamaClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		model:      model,
	}, nil
}

func (o *OllamaClient) Provider() Provider { return ProviderOllama }

// Generate implements the Backend interface
func (o *OllamaClient) Generate(ctx context.Context, prompt, contextText string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "OllamaClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))
	slog.Debug("Generating text via Ollama", "model", o.model)

	generateURL := o.baseURL + "/api/generate"
	payload := ollamaGenerateRequest{
		Model:  o.model,
		Prompt: buildPrompt(prompt, contextText),
		Stream: false,
		Options: map[string]interface{}{
			"temperature": 0.7,
			"num_predict": 2048,
		},
	}

	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{
			Provider: ProviderOllama,
			Class:    FailurePermanent,
			Err:      fmt.Errorf("failed to marshal request: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", generateURL, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return nil, &ProviderError{
			Provider: ProviderOllama,
			Class:    FailurePermanent,
			Err:      fmt.Errorf("failed to create request: %w", err),
		}
	}
	req.Header.Set("content-type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ollama request failed")
		return nil, networkError(ProviderOllama, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ollama API returned status %d: %s", resp.StatusCode, string(bodyBytes))
		span.RecordError(err)
		span.SetStatus(codes.Error, "ollama non-200 response")
		return nil, newProviderError(ProviderOllama, resp.StatusCode, err)
	}

	var apiResp ollamaGenerateResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, &ProviderError{
			Provider: ProviderOllama,
			Class:    FailureUnknown,
			Err:      fmt.Errorf("failed to parse response JSON: %w", err),
		}
	}

	if apiResp.Response == "" {
		return nil, &ProviderError{
			Provider: ProviderOllama,
			Class:    FailureUnknown,
			Err:      fmt.Errorf("received empty response from Ollama"),
		}
	}

	return &Result{
		Content:    apiResp.Response,
		Provider:   ProviderOllama,
		TokensUsed: apiResp.EvalCount + apiResp.PromptEvalCnt,
	}, nil
}
