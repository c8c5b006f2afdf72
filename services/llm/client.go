package llm

import "context"

// Provider identifies a generation backend.
type Provider string

const (
	ProviderGroq      Provider = "groq"
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

// Priority returns the default fallback rank of the provider.
// Lower is tried first. Groq leads on speed; Ollama is the local
// last resort.
func (p Provider) Priority() int {
	switch p {
	case ProviderGroq:
		return 1
	case ProviderGemini:
		return 2
	case ProviderOpenAI:
		return 3
	case ProviderAnthropic:
		return 4
	case ProviderOllama:
		return 5
	default:
		return 100
	}
}

// Valid reports whether p is a known provider tag.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGroq, ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderOllama:
		return true
	}
	return false
}

// Result is a successful generation.
type Result struct {
	Content    string   `json:"content"`
	Provider   Provider `json:"provider"`
	TokensUsed int      `json:"tokensUsed,omitempty"`
}

// Backend is the interface every generation backend implements.
//
// Generate sends one prompt, optionally framed with project context,
// and returns the generated text. Failures should be returned as
// *ProviderError so the orchestrator can classify them.
type Backend interface {
	Provider() Provider
	Generate(ctx context.Context, prompt, contextText string) (*Result, error)
}

// systemPrompt is the shared framing prepended to every request,
// regardless of backend.
const systemPrompt = `You are an expert technical writer helping junior developers create professional README files.
Be clear, concise, and educational. Always explain WHY something is important, not just WHAT it is.
Use markdown formatting appropriately.`

// buildPrompt assembles the single-string prompt used by backends
// without a chat roles API (Gemini, Ollama).
func buildPrompt(prompt, contextText string) string {
	full := systemPrompt + "\n\n"
	if contextText != "" {
		full += "Project Context:\n" + contextText + "\n\n"
	}
	return full + prompt
}
