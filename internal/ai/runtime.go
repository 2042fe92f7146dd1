package ai

import "context"

// Runtime is implemented by model backends: hosted APIs (OpenRouter, Gemini,
// Anthropic) and local runtimes (Ollama).
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
	// ProviderNone skips the model and uses deterministic fallback charts only.
	ProviderNone = "none"
)

// Providers lists the selectable provider names in display order.
func Providers() []string {
	return []string{ProviderGemini, ProviderOpenRouter, ProviderAnthropic, ProviderOllama, ProviderNone}
}
