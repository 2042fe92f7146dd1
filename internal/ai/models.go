package ai

import (
	"encoding/json"
	"os"
)

// Model metadata and simple pricing helpers for cost warnings.
// Prices are illustrative and should be verified against provider docs.

type ModelInfo struct {
	Name          string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

func model(name string, ctx int, in, out float64) ModelInfo {
	return ModelInfo{Name: name, ContextTokens: ctx, InputPerK: in, OutputPerK: out}
}

var models = catalogOf(
	// OpenRouter names
	model("deepseek/deepseek-r1:free", 128000, 0, 0),
	model("openai/gpt-4o-mini", 128000, 0.0006, 0.0024),
	model("openai/gpt-4o", 128000, 0.005, 0.015),
	model("openai/gpt-4.1-mini", 128000, 0.0005, 0.0015),
	model("anthropic/claude-3.5-sonnet", 200000, 0.003, 0.015),
	model("anthropic/claude-3-haiku", 200000, 0.00025, 0.00125),
	model("google/gemini-2.0-flash-001", 1000000, 0.0001, 0.0004),
	model("google/gemini-1.5-pro", 1000000, 0.00125, 0.005),
	model("meta-llama/llama-3.1-8b-instruct", 131072, 0, 0),
	model("meta-llama/llama-3.1-70b-instruct", 131072, 0, 0),
	// Gemini API
	model("gemini-2.0-flash", 1000000, 0.0001, 0.0004),
	model("gemini-2.0-flash-lite", 1000000, 0.000075, 0.0003),
	model("gemini-2.5-flash", 1000000, 0.0003, 0.0025),
	model("gemini-2.5-pro", 1000000, 0.00125, 0.01),
	// Anthropic API
	model("claude-3-5-haiku-latest", 200000, 0.0008, 0.004),
	model("claude-sonnet-4-5", 200000, 0.003, 0.015),
	// Common local (Ollama) tags
	model("llama3:latest", 8192, 0, 0),
	model("llama3.1:8b-instruct", 8192, 0, 0),
	model("mistral-nemo:latest", 8192, 0, 0),
	model("mistral:7b-instruct", 8192, 0, 0),
	model("phi3:mini-128k-instruct", 128000, 0, 0),
	model("qwen2.5:7b-instruct", 32768, 0, 0),
)

func catalogOf(list ...ModelInfo) map[string]ModelInfo {
	m := make(map[string]ModelInfo, len(list))
	for _, mi := range list {
		m[mi.Name] = mi
	}
	return m
}

// DefaultModel is the model used for a provider when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGemini:
		return "gemini-2.0-flash"
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	case ProviderOllama:
		return "llama3.1:8b-instruct"
	case ProviderOpenRouter:
		return "openai/gpt-4o-mini"
	}
	return ""
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
// Example JSON entry:
// { "openai/gpt-4o-mini": {"Name":"openai/gpt-4o-mini","ContextTokens":128000,"InputPerK":0.0006,"OutputPerK":0.0024} }
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	var m map[string]ModelInfo
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// OverrideCatalog replaces the in-memory catalog entirely.
func OverrideCatalog(m map[string]ModelInfo) {
	if m == nil {
		return
	}
	models = m
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	if m == nil {
		return
	}
	for k, v := range m {
		models[k] = v
	}
}

// Catalog returns a shallow copy of the current model catalog.
func Catalog() map[string]ModelInfo {
	out := make(map[string]ModelInfo, len(models))
	for k, v := range models {
		out[k] = v
	}
	return out
}
