package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/chartloom-cli/internal/ai"
	"github.com/KaramelBytes/chartloom-cli/internal/chart"
	cfgpkg "github.com/KaramelBytes/chartloom-cli/internal/config"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// resolveProvider normalizes a provider name, accepting common aliases.
func resolveProvider(cfg *cfgpkg.Global, flag string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(flag))
	if name == "" && cfg != nil {
		name = strings.ToLower(strings.TrimSpace(cfg.DefaultProvider))
	}
	switch name {
	case "":
		return ai.ProviderGemini, nil
	case "local":
		return ai.ProviderOllama, nil
	case "google":
		return ai.ProviderGemini, nil
	case "claude":
		return ai.ProviderAnthropic, nil
	case "offline", "fallback":
		return ai.ProviderNone, nil
	}
	for _, p := range ai.Providers() {
		if name == p {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown provider: %s (use %s)", name, strings.Join(ai.Providers(), "|"))
}

// apiKeyFor returns the credential for a hosted provider; env wins over config.
func apiKeyFor(provider string, cfg *cfgpkg.Global) string {
	var envs []string
	var fromCfg string
	switch provider {
	case ai.ProviderOpenRouter:
		envs = []string{"OPENROUTER_API_KEY"}
		if cfg != nil {
			fromCfg = cfg.APIKey
		}
	case ai.ProviderGemini:
		envs = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}
		if cfg != nil {
			fromCfg = cfg.GeminiAPIKey
		}
	case ai.ProviderAnthropic:
		envs = []string{"ANTHROPIC_API_KEY"}
		if cfg != nil {
			fromCfg = cfg.AnthropicAPIKey
		}
	}
	for _, e := range envs {
		if v := strings.TrimSpace(os.Getenv(e)); v != "" {
			return v
		}
	}
	return fromCfg
}

// buildRuntime creates the model runtime for the selected provider. The
// "none" provider returns a nil runtime, which sends generation straight to
// the fallback generator.
func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	providerName, err := resolveProvider(cfg, opts.ProviderFlag)
	if err != nil {
		return nil, "", err
	}
	if providerName == ai.ProviderNone {
		return nil, providerName, nil
	}

	rc := ai.RuntimeConfig{
		HTTPTimeout: 60 * time.Second,
		RetryMax:    3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		APIKey:      apiKeyFor(providerName, cfg),
	}
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			rc.RetryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			rc.BaseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			rc.MaxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
	}

	if providerName == ai.ProviderOllama {
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" && cfg != nil {
			host = cfg.OllamaHost
		}
		rc.Host = host
		if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s", providerName)
	}
	return client, providerName, nil
}

func selectModel(provider string, cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return ai.DefaultModel(provider)
}

func enforceBudget(estCost, limit float64) error {
	if limit > 0 && estCost > 0 && estCost > limit {
		return fmt.Errorf("✗ Estimated cost ~$%.4f exceeds budget limit ~$%.4f", estCost, limit)
	}
	return nil
}

// modelErrorHint turns a typed runtime error into advice for the user. The
// provider is read off the error itself.
func modelErrorHint(err error, model string) string {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	provider := ai.ProviderOf(err)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "the model did not answer in time. Raise --timeout-sec or config 'model_timeout_sec'."
	case errors.As(err, &unreach):
		if provider == ai.ProviderOllama {
			return fmt.Sprintf("Ollama not reachable at %s. Ensure it is running or set CHARTLOOM_OLLAMA_HOST / config 'ollama_host'.", unreach.Host)
		}
		return fmt.Sprintf("%s not reachable at %s. Check your network connection.", provider, unreach.Host)
	case errors.As(err, &authErr):
		switch provider {
		case ai.ProviderGemini:
			return "authentication failed: set GOOGLE_API_KEY (a .env file works) or 'chartloom config set gemini_api_key <key>'."
		case ai.ProviderAnthropic:
			return "authentication failed: set ANTHROPIC_API_KEY or 'chartloom config set anthropic_api_key <key>'."
		}
		return "authentication failed: set OPENROUTER_API_KEY or 'chartloom config set api_key <key>'."
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Sprintf("rate limited by %s, try again in ~%ds.", provider, int(rlErr.RetryAfter.Seconds()))
		}
		return fmt.Sprintf("rate limited by %s, please retry.", provider)
	case errors.As(err, &nfErr):
		if provider == ai.ProviderOllama {
			return fmt.Sprintf("local model not available. Install it with 'ollama pull %s' or choose another model.", model)
		}
		return fmt.Sprintf("model not found (%s). Check the name with 'chartloom models list --provider %s'.", model, provider)
	case errors.As(err, &brErr):
		return "request rejected by the provider. Try a smaller --max-tokens or another model."
	case errors.As(err, &qErr):
		return fmt.Sprintf("quota/billing issue. Check your %s account.", provider)
	case errors.As(err, &sErr):
		return fmt.Sprintf("%s appears unavailable (server error). Please retry later.", provider)
	}
	return ""
}

type tokenUsage struct {
	PromptTokens     int `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int `json:"total_tokens" yaml:"total_tokens"`
}

// runRecord is the document written by generate.
type runRecord struct {
	RunID          string       `json:"run_id" yaml:"run_id"`
	Problem        string       `json:"problem" yaml:"problem"`
	Dataset        string       `json:"dataset" yaml:"dataset"`
	Source         chart.Source `json:"source" yaml:"source"`
	Requested      int          `json:"requested" yaml:"requested"`
	FallbackReason string       `json:"fallback_reason,omitempty" yaml:"fallback_reason,omitempty"`
	Provider       string       `json:"provider" yaml:"provider"`
	Model          string       `json:"model,omitempty" yaml:"model,omitempty"`
	Usage          *tokenUsage  `json:"usage,omitempty" yaml:"usage,omitempty"`
	Specs          []chart.Spec `json:"specs" yaml:"specs"`
}

func newRunRecord(res *chart.Result, problem, dataset, provider string) runRecord {
	rec := runRecord{
		RunID:          res.RunID,
		Problem:        problem,
		Dataset:        dataset,
		Source:         res.Source,
		Requested:      res.Requested,
		FallbackReason: res.FallbackReason,
		Provider:       provider,
		Specs:          res.Specs,
	}
	if provider != ai.ProviderNone {
		rec.Model = res.Model
	}
	if res.Usage.TotalTokens > 0 {
		u := tokenUsage(res.Usage)
		rec.Usage = &u
	}
	return rec
}

// encodeOutput renders v as json or yaml.
func encodeOutput(v any, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "json":
		b, err := utils.PrettyJSON(v)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case "yaml", "yml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal yaml: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unsupported --format: %s (use json|yaml)", format)
}

type outputOptions struct {
	Format     string
	OutputPath string
	Quiet      bool
	Writer     io.Writer
}

// writeOutput prints v to the writer or saves it to OutputPath.
func writeOutput(v any, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	b, err := encodeOutput(v, opts.Format)
	if err != nil {
		return err
	}
	if opts.OutputPath == "" {
		_, err := w.Write(b)
		return err
	}
	if err := utils.SafeWriteFile(opts.OutputPath, b); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !opts.Quiet {
		fmt.Fprintf(w, "💾 Saved specs to %s\n", opts.OutputPath)
	}
	return nil
}

// printSpecs lists specs in a compact human form.
func printSpecs(w io.Writer, specs []chart.Spec) {
	for i, s := range specs {
		if !s.Valid() {
			fmt.Fprintf(w, "%2d. ✗ %s\n      reason: %s\n", i+1, s.Title, s.Reason)
			continue
		}
		cols := s.X
		if s.Y != "" {
			cols += " × " + s.Y
		}
		if s.Hue != "" {
			cols += " by " + s.Hue
		}
		fmt.Fprintf(w, "%2d. ✓ [%s] %s (%s)\n", i+1, s.Type, s.Title, cols)
		if s.Justification != "" {
			fmt.Fprintf(w, "      %s\n", s.Justification)
		}
	}
}
