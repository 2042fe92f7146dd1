package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/chartloom-cli/internal/ai"
	"github.com/KaramelBytes/chartloom-cli/internal/chart"
	cfgpkg "github.com/KaramelBytes/chartloom-cli/internal/config"
)

func TestSelectModelPrecedence(t *testing.T) {
	cfg := &cfgpkg.Global{DefaultModel: "cfg-model"}

	if got := selectModel(ai.ProviderGemini, cfg, "cli-model"); got != "cli-model" {
		t.Fatalf("expected CLI model, got %q", got)
	}
	if got := selectModel(ai.ProviderGemini, cfg, ""); got != "cfg-model" {
		t.Fatalf("expected config model, got %q", got)
	}
	cfg.DefaultModel = ""
	if got := selectModel(ai.ProviderGemini, cfg, ""); got != "gemini-2.0-flash" {
		t.Fatalf("expected provider default, got %q", got)
	}
	if got := selectModel(ai.ProviderOllama, nil, ""); got != "llama3.1:8b-instruct" {
		t.Fatalf("expected ollama default, got %q", got)
	}
}

func TestEnforceBudget(t *testing.T) {
	if err := enforceBudget(0.0, 1.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := enforceBudget(2.0, 1.0); err == nil {
		t.Fatal("expected error when cost exceeds budget")
	}
}

func TestResolveProvider(t *testing.T) {
	cases := []struct {
		flag, cfgDefault, want string
		wantErr                bool
	}{
		{"", "", ai.ProviderGemini, false},
		{"", "ollama", ai.ProviderOllama, false},
		{"local", "gemini", ai.ProviderOllama, false},
		{"Google", "", ai.ProviderGemini, false},
		{"claude", "", ai.ProviderAnthropic, false},
		{"offline", "", ai.ProviderNone, false},
		{"openrouter", "none", ai.ProviderOpenRouter, false},
		{"bogus", "", "", true},
	}
	for _, tc := range cases {
		got, err := resolveProvider(&cfgpkg.Global{DefaultProvider: tc.cfgDefault}, tc.flag)
		if (err != nil) != tc.wantErr {
			t.Fatalf("resolveProvider(%q, %q) err=%v", tc.flag, tc.cfgDefault, err)
		}
		if got != tc.want {
			t.Fatalf("resolveProvider(%q, %q) = %q, want %q", tc.flag, tc.cfgDefault, got, tc.want)
		}
	}
}

func TestAPIKeyForPrefersEnv(t *testing.T) {
	cfg := &cfgpkg.Global{APIKey: "or-cfg", GeminiAPIKey: "g-cfg", AnthropicAPIKey: "a-cfg"}
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "g-env")
	t.Setenv("ANTHROPIC_API_KEY", "")

	if got := apiKeyFor(ai.ProviderOpenRouter, cfg); got != "or-cfg" {
		t.Fatalf("openrouter key: %q", got)
	}
	if got := apiKeyFor(ai.ProviderGemini, cfg); got != "g-env" {
		t.Fatalf("gemini key: %q", got)
	}
	if got := apiKeyFor(ai.ProviderAnthropic, cfg); got != "a-cfg" {
		t.Fatalf("anthropic key: %q", got)
	}
	if got := apiKeyFor(ai.ProviderOllama, cfg); got != "" {
		t.Fatalf("ollama needs no key, got %q", got)
	}
}

func TestBuildRuntime(t *testing.T) {
	cfg := &cfgpkg.Global{DefaultProvider: "ollama", OllamaHost: "http://127.0.0.1:1", OllamaTimeoutSec: 1}
	rt, name, err := buildRuntime(cfg, runtimeOptions{})
	if err != nil || name != ai.ProviderOllama {
		t.Fatalf("buildRuntime: name=%q err=%v", name, err)
	}
	if _, ok := rt.(*ai.OllamaClient); !ok {
		t.Fatalf("expected *ai.OllamaClient, got %T", rt)
	}

	rt, name, err = buildRuntime(cfg, runtimeOptions{ProviderFlag: "none"})
	if err != nil || name != ai.ProviderNone || rt != nil {
		t.Fatalf("none provider: rt=%v name=%q err=%v", rt, name, err)
	}

	for _, p := range []string{"gemini", "anthropic", "openrouter"} {
		rt, _, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: p})
		if err != nil || rt == nil {
			t.Fatalf("%s: rt=%v err=%v", p, rt, err)
		}
	}
}

func TestModelErrorHint(t *testing.T) {
	api := func(provider string, status int) *ai.APIError {
		return &ai.APIError{Provider: provider, StatusCode: status}
	}
	cases := []struct {
		err  error
		want string
	}{
		{&ai.AuthError{APIError: api(ai.ProviderGemini, 401)}, "GOOGLE_API_KEY"},
		{&ai.AuthError{APIError: api(ai.ProviderOpenRouter, 401)}, "OPENROUTER_API_KEY"},
		{&ai.AuthError{APIError: api(ai.ProviderAnthropic, 403)}, "ANTHROPIC_API_KEY"},
		{&ai.RateLimitError{APIError: api(ai.ProviderGemini, 429), RetryAfter: 3 * time.Second}, "~3s"},
		{&ai.ModelNotFoundError{APIError: api(ai.ProviderOllama, 404)}, "ollama pull m"},
		{&ai.ModelNotFoundError{APIError: api(ai.ProviderGemini, 404)}, "--provider gemini"},
		{&ai.UnreachableError{Provider: ai.ProviderOllama, Host: "http://h:1", Err: errors.New("refused")}, "http://h:1"},
		{&ai.UnreachableError{Provider: ai.ProviderOllama, Host: "http://h:1", Err: context.DeadlineExceeded}, "--timeout-sec"},
		{&chart.ModelError{Err: &ai.ServerError{APIError: api(ai.ProviderAnthropic, 503)}}, "anthropic appears unavailable"},
	}
	for _, tc := range cases {
		if got := modelErrorHint(tc.err, "m"); !strings.Contains(got, tc.want) {
			t.Fatalf("hint for %v: %q does not contain %q", tc.err, got, tc.want)
		}
	}
	if got := modelErrorHint(nil, "m"); got != "" {
		t.Fatalf("expected no hint, got %q", got)
	}
}

func TestWriteOutputFormats(t *testing.T) {
	rec := runRecord{
		RunID:  "r1",
		Source: chart.SourceFallback,
		Specs:  []chart.Spec{{Type: chart.Histogram, X: "price", Title: "Distribution of price", Justification: "j", Bins: 20}},
		Usage:  &tokenUsage{TotalTokens: 7},
	}
	var buf bytes.Buffer
	if err := writeOutput(rec, outputOptions{Format: "json", Writer: &buf}); err != nil {
		t.Fatalf("json: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"run_id": "r1"`, `"y": null`, `"total_tokens": 7`} {
		if !strings.Contains(out, want) {
			t.Fatalf("json output missing %s:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := writeOutput(rec, outputOptions{Format: "yaml", Writer: &buf}); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	var back map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("yaml decode: %v", err)
	}
	if back["run_id"] != "r1" || back["source"] != "fallback" {
		t.Fatalf("unexpected yaml document: %v", back)
	}
	cands, err := chart.ReadSpecs(buf.Bytes())
	if err != nil || len(cands) != 1 || cands[0]["x"] != "price" {
		t.Fatalf("spec round trip: %v %v", cands, err)
	}

	if err := writeOutput(rec, outputOptions{Format: "xml", Writer: &buf}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
