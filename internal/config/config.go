package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/chartloom-cli/internal/chart"
)

// Global configuration structure.
type Global struct {
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	DefaultModel    string `mapstructure:"default_model" yaml:"default_model"`
	// APIKey is the OpenRouter key.
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	GeminiAPIKey    string  `mapstructure:"gemini_api_key" yaml:"gemini_api_key"`
	AnthropicAPIKey string  `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// Chart generation
	SpecCount       int      `mapstructure:"spec_count" yaml:"spec_count"`
	Palette         string   `mapstructure:"palette" yaml:"palette"`
	DefaultColor    string   `mapstructure:"default_color" yaml:"default_color"`
	AllowDuplicates bool     `mapstructure:"allow_duplicates" yaml:"allow_duplicates"`
	AllowedTypes    []string `mapstructure:"allowed_types" yaml:"allowed_types"`
	ModelTimeoutSec int      `mapstructure:"model_timeout_sec" yaml:"model_timeout_sec"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// OTLPEndpoint enables trace export when set (host:port).
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// Dir returns ~/.chartloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".chartloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.chartloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("CHARTLOOM")
	v.AutomaticEnv()

	v.SetDefault("default_provider", "gemini")
	v.SetDefault("default_model", "")
	v.SetDefault("api_key", "")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("max_tokens", 1000)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("spec_count", chart.DefaultCount)
	v.SetDefault("palette", chart.DefaultPalette)
	v.SetDefault("default_color", "#4C72B0")
	v.SetDefault("allow_duplicates", false)
	v.SetDefault("allowed_types", []string{})
	v.SetDefault("model_timeout_sec", 60)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 60)
	v.SetDefault("otlp_endpoint", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Comma-separated lists from the environment arrive as a single element.
	if len(c.AllowedTypes) == 1 && strings.Contains(c.AllowedTypes[0], ",") {
		c.AllowedTypes = strings.Split(c.AllowedTypes[0], ",")
	}
	return &c, nil
}

// ChartConfig maps the stored settings onto a generation config.
func (c *Global) ChartConfig() (chart.Config, error) {
	cc := chart.DefaultConfig()
	if c.SpecCount > 0 {
		cc.Count = c.SpecCount
	}
	types, err := chart.ParseChartTypes(c.AllowedTypes)
	if err != nil {
		return chart.Config{}, fmt.Errorf("allowed_types: %w", err)
	}
	cc.AllowedTypes = types
	cc.AllowDuplicates = c.AllowDuplicates
	if c.Palette != "" {
		cc.Palette = c.Palette
	}
	if c.DefaultColor != "" {
		cc.DefaultColor = c.DefaultColor
	}
	if c.ModelTimeoutSec > 0 {
		cc.ModelTimeout = time.Duration(c.ModelTimeoutSec) * time.Second
	}
	if c.MaxTokens > 0 {
		cc.MaxTokens = c.MaxTokens
	}
	cc.Temperature = c.Temperature
	cc.Model = c.DefaultModel
	return cc, nil
}
