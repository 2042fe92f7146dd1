package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/chartloom-cli/internal/chart"
	cfgpkg "github.com/KaramelBytes/chartloom-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set ChartLoom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		showConfig(os.Stdout, cfg)
		return nil
	},
}

func showConfig(w io.Writer, c *cfgpkg.Global) {
	fmt.Fprintf(w, "default_provider: %s\n", c.DefaultProvider)
	if c.DefaultModel != "" {
		fmt.Fprintf(w, "default_model: %s\n", c.DefaultModel)
	}
	fmt.Fprintf(w, "api_key: %s\n", mask(c.APIKey))
	fmt.Fprintf(w, "gemini_api_key: %s\n", mask(c.GeminiAPIKey))
	fmt.Fprintf(w, "anthropic_api_key: %s\n", mask(c.AnthropicAPIKey))
	fmt.Fprintf(w, "max_tokens: %d\n", c.MaxTokens)
	fmt.Fprintf(w, "temperature: %.3f\n", c.Temperature)
	fmt.Fprintf(w, "spec_count: %d\n", c.SpecCount)
	fmt.Fprintf(w, "palette: %s\n", c.Palette)
	fmt.Fprintf(w, "default_color: %s\n", c.DefaultColor)
	fmt.Fprintf(w, "allow_duplicates: %t\n", c.AllowDuplicates)
	if len(c.AllowedTypes) > 0 {
		fmt.Fprintf(w, "allowed_types: %s\n", strings.Join(c.AllowedTypes, ","))
	}
	fmt.Fprintf(w, "model_timeout_sec: %d\n", c.ModelTimeoutSec)
	fmt.Fprintf(w, "http_timeout_sec: %d\n", c.HTTPTimeoutSec)
	fmt.Fprintf(w, "retry_max_attempts: %d\n", c.RetryMaxAttempts)
	fmt.Fprintf(w, "ollama_host: %s\n", c.OllamaHost)
	if c.OTLPEndpoint != "" {
		fmt.Fprintf(w, "otlp_endpoint: %s\n", c.OTLPEndpoint)
	}
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

// setConfigValue validates and applies one key.
func setConfigValue(c *cfgpkg.Global, key, val string) error {
	atoi := func(min int) (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < min {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "default_provider":
		p, perr := resolveProvider(nil, val)
		if perr != nil {
			return fmt.Errorf("invalid default_provider: %w", perr)
		}
		c.DefaultProvider = p
	case "default_model":
		c.DefaultModel = val
	case "api_key":
		c.APIKey = val
	case "gemini_api_key":
		c.GeminiAPIKey = val
	case "anthropic_api_key":
		c.AnthropicAPIKey = val
	case "max_tokens":
		c.MaxTokens, err = atoi(1)
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f < 0 || f > 2 {
			return fmt.Errorf("invalid float for temperature: %v", val)
		}
		c.Temperature = f
	case "spec_count":
		c.SpecCount, err = atoi(chart.DefaultCount)
	case "palette":
		p := strings.ToLower(strings.TrimSpace(val))
		for _, known := range chart.Palettes {
			if p == known {
				c.Palette = p
				return nil
			}
		}
		return fmt.Errorf("invalid palette: %s (use %s)", val, strings.Join(chart.Palettes, "|"))
	case "default_color":
		c.DefaultColor = val
	case "allow_duplicates":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for allow_duplicates: %v", val)
		}
		c.AllowDuplicates = b
	case "allowed_types":
		types, perr := chart.ParseChartTypes(strings.Split(val, ","))
		if perr != nil {
			return perr
		}
		c.AllowedTypes = c.AllowedTypes[:0]
		for _, t := range types {
			c.AllowedTypes = append(c.AllowedTypes, string(t))
		}
	case "model_timeout_sec":
		c.ModelTimeoutSec, err = atoi(1)
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi(1)
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi(1)
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi(0)
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi(0)
	case "ollama_host":
		c.OllamaHost = val
	case "ollama_timeout_sec":
		c.OllamaTimeoutSec, err = atoi(1)
	case "otlp_endpoint":
		c.OTLPEndpoint = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
