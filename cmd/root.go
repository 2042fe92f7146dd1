package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/chartloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/chartloom-cli/internal/config"
)

var (
	cfgFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
	// logger carries internal diagnostics; user-facing output stays on stdout.
	logger = zap.NewNop()
	// shutdownTracing flushes spans on exit.
	shutdownTracing = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "chartloom",
	Short: "ChartLoom CLI: turn a dataset and a question into chart specifications",
	Long: `ChartLoom reads a CSV/TSV/XLSX dataset, summarizes it, and asks a language model
for a set of validated chart specifications that answer an analytical question.
When no model is available or its answer is unusable, a deterministic fallback
fills the set from the dataset's column kinds.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	err := rootCmd.Execute()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := shutdownTracing(ctx); serr != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: flush traces: %v\n", serr)
	}
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.chartloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	// Keys such as GOOGLE_API_KEY often live in a local .env file.
	_ = godotenv.Load()

	if debug {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}

	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}

	// Optional catalog overrides from a local JSON file.
	if path := os.Getenv("CHARTLOOM_MODELS_CATALOG"); path != "" {
		m, err := ai.LoadCatalogFromJSON(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: load model catalog: %v\n", err)
		} else {
			ai.MergeCatalog(m)
		}
	}

	if cfg.OTLPEndpoint != "" {
		shutdown, err := setupTracing(context.Background(), cfg.OTLPEndpoint)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: tracing disabled: %v\n", err)
			return
		}
		shutdownTracing = shutdown
	}
}
