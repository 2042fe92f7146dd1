package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/chartloom-cli/internal/ai"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model catalog and pricing",
	Long: `The built-in catalog lists context windows and prices used for cost estimates.
Set CHARTLOOM_MODELS_CATALOG to a JSON file to merge extra entries.`,
	Example: `  chartloom models list
  chartloom models list --provider gemini
  chartloom models show`,
}

var modelsProvider string

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models with context window and price per 1K tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listModels(os.Stdout, modelsProvider)
	},
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current model catalog as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		// encoding/json sorts map keys
		return enc.Encode(ai.Catalog())
	},
}

// providerOf guesses which provider serves a catalog entry from its name.
func providerOf(name string) string {
	switch {
	case strings.Contains(name, "/"):
		return ai.ProviderOpenRouter
	case strings.HasPrefix(name, "gemini-"):
		return ai.ProviderGemini
	case strings.HasPrefix(name, "claude-"):
		return ai.ProviderAnthropic
	case strings.Contains(name, ":"):
		return ai.ProviderOllama
	}
	return ""
}

func listModels(w io.Writer, provider string) error {
	if provider != "" {
		p, err := resolveProvider(nil, provider)
		if err != nil {
			return err
		}
		provider = p
	}
	cat := ai.Catalog()
	names := make([]string, 0, len(cat))
	for k := range cat {
		if provider == "" || providerOf(k) == provider {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	fmt.Fprintf(w, "%-36s %-11s %10s %10s %10s\n", "MODEL", "PROVIDER", "CONTEXT", "IN/1K", "OUT/1K")
	for _, n := range names {
		mi := cat[n]
		mark := ""
		if p := providerOf(n); p != "" && ai.DefaultModel(p) == n {
			mark = " (default)"
		}
		fmt.Fprintf(w, "%-36s %-11s %10d %10.5f %10.5f%s\n", n, providerOf(n), mi.ContextTokens, mi.InputPerK, mi.OutputPerK, mark)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsListCmd.Flags().StringVar(&modelsProvider, "provider", "", "only list models for this provider")
}
