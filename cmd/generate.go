package cmd

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/chartloom-cli/internal/ai"
	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/chart"
	cfgpkg "github.com/KaramelBytes/chartloom-cli/internal/config"
	"github.com/KaramelBytes/chartloom-cli/internal/render"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
)

// generateOptions holds everything generate needs beyond the dataset path.
type generateOptions struct {
	Problem         string
	Count           int
	Types           []string
	AllowDuplicates bool
	Palette         string
	Provider        string
	Model           string
	OllamaHost      string
	MaxTokens       int
	Temperature     float64
	TimeoutSec      int
	OutDir          string
	Format          string
	HTMLPath        string
	DryRun          bool
	PrintPrompt     bool
	BudgetLimit     float64
	Quiet           bool
}

var (
	genData datasetFlags
	genOpts generateOptions
)

var generateCmd = &cobra.Command{
	Use:   "generate <file>",
	Short: "Generate chart specifications for a dataset and an analytical problem",
	Args:  cobra.ExactArgs(1),
	Example: `  chartloom generate sales.csv --problem "What drives revenue by region?"
  chartloom generate sales.csv --problem "..." -n 5 --types bar,scatter,heatmap --out charts/
  chartloom generate sales.xlsx --problem "..." --provider none --html report.html
  chartloom generate sales.csv --problem "..." --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		o := genOpts
		f := cmd.Flags()
		if !f.Changed("temp") {
			o.Temperature = -1
		}
		t, err := genData.load(args[0])
		if err != nil {
			return err
		}
		return runGenerate(cmd.Context(), t, args[0], o, os.Stdout)
	},
}

// chartConfig merges stored settings with the per-run options.
func (o generateOptions) chartConfig(c *cfgpkg.Global) (chart.Config, error) {
	cc := chart.DefaultConfig()
	if c != nil {
		var err error
		if cc, err = c.ChartConfig(); err != nil {
			return chart.Config{}, err
		}
	}
	if o.Count != 0 {
		cc.Count = o.Count
	}
	if len(o.Types) > 0 {
		types, err := chart.ParseChartTypes(o.Types)
		if err != nil {
			return chart.Config{}, err
		}
		cc.AllowedTypes = types
	}
	if o.AllowDuplicates {
		cc.AllowDuplicates = true
	}
	if o.Palette != "" {
		cc.Palette = strings.ToLower(o.Palette)
	}
	if o.MaxTokens > 0 {
		cc.MaxTokens = o.MaxTokens
	}
	if o.Temperature >= 0 {
		cc.Temperature = o.Temperature
	}
	if o.TimeoutSec > 0 {
		cc.ModelTimeout = time.Duration(o.TimeoutSec) * time.Second
	}
	return cc, nil
}

func runGenerate(ctx context.Context, t *analysis.Table, dataset string, o generateOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(o.Problem) == "" {
		return fmt.Errorf("--problem is required")
	}
	cc, err := o.chartConfig(cfg)
	if err != nil {
		return err
	}
	rt, provider, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: o.Provider, OllamaHost: o.OllamaHost})
	if err != nil {
		return err
	}
	if provider != ai.ProviderNone {
		cc.Model = selectModel(provider, cfg, o.Model)
	}

	gen := chart.NewGenerator(rt, chart.WithLogger(logger))
	req := chart.Request{Problem: o.Problem, Table: t, Config: cc}
	prompt, err := gen.Prompt(req)
	if err != nil {
		return err
	}
	tokens := utils.PromptTokens(chart.SystemPrompt, prompt)

	var estCost float64
	if provider != ai.ProviderNone {
		if !o.Quiet {
			fmt.Fprintf(w, "Tokens: prompt≈%d, max-tokens=%d\n", tokens, cc.MaxTokens)
		}
		if mi, ok := ai.LookupModel(cc.Model); ok {
			if tokens+cc.MaxTokens > mi.ContextTokens && !o.Quiet {
				fmt.Fprintf(w, "⚠ Prompt (%d tokens) + max-tokens (%d) exceeds %s context window (~%d tokens).\n",
					tokens, cc.MaxTokens, mi.Name, mi.ContextTokens)
			}
			if cost, ok := ai.EstimateCostUSD(cc.Model, tokens, cc.MaxTokens); ok {
				estCost = cost
				if !o.Quiet {
					fmt.Fprintf(w, "Estimated max cost: ~$%.4f (in %.4f/out %.4f per 1K tokens)\n", cost, mi.InputPerK, mi.OutputPerK)
				}
			}
		}
	}
	if err := enforceBudget(estCost, o.BudgetLimit); err != nil {
		return err
	}

	if o.DryRun {
		if !o.Quiet {
			sum := sha1.Sum([]byte(prompt))
			fmt.Fprintln(w, "\n--dry-run: no model call will be made. Prompt preview below --")
			fmt.Fprintf(w, "Request ID (dry-run): sim_%x\n", sum[:6])
		}
		fmt.Fprintln(w, prompt)
		return nil
	}
	if o.PrintPrompt && !o.Quiet {
		fmt.Fprintln(w, "\n--print-prompt: sending the following prompt --")
		fmt.Fprintln(w, prompt)
	}

	if !o.Quiet {
		if provider == ai.ProviderNone {
			fmt.Fprintf(w, "⚙ Generating %d charts without a model (fallback only) ...\n", cc.Count)
		} else {
			fmt.Fprintf(w, "⚙ Generating %d charts with %s model=%s ...\n", cc.Count, provider, cc.Model)
		}
	}
	res, err := gen.Generate(ctx, req)
	if err != nil {
		return err
	}
	if !o.Quiet {
		reportResult(w, res, provider)
	}

	rec := newRunRecord(res, o.Problem, filepath.Base(dataset), provider)
	var specsPath string
	if o.OutDir != "" {
		ext := "json"
		if f := strings.ToLower(o.Format); f == "yaml" || f == "yml" {
			ext = "yaml"
		}
		specsPath = filepath.Join(o.OutDir, "specs."+ext)
	}
	if err := writeOutput(rec, outputOptions{Format: o.Format, OutputPath: specsPath, Quiet: o.Quiet, Writer: w}); err != nil {
		return err
	}

	if o.OutDir == "" && o.HTMLPath == "" {
		return nil
	}
	ropts := render.Options{Palette: cc.Palette, DefaultColor: cc.DefaultColor}
	images := render.RenderAll(res.Specs, t, ropts)
	notes := []string{fmt.Sprintf("%d of %d requested charts", len(res.Specs), res.Requested)}
	if res.FallbackReason != "" {
		notes = append(notes, "Fallback: "+res.FallbackReason)
	}
	return writeArtifacts(w, images, artifactOptions{
		Dir:      o.OutDir,
		HTMLPath: o.HTMLPath,
		Quiet:    o.Quiet,
		Report: render.Report{
			Title:      "Charts for " + filepath.Base(dataset),
			Problem:    o.Problem,
			Dataset:    filepath.Base(dataset),
			Source:     string(res.Source),
			Notes:      notes,
			Descriptor: res.Descriptor,
		},
	})
}

func reportResult(w io.Writer, res *chart.Result, provider string) {
	switch res.Source {
	case chart.SourceModel:
		fmt.Fprintf(w, "✓ %d charts from the model (run %s)\n", len(res.Specs), res.RunID)
	case chart.SourceMixed:
		fmt.Fprintf(w, "✓ %d charts, partly from fallback: %s (run %s)\n", len(res.Specs), res.FallbackReason, res.RunID)
	default:
		fmt.Fprintf(w, "✓ %d fallback charts (run %s)\n", len(res.Specs), res.RunID)
		if provider != ai.ProviderNone && res.FallbackReason != "" {
			fmt.Fprintf(w, "⚠ Model output not used: %s\n", res.FallbackReason)
		}
	}
	if hint := modelErrorHint(res.ModelErr, res.Model); hint != "" {
		fmt.Fprintf(w, "  hint: %s\n", hint)
	}
	if res.Usage.TotalTokens > 0 {
		fmt.Fprintf(w, "Usage: prompt=%d completion=%d total=%d tokens\n", res.Usage.PromptTokens, res.Usage.CompletionTokens, res.Usage.TotalTokens)
	}
	if res.Short() {
		fmt.Fprintf(w, "⚠ The dataset supports only %d of %d requested distinct charts.\n", len(res.Specs), res.Requested)
	}
	printSpecs(w, res.Specs)
	logger.Debug("generate finished", zap.String("run_id", res.RunID), zap.String("source", string(res.Source)))
}

func init() {
	rootCmd.AddCommand(generateCmd)
	genData.register(generateCmd)
	f := generateCmd.Flags()
	f.StringVar(&genOpts.Problem, "problem", "", "analytical question the charts should answer (required)")
	f.IntVarP(&genOpts.Count, "count", "n", 0, "number of charts to generate (minimum 3, default from config)")
	f.StringSliceVar(&genOpts.Types, "types", nil, "restrict chart types (comma-separated, e.g. bar,scatter,heatmap)")
	f.BoolVar(&genOpts.AllowDuplicates, "allow-duplicates", false, "allow charts with the same (type, x, y)")
	f.StringVar(&genOpts.Palette, "palette", "", "default palette: deep|muted|colorblind|pastel|bright|dark")
	f.StringVar(&genOpts.Provider, "provider", "", "model provider: "+strings.Join(ai.Providers(), "|"))
	f.StringVar(&genOpts.Model, "model", "", "override model (default depends on provider)")
	f.StringVar(&genOpts.OllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	f.IntVar(&genOpts.MaxTokens, "max-tokens", 0, "max tokens for the model reply")
	f.Float64Var(&genOpts.Temperature, "temp", 0.2, "sampling temperature")
	f.IntVar(&genOpts.TimeoutSec, "timeout-sec", 0, "model call deadline in seconds (default 60)")
	f.StringVar(&genOpts.OutDir, "out", "", "directory for specs and rendered SVG charts")
	f.StringVar(&genOpts.Format, "format", "json", "spec output format: json|yaml")
	f.StringVar(&genOpts.HTMLPath, "html", "", "write an HTML report with the rendered charts")
	f.BoolVar(&genOpts.DryRun, "dry-run", false, "print the prompt without calling the model")
	f.BoolVar(&genOpts.PrintPrompt, "print-prompt", false, "print the prompt being sent to the model")
	f.Float64Var(&genOpts.BudgetLimit, "budget-limit", 0, "fail if estimated max cost (USD) exceeds this budget")
	f.BoolVar(&genOpts.Quiet, "quiet", false, "only print the spec document")
}
