package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
)

const salesCSV = `region,product,sales,units,price
north,widget,120.5,3,40.1
south,gadget,98,2,49
north,gadget,143.25,4,35.8
east,widget,87,2,43.5
south,widget,110,3,36.7
east,gadget,101.5,3,33.8
`

// resetFlags restores every flag to its default so invocations don't leak state.
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func setupWorkspace(t *testing.T) (dir, csvPath string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("HOME", dir)
	csvPath = filepath.Join(dir, "sales.csv")
	if err := os.WriteFile(csvPath, []byte(salesCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return dir, csvPath
}

func countFiles(t *testing.T, dir, pattern string) int {
	t.Helper()
	m, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		t.Fatal(err)
	}
	return len(m)
}

func TestCLI_GenerateFallbackWritesArtifacts(t *testing.T) {
	dir, csvPath := setupWorkspace(t)
	out := filepath.Join(dir, "charts")
	html := filepath.Join(dir, "report.html")

	if err := runCmd(t, "generate", csvPath, "--problem", "Which region sells most?", "--provider", "none",
		"-n", "4", "--out", out, "--html", html, "--quiet"); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(out, "specs.json"))
	if err != nil {
		t.Fatalf("read specs: %v", err)
	}
	var rec struct {
		Source   string           `json:"source"`
		Provider string           `json:"provider"`
		Specs    []map[string]any `json:"specs"`
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatalf("decode specs: %v", err)
	}
	if rec.Source != "fallback" || rec.Provider != "none" || len(rec.Specs) != 4 {
		t.Fatalf("unexpected run record: %+v", rec)
	}
	if n := countFiles(t, out, "chart_*.svg"); n != 4 {
		t.Fatalf("expected 4 svg files, got %d", n)
	}
	page, err := os.ReadFile(html)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if got := strings.Count(string(page), "<svg"); got != 4 {
		t.Fatalf("expected 4 inline charts in report, got %d", got)
	}
}

func TestCLI_RenderKeepsInvalidSpecs(t *testing.T) {
	dir, csvPath := setupWorkspace(t)
	specs := filepath.Join(dir, "specs.yaml")
	body := "- type: bar\n  x: region\n  y: sales\n- type: scatter\n  x: price\n  y: nope\n"
	if err := os.WriteFile(specs, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "svg")
	if err := runCmd(t, "render", csvPath, specs, "--out", out, "--quiet"); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if n := countFiles(t, out, "*.svg"); n != 2 {
		t.Fatalf("expected 2 svg files, got %d", n)
	}
	ph, err := os.ReadFile(filepath.Join(out, "chart_02_invalid.svg"))
	if err != nil {
		t.Fatalf("placeholder missing: %v", err)
	}
	if !strings.Contains(string(ph), "nope") {
		t.Fatalf("placeholder should carry the reason:\n%s", ph)
	}

	if err := runCmd(t, "validate", csvPath, specs); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if err := runCmd(t, "validate", csvPath, specs, "--strict"); err == nil {
		t.Fatal("expected --strict to fail on the invalid spec")
	}
	if err := runCmd(t, "render", csvPath, specs); err == nil {
		t.Fatal("expected render without --out or --html to fail")
	}
}

func TestCLI_DescribeWritesDescriptor(t *testing.T) {
	dir, csvPath := setupWorkspace(t)
	out := filepath.Join(dir, "summary.md")
	if err := runCmd(t, "describe", csvPath, "--output", out); err != nil {
		t.Fatalf("describe failed: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"region", "sales", "price"} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("descriptor missing %q:\n%s", want, b)
		}
	}
}

func TestCLI_ConfigSetAndUnknownKey(t *testing.T) {
	dir, _ := setupWorkspace(t)
	cfgPath := filepath.Join(dir, "cfg.yaml")
	if err := runCmd(t, "--config", cfgPath, "config", "set", "palette", "Muted"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	b, err := os.ReadFile(cfgPath)
	if err != nil || !strings.Contains(string(b), "palette: muted") {
		t.Fatalf("config not saved: %s %v", b, err)
	}
	if err := runCmd(t, "--config", cfgPath, "config", "set", "palette", "rainbow"); err == nil {
		t.Fatal("expected invalid palette error")
	}
	if err := runCmd(t, "--config", cfgPath, "config", "set", "nope", "1"); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func loadSales(t *testing.T) *analysis.Table {
	t.Helper()
	tbl, err := analysis.ReadCSV(strings.NewReader(salesCSV), "sales.csv", analysis.DefaultLoadOptions())
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestRunGenerateDryRunAndBudget(t *testing.T) {
	cfg = nil
	tbl := loadSales(t)
	var buf bytes.Buffer
	err := runGenerate(context.Background(), tbl, "sales.csv", generateOptions{
		Problem: "Which region sells most?", Provider: "none", DryRun: true, Format: "json",
	}, &buf)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "Which region sells most?") || !strings.Contains(out, "sim_") {
		t.Fatalf("dry run should print the prompt:\n%s", out)
	}

	buf.Reset()
	err = runGenerate(context.Background(), tbl, "sales.csv", generateOptions{
		Problem: "p", Provider: "gemini", Model: "gemini-2.5-pro", DryRun: true, BudgetLimit: 1e-9, Temperature: -1,
	}, &buf)
	if err == nil || !strings.Contains(err.Error(), "budget") {
		t.Fatalf("expected budget error, got %v", err)
	}
}

func TestRunGenerateWithoutKeyFallsBack(t *testing.T) {
	cfg = nil
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	tbl := loadSales(t)
	var buf bytes.Buffer
	err := runGenerate(context.Background(), tbl, "sales.csv", generateOptions{
		Problem: "Which region sells most?", Provider: "gemini", Format: "json", Temperature: -1,
	}, &buf)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"fallback charts", "GOOGLE_API_KEY", `"source": "fallback"`, `"provider": "gemini"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunGenerateRejectsBadInput(t *testing.T) {
	cfg = nil
	tbl := loadSales(t)
	var buf bytes.Buffer
	if err := runGenerate(context.Background(), tbl, "x", generateOptions{Provider: "none"}, &buf); err == nil {
		t.Fatal("expected error for empty problem")
	}
	if err := runGenerate(context.Background(), tbl, "x", generateOptions{Problem: "p", Provider: "none", Count: 2}, &buf); err == nil {
		t.Fatal("expected error for count below 3")
	}
	if err := runGenerate(context.Background(), tbl, "x", generateOptions{Problem: "p", Provider: "none", Types: []string{"pie"}}, &buf); err == nil {
		t.Fatal("expected error for unknown chart type")
	}
}
