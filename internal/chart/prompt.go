package chart

import (
	"fmt"
	"strings"
)

// PromptInput carries everything the prompt builder needs.
type PromptInput struct {
	Problem    string
	Descriptor string
	Allowed    []ChartType
	// Explicit is true when the caller restricted the allowed types.
	Explicit        bool
	Count           int
	AllowDuplicates bool
}

// SystemPrompt frames the model's role for every request.
const SystemPrompt = "You are a data visualization assistant. You answer with a single JSON array of chart specifications and nothing else."

var columnRules = []struct {
	types string
	rule  string
}{
	{"heatmap", "x: null, y: null, hue: null (requires at least 2 numeric columns)"},
	{"histogram", "x: numeric column, y: null"},
	{"boxplot, violin", "x: categorical column, y: numeric column, hue: optional categorical"},
	{"bar, stacked_bar", "x: categorical column, y: numeric column, hue: optional categorical (required for stacked_bar)"},
	{"scatter, line", "x: numeric column, y: numeric column, hue: optional categorical"},
	{"count", "x: categorical column, y: null, hue: optional categorical"},
	{"pairplot", "uses all numeric columns; x: null, y: null, hue: optional categorical"},
}

// BuildPrompt renders the instruction sent to the model.
func BuildPrompt(in PromptInput) string {
	n := in.Count
	if n <= 0 {
		n = DefaultCount
	}
	allowed := in.Allowed
	if len(allowed) == 0 {
		allowed = AllTypes
	}
	names := make([]string, len(allowed))
	for i, t := range allowed {
		names[i] = string(t)
	}

	var b strings.Builder
	b.WriteString("[TASK]\n")
	b.WriteString(fmt.Sprintf("Propose exactly %d charts that best help answer the problem below using the dataset described.\n\n", n))
	b.WriteString("[PROBLEM]\n")
	b.WriteString(strings.TrimSpace(in.Problem))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimRight(in.Descriptor, "\n"))
	b.WriteString("\n\n[CHART TYPES]\n")
	b.WriteString(fmt.Sprintf("Allowed types: %s\n", strings.Join(names, ", ")))
	if in.Explicit {
		b.WriteString("Use ONLY the allowed types above. Any other type is forbidden.\n")
		switch {
		case in.AllowDuplicates:
			b.WriteString("The same type may be repeated.\n")
		case len(allowed) < n:
			b.WriteString("The same type may be repeated with different columns.\n")
		default:
			b.WriteString("Do not repeat a chart type.\n")
		}
	}
	b.WriteString("\n[COLUMN RULES]\n")
	for _, r := range columnRules {
		b.WriteString(fmt.Sprintf("- %s: %s\n", r.types, r.rule))
	}
	b.WriteString("Use column names exactly as written in the schema. Never invent columns.\n")
	b.WriteString("\n[OUTPUT FORMAT]\n")
	b.WriteString(fmt.Sprintf("Return a JSON array of exactly %d objects with the keys:\n", n))
	b.WriteString("type, x, y, hue, title, justification, bins, orientation, palette\n")
	b.WriteString("- Use null for columns a chart does not take.\n")
	b.WriteString(fmt.Sprintf("- bins: integer, histogram only (default %d).\n", DefaultBins))
	b.WriteString("- orientation: \"vertical\" or \"horizontal\".\n")
	b.WriteString(fmt.Sprintf("- palette: one of %s.\n", strings.Join(Palettes, ", ")))
	b.WriteString("- justification: one sentence on how the chart addresses the problem.\n")
	if !in.AllowDuplicates {
		b.WriteString("No two charts may share the same type, x and y.\n")
	}
	b.WriteString("Respond with the JSON array only. No prose, no markdown.\n")
	return b.String()
}
