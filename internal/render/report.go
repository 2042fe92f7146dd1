package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/KaramelBytes/chartloom-cli/internal/chart"
)

// Report is an HTML gallery of rendered charts.
type Report struct {
	Title   string
	Problem string
	Dataset string
	// Source and Notes describe where the specs came from.
	Source string
	Notes  []string
	// Descriptor is included verbatim in a collapsed section when set.
	Descriptor string
	Images     []Image
}

const reportCSS = `body{font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;color:#1f2328;background:#fafafa;margin:0;padding:1.5rem;}
.wrap{max-width:880px;margin:0 auto;}
.meta{color:#57606a;font-size:0.9rem;}
.chart{background:#fff;border:1px solid #d0d7de;border-radius:6px;padding:1rem;margin:1.5rem 0;}
.chart svg{max-width:100%;height:auto;}
.chart em{color:#57606a;font-size:0.85rem;}
details pre{background:#f6f8fa;padding:0.75rem;overflow:auto;font-size:0.8rem;}`

func (r Report) headerMarkdown() string {
	var b strings.Builder
	title := r.Title
	if title == "" {
		title = "Chart report"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if r.Problem != "" {
		fmt.Fprintf(&b, "**Problem:** %s\n\n", oneLine(r.Problem))
	}
	if r.Dataset != "" {
		fmt.Fprintf(&b, "**Dataset:** `%s`\n\n", r.Dataset)
	}
	if r.Source != "" {
		fmt.Fprintf(&b, "**Source:** %s\n\n", r.Source)
	}
	for _, n := range r.Notes {
		fmt.Fprintf(&b, "- %s\n", oneLine(n))
	}
	return b.String()
}

func chartMarkdown(i int, s chart.Spec) string {
	var b strings.Builder
	title := s.Title
	if title == "" {
		title = chart.DefaultTitle(s)
	}
	fmt.Fprintf(&b, "## %d. %s\n\n", i+1, oneLine(title))
	kind := []string{s.Type.Label()}
	for _, f := range [][2]string{{"x", s.X}, {"y", s.Y}, {"hue", s.Hue}} {
		if f[1] != "" {
			kind = append(kind, fmt.Sprintf("%s: `%s`", f[0], f[1]))
		}
	}
	fmt.Fprintf(&b, "*%s*\n\n", strings.Join(kind, " · "))
	if s.Justification != "" {
		fmt.Fprintf(&b, "%s\n\n", s.Justification)
	}
	if !s.Valid() && s.Reason != "" {
		fmt.Fprintf(&b, "> Not drawn: %s\n", oneLine(s.Reason))
	}
	return b.String()
}

// HTML renders the report as a standalone page with inline SVG images.
func (r Report) HTML() ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	convert := func(src string) (string, error) {
		var out strings.Builder
		if err := md.Convert([]byte(src), &out); err != nil {
			return "", fmt.Errorf("markdown convert: %w", err)
		}
		return out.String(), nil
	}

	var body strings.Builder
	head, err := convert(r.headerMarkdown())
	if err != nil {
		return nil, err
	}
	body.WriteString("<div class='meta'>" + head + "</div>")
	for i, img := range r.Images {
		text, err := convert(chartMarkdown(i, img.Spec))
		if err != nil {
			return nil, err
		}
		body.WriteString("<section class='chart'>" + text + "<figure>")
		body.Write(img.SVG)
		body.WriteString("</figure></section>")
	}
	if r.Descriptor != "" {
		body.WriteString("<details><summary>Dataset descriptor</summary><pre>" + html.EscapeString(r.Descriptor) + "</pre></details>")
	}

	title := r.Title
	if title == "" {
		title = "Chart report"
	}
	page := "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + reportCSS + "</style></head><body><div class='wrap'>" +
		body.String() + "</div></body></html>"
	return []byte(page), nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
