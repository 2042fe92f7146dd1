// Package render draws chart specs as standalone SVG images and assembles
// them into an HTML report.
package render

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/chart"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
)

// Options controls image size and colours.
type Options struct {
	// Palette is used when a spec names none.
	Palette string
	// DefaultColor fills single-series marks.
	DefaultColor string
	Width        int
	Height       int
}

func DefaultOptions() Options {
	return Options{Palette: chart.DefaultPalette, DefaultColor: "#4C72B0", Width: 800, Height: 500}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Palette == "" {
		o.Palette = d.Palette
	}
	if o.DefaultColor == "" {
		o.DefaultColor = d.DefaultColor
	}
	if o.Width < 200 {
		o.Width = d.Width
	}
	if o.Height < 150 {
		o.Height = d.Height
	}
	return o
}

type drawFunc func(chart.Spec, *analysis.Table, Options) ([]byte, error)

var drawers = map[chart.ChartType]drawFunc{
	chart.Bar:        barChart,
	chart.StackedBar: barChart,
	chart.Count:      barChart,
	chart.Histogram:  histogramChart,
	chart.Scatter:    scatterChart,
	chart.Line:       lineChart,
	chart.Boxplot:    distributionChart,
	chart.Violin:     distributionChart,
	chart.Heatmap:    heatmapChart,
	chart.Pairplot:   pairplotChart,
}

// Render draws s against t as an SVG document. It never fails: invalid specs
// and data that cannot be drawn produce a placeholder image with the reason.
func Render(s chart.Spec, t *analysis.Table, o Options) (out []byte) {
	o = o.withDefaults()
	defer func() {
		if r := recover(); r != nil {
			out = Placeholder(s.Title, fmt.Sprintf("chart could not be drawn: %v", r), o)
		}
	}()
	if s.Palette != "" {
		o.Palette = s.Palette
	}
	if !s.Valid() {
		reason := s.Reason
		if reason == "" {
			reason = "invalid chart specification"
		}
		return Placeholder(s.Title, reason, o)
	}
	if t.Empty() {
		return Placeholder(s.Title, "dataset is empty", o)
	}
	draw, ok := drawers[s.Type]
	if !ok {
		return Placeholder(s.Title, fmt.Sprintf("unsupported chart type %q", s.Type), o)
	}
	img, err := draw(s, t, o)
	if err != nil {
		return Placeholder(s.Title, err.Error(), o)
	}
	return img
}

// Placeholder returns a grey image carrying the title and reason.
func Placeholder(title, reason string, o Options) []byte {
	o = o.withDefaults()
	if title == "" {
		title = "Chart unavailable"
	}
	c := newCanvas(o, title)
	c.rect(c.px, c.py, c.pw, c.ph, "#f5f5f5")
	cy := c.py + c.ph/2 - 10
	c.text(float64(o.Width)/2, cy, 14, "middle", "Chart could not be drawn")
	for i, l := range wrap(reason, 80) {
		c.text(float64(o.Width)/2, cy+22+float64(i)*16, fontSize+1, "middle", l)
	}
	return c.bytes()
}

func wrap(s string, width int) []string {
	var lines []string
	var cur strings.Builder
	for _, w := range strings.Fields(s) {
		if cur.Len() > 0 && cur.Len()+1+len(w) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// Image is one rendered spec.
type Image struct {
	Spec chart.Spec
	SVG  []byte
	// Path is set once the image has been written to disk.
	Path string
}

// RenderAll renders specs in order.
func RenderAll(specs []chart.Spec, t *analysis.Table, o Options) []Image {
	out := make([]Image, len(specs))
	for i, s := range specs {
		out[i] = Image{Spec: s, SVG: Render(s, t, o)}
	}
	return out
}

// FileName is the stable file name for the i-th (0-based) image.
func FileName(i int, s chart.Spec) string {
	parts := []string{string(s.Type), s.X, s.Y}
	if !s.Valid() {
		parts = []string{"invalid"}
	}
	return fmt.Sprintf("chart_%02d_%s.svg", i+1, utils.Slug(strings.Join(parts, " ")))
}

// WriteImages saves images under dir and records their paths.
func WriteImages(dir string, images []Image) error {
	for i := range images {
		p := filepath.Join(dir, FileName(i, images[i].Spec))
		if err := utils.SafeWriteFile(p, images[i].SVG); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
		images[i].Path = p
	}
	return nil
}
