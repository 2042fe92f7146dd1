package chart

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ChartType names a supported chart kind.
type ChartType string

const (
	Bar        ChartType = "bar"
	Scatter    ChartType = "scatter"
	Line       ChartType = "line"
	Boxplot    ChartType = "boxplot"
	Histogram  ChartType = "histogram"
	Heatmap    ChartType = "heatmap"
	Count      ChartType = "count"
	Pairplot   ChartType = "pairplot"
	Violin     ChartType = "violin"
	StackedBar ChartType = "stacked_bar"
	// Invalid marks a spec that failed lenient validation; it renders as a placeholder.
	Invalid ChartType = "invalid"
)

// AllTypes lists every supported chart type in canonical order.
var AllTypes = []ChartType{Bar, Scatter, Line, Boxplot, Histogram, Heatmap, Count, Pairplot, Violin, StackedBar}

// Palettes is the palette whitelist; the first entry is the default.
var Palettes = []string{"deep", "muted", "colorblind", "pastel", "bright", "dark"}

// DefaultPalette is used when a spec names no palette or an unknown one.
var DefaultPalette = Palettes[0]

const DefaultBins = 20

// DefaultCount is the spec set size when the caller does not ask for one.
const DefaultCount = 3

// Orientation of bar-like charts.
type Orientation string

const (
	Vertical   Orientation = "vertical"
	Horizontal Orientation = "horizontal"
)

// aliases keys are lower-cased with spaces, dashes and underscores removed.
var aliases = map[string]ChartType{
	"bar": Bar, "barplot": Bar, "barchart": Bar, "column": Bar, "columnchart": Bar,
	"scatter": Scatter, "scatterplot": Scatter, "scatterchart": Scatter,
	"line": Line, "lineplot": Line, "linechart": Line,
	"box": Boxplot, "boxplot": Boxplot, "boxandwhisker": Boxplot,
	"hist": Histogram, "histogram": Histogram, "histplot": Histogram, "distribution": Histogram,
	"heatmap": Heatmap, "correlationheatmap": Heatmap, "corrheatmap": Heatmap, "correlationmatrix": Heatmap,
	"count": Count, "countplot": Count, "countchart": Count,
	"pair": Pairplot, "pairplot": Pairplot, "pairs": Pairplot, "scattermatrix": Pairplot,
	"violin": Violin, "violinplot": Violin,
	"stackedbar": StackedBar, "stackedbarplot": StackedBar, "stackedbarchart": StackedBar, "stacked": StackedBar,
}

// ParseChartType resolves a free-form type name, including common aliases.
func ParseChartType(s string) (ChartType, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(key)
	t, ok := aliases[key]
	return t, ok
}

// ParseChartTypes parses a list of type names and rejects unknown ones.
func ParseChartTypes(names []string) ([]ChartType, error) {
	var out []ChartType
	seen := map[ChartType]bool{}
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		t, ok := ParseChartType(n)
		if !ok {
			return nil, &UnsupportedChartTypeError{Type: n, Allowed: AllTypes}
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}

// Label is the human-readable form used in titles.
func (t ChartType) Label() string {
	switch t {
	case StackedBar:
		return "Stacked Bar"
	case Boxplot:
		return "Boxplot"
	case Pairplot:
		return "Pairplot"
	}
	s := string(t)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Spec is a single chart specification. Empty X, Y and Hue mean the
// field is absent and serialize as null.
type Spec struct {
	Type          ChartType
	X             string
	Y             string
	Hue           string
	Title         string
	Justification string
	Bins          int
	Orientation   Orientation
	Palette       string
	// Reason explains why a spec was marked Invalid.
	Reason string
}

// Signature identifies a spec for deduplication.
type Signature struct {
	Type ChartType
	X, Y string
}

func (s Signature) String() string { return fmt.Sprintf("(%s, %s, %s)", s.Type, s.X, s.Y) }

// Signature returns the (type, x, y) identity of s.
func (s Spec) Signature() Signature { return Signature{Type: s.Type, X: s.X, Y: s.Y} }

// Valid reports whether s is renderable as a real chart.
func (s Spec) Valid() bool { return s.Type != Invalid && s.Type != "" }

// Legal reports whether every populated field is permitted for the type.
func (s Spec) Legal() bool {
	switch s.Type {
	case Heatmap:
		if s.X != "" || s.Y != "" || s.Hue != "" {
			return false
		}
	case Pairplot:
		if s.X != "" || s.Y != "" {
			return false
		}
	case Histogram, Count:
		if s.Y != "" {
			return false
		}
	}
	if s.Type != Histogram && s.Bins != 0 {
		return false
	}
	if s.Type == Histogram && s.Bins <= 0 {
		return false
	}
	return s.Title != "" && s.Justification != ""
}

type specWire struct {
	Type          ChartType `json:"type" yaml:"type"`
	X             *string   `json:"x" yaml:"x"`
	Y             *string   `json:"y" yaml:"y"`
	Hue           *string   `json:"hue" yaml:"hue"`
	Title         string    `json:"title" yaml:"title"`
	Justification string    `json:"justification" yaml:"justification"`
	Bins          int       `json:"bins,omitempty" yaml:"bins,omitempty"`
	Orientation   string    `json:"orientation,omitempty" yaml:"orientation,omitempty"`
	Palette       string    `json:"palette,omitempty" yaml:"palette,omitempty"`
	Reason        string    `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s Spec) wire() specWire {
	return specWire{
		Type:          s.Type,
		X:             optional(s.X),
		Y:             optional(s.Y),
		Hue:           optional(s.Hue),
		Title:         s.Title,
		Justification: s.Justification,
		Bins:          s.Bins,
		Orientation:   string(s.Orientation),
		Palette:       s.Palette,
		Reason:        s.Reason,
	}
}

// MarshalJSON writes absent columns as null.
func (s Spec) MarshalJSON() ([]byte, error) { return json.Marshal(s.wire()) }

// MarshalYAML writes absent columns as null.
func (s Spec) MarshalYAML() (interface{}, error) { return s.wire(), nil }

// Candidate returns s as a raw candidate so it can be normalized again.
func (s Spec) Candidate() Candidate {
	c := Candidate{
		"type":          string(s.Type),
		"x":             nil,
		"y":             nil,
		"hue":           nil,
		"title":         s.Title,
		"justification": s.Justification,
		"orientation":   string(s.Orientation),
		"palette":       s.Palette,
	}
	if s.X != "" {
		c["x"] = s.X
	}
	if s.Y != "" {
		c["y"] = s.Y
	}
	if s.Hue != "" {
		c["hue"] = s.Hue
	}
	if s.Bins > 0 {
		c["bins"] = s.Bins
	}
	if s.Reason != "" {
		c["reason"] = s.Reason
	}
	return c
}

// Candidate is an unvalidated spec as decoded from model output or a file.
// Keys are lower-case; absent values are nil.
type Candidate map[string]any

// Config is the explicit configuration record for one generation request.
type Config struct {
	// Count is the requested spec set size; 0 means DefaultCount.
	Count int
	// AllowedTypes restricts generation; empty means AllTypes.
	AllowedTypes    []ChartType
	AllowDuplicates bool
	Palette         string
	// DefaultColor is the single-series colour passed to the renderer.
	DefaultColor string
	// ModelTimeout bounds the model call; 0 means 60s.
	ModelTimeout time.Duration
	Model        string
	MaxTokens    int
	Temperature  float64
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Count:        DefaultCount,
		Palette:      DefaultPalette,
		DefaultColor: "#4C72B0",
		ModelTimeout: 60 * time.Second,
		MaxTokens:    1000,
		Temperature:  0.2,
	}
}

// Allowed returns the effective allowed types and whether they were explicitly set.
func (c Config) Allowed() ([]ChartType, bool) {
	if len(c.AllowedTypes) == 0 {
		return AllTypes, false
	}
	return c.AllowedTypes, true
}

func contains(types []ChartType, t ChartType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func isPalette(p string) bool {
	for _, x := range Palettes {
		if x == p {
			return true
		}
	}
	return false
}
