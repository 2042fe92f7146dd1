package chart

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
)

// Mode selects how the Normalizer treats bad candidates.
type Mode int

const (
	// Lenient never fails: problems turn the spec into an Invalid marker.
	Lenient Mode = iota
	// Strict returns an error for unsupported types and unknown columns.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "lenient"
}

// Normalizer validates candidates against the allowed types and, when a
// table is present, against its columns and their kinds.
type Normalizer struct {
	Table   *analysis.Table
	Allowed []ChartType
	Palette string
}

// NewNormalizer builds a Normalizer from a request configuration.
func NewNormalizer(t *analysis.Table, cfg Config) Normalizer {
	allowed, _ := cfg.Allowed()
	return Normalizer{Table: t, Allowed: allowed, Palette: cfg.Palette}
}

func (n Normalizer) allowed() []ChartType {
	if len(n.Allowed) == 0 {
		return AllTypes
	}
	return n.Allowed
}

func (n Normalizer) defaultPalette() string {
	if isPalette(n.Palette) {
		return n.Palette
	}
	return DefaultPalette
}

// Normalize turns a candidate into a Spec. In Lenient mode the error is
// always nil. Normalizing the Candidate of a normalized Spec yields the same Spec.
func (n Normalizer) Normalize(c Candidate, mode Mode) (Spec, error) {
	s := Spec{
		X:             text(c["x"]),
		Y:             text(c["y"]),
		Hue:           text(c["hue"]),
		Title:         text(c["title"]),
		Justification: text(c["justification"]),
		Orientation:   orientation(c["orientation"]),
		Palette:       n.palette(c["palette"]),
	}

	rawType := text(c["type"])
	if strings.EqualFold(rawType, string(Invalid)) {
		if mode == Strict {
			return Spec{}, &UnsupportedChartTypeError{Type: rawType, Allowed: n.allowed()}
		}
		return finish(invalidate(s, text(c["reason"]))), nil
	}
	t, ok := ParseChartType(rawType)
	if !ok || !contains(n.allowed(), t) {
		if mode == Strict {
			return Spec{}, &UnsupportedChartTypeError{Type: rawType, Allowed: n.allowed()}
		}
		return finish(invalidate(s, fmt.Sprintf("unsupported chart type %q", rawType))), nil
	}
	s.Type = t
	s.Bins = bins(c["bins"])
	clearIllegal(&s)

	if n.Table != nil {
		for _, f := range []struct {
			name string
			ref  *string
		}{{"x", &s.X}, {"y", &s.Y}, {"hue", &s.Hue}} {
			if *f.ref == "" {
				continue
			}
			col, ok := n.Table.Lookup(*f.ref)
			if !ok {
				if mode == Strict {
					return Spec{}, &UnknownColumnError{Field: f.name, Column: *f.ref}
				}
				return finish(invalidate(s, fmt.Sprintf("unknown column %q in %s", *f.ref, f.name))), nil
			}
			*f.ref = col.Name
		}
		if err := n.correct(&s); err != nil {
			return finish(invalidate(s, err.Error())), nil
		}
	}
	return finish(s), nil
}

// NormalizeAll applies Lenient normalization to every candidate.
func (n Normalizer) NormalizeAll(cs []Candidate) []Spec {
	out := make([]Spec, 0, len(cs))
	for _, c := range cs {
		s, _ := n.Normalize(c, Lenient)
		out = append(out, s)
	}
	return out
}

// correct applies the per-type column rules using the table's column kinds.
func (n Normalizer) correct(s *Spec) error {
	kind := func(name string) analysis.Kind {
		if col, ok := n.Table.Lookup(name); ok {
			return col.Kind
		}
		return ""
	}
	insufficient := func(format string, args ...any) error {
		return &InsufficientDataError{Type: s.Type, Reason: fmt.Sprintf(format, args...)}
	}

	switch {
	case s.Type == Histogram && kind(s.X) == analysis.KindCategorical:
		s.Type = Count
	case s.Type == Count && kind(s.X) == analysis.KindNumeric:
		s.Type = Histogram
	}
	if !contains(n.allowed(), s.Type) {
		return insufficient("x %q requires a %s chart, which is not allowed", s.X, s.Type)
	}
	clearIllegal(s)
	if s.Hue != "" && kind(s.Hue) == analysis.KindNumeric && s.Type != Heatmap {
		s.Hue = ""
	}

	switch s.Type {
	case Histogram:
		if kind(s.X) != analysis.KindNumeric {
			return insufficient("x must be a numeric column")
		}
	case Count:
		if kind(s.X) != analysis.KindCategorical {
			return insufficient("x must be a categorical column")
		}
	case Scatter, Line:
		if kind(s.X) != analysis.KindNumeric || kind(s.Y) != analysis.KindNumeric {
			return insufficient("x and y must both be numeric columns")
		}
	case Bar, Boxplot, Violin, StackedBar:
		if kind(s.Y) != analysis.KindNumeric {
			return insufficient("y must be a numeric column")
		}
		if !n.discrete(s.X) {
			return insufficient("x must be a categorical column")
		}
		if s.Type == StackedBar && (s.Hue == "" || s.Hue == s.X) {
			return insufficient("hue must be a categorical column other than x")
		}
	case Heatmap, Pairplot:
		if len(n.Table.NumericColumns()) < 2 {
			return insufficient("needs at least 2 numeric columns")
		}
	}
	return nil
}

// MaxNumericLevels is the most distinct values a numeric column may have
// to serve as the category axis of a bar-like chart.
const MaxNumericLevels = 30

// discrete reports whether name is categorical, or numeric with few enough levels.
func (n Normalizer) discrete(name string) bool {
	col, ok := n.Table.Lookup(name)
	if !ok {
		return false
	}
	if col.Kind == analysis.KindCategorical {
		return true
	}
	return len(col.Levels()) <= MaxNumericLevels
}

// clearIllegal zeroes the fields the type does not take.
func clearIllegal(s *Spec) {
	switch s.Type {
	case Heatmap:
		s.X, s.Y, s.Hue = "", "", ""
	case Pairplot:
		s.X, s.Y = "", ""
	case Histogram, Count:
		s.Y = ""
	}
	if s.Type == Histogram {
		if s.Bins <= 0 {
			s.Bins = DefaultBins
		}
	} else {
		s.Bins = 0
	}
}

func invalidate(s Spec, reason string) Spec {
	s.Type = Invalid
	s.Bins = 0
	if reason == "" {
		reason = "chart could not be validated"
	}
	s.Reason = reason
	return s
}

// finish fills the title and justification when they are blank.
func finish(s Spec) Spec {
	if s.Title == "" {
		s.Title = DefaultTitle(s)
	}
	if s.Justification == "" {
		s.Justification = DefaultJustification(s)
	}
	return s
}

// DefaultTitle synthesizes a title from the type and columns.
func DefaultTitle(s Spec) string {
	switch s.Type {
	case Heatmap:
		return "Correlation Heatmap"
	case Pairplot:
		if s.Hue != "" {
			return "Pairplot by " + s.Hue
		}
		return "Pairplot of Numeric Columns"
	case Invalid:
		return "Invalid Chart"
	}
	switch {
	case s.X != "" && s.Y != "":
		return fmt.Sprintf("%s - %s vs %s", s.Type.Label(), s.X, s.Y)
	case s.X != "":
		return fmt.Sprintf("%s - %s", s.Type.Label(), s.X)
	}
	return s.Type.Label()
}

// DefaultJustification synthesizes a generic justification.
func DefaultJustification(s Spec) string {
	switch s.Type {
	case Scatter:
		return fmt.Sprintf("Shows the relationship between %s and %s.", s.X, s.Y)
	case Line:
		return fmt.Sprintf("Shows how %s changes along %s.", s.Y, s.X)
	case Bar:
		return fmt.Sprintf("Compares the average %s across %s categories.", s.Y, s.X)
	case StackedBar:
		return fmt.Sprintf("Compares %s across %s, split by %s.", s.Y, s.X, s.Hue)
	case Boxplot, Violin:
		return fmt.Sprintf("Compares the distribution of %s across %s categories.", s.Y, s.X)
	case Histogram:
		return fmt.Sprintf("Shows the distribution of %s.", s.X)
	case Count:
		return fmt.Sprintf("Shows how often each %s value occurs.", s.X)
	case Heatmap:
		return "Shows pairwise correlations between the numeric columns."
	case Pairplot:
		return "Shows pairwise relationships between the numeric columns."
	}
	return "This chart could not be validated against the dataset."
}

func (n Normalizer) palette(v any) string {
	p := strings.ToLower(text(v))
	if isPalette(p) {
		return p
	}
	return n.defaultPalette()
}

func orientation(v any) Orientation {
	switch strings.ToLower(text(v)) {
	case "horizontal", "h", "horiz":
		return Horizontal
	}
	return Vertical
}

func bins(v any) int {
	var f float64
	switch b := v.(type) {
	case int:
		return positive(b)
	case int64:
		return positive(int(b))
	case float64:
		f = b
	case json.Number:
		x, err := b.Float64()
		if err != nil {
			return DefaultBins
		}
		f = x
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
		if err != nil {
			return DefaultBins
		}
		f = x
	default:
		return DefaultBins
	}
	if math.IsNaN(f) || f < 1 || f > 10000 {
		return DefaultBins
	}
	return int(f)
}

func positive(b int) int {
	if b <= 0 {
		return DefaultBins
	}
	return b
}

// text renders a candidate value as a trimmed string; nil and null tokens become "".
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		if IsNullToken(x) {
			return ""
		}
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	default:
		s := fmt.Sprint(x)
		if IsNullToken(s) {
			return ""
		}
		return strings.TrimSpace(s)
	}
}
