package analysis

import (
	"math"
	"sort"
	"strings"
)

// Kind is the explicit type the loader assigns to every column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
)

// Column holds the cleaned cells of one dataset column.
type Column struct {
	Name string
	Unit string
	Kind Kind
	// Raw holds trimmed cell text; "" marks a missing value.
	Raw []string
	// Nums is populated for numeric columns only; NaN marks a missing value.
	Nums []float64
}

// IsNumeric reports whether the column was classified as numeric.
func (c *Column) IsNumeric() bool { return c != nil && c.Kind == KindNumeric }

// NonNull counts the present cells.
func (c *Column) NonNull() int {
	n := 0
	for _, v := range c.Raw {
		if v != "" {
			n++
		}
	}
	return n
}

// Values returns the non-missing numeric values in row order.
func (c *Column) Values() []float64 {
	if !c.IsNumeric() {
		return nil
	}
	out := make([]float64, 0, len(c.Nums))
	for _, v := range c.Nums {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Levels returns the distinct non-missing values in first-seen order.
func (c *Column) Levels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range c.Raw {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Table is an in-memory dataset with explicitly typed columns.
type Table struct {
	Name    string
	Columns []*Column
	// Rows is the number of data rows kept; Total counts rows seen in the source.
	Rows  int
	Total int
	// Dropped records columns removed while cleaning, as "name: reason".
	Dropped []string
}

// Empty reports whether the table has no rows or no usable columns.
func (t *Table) Empty() bool {
	return t == nil || t.Rows == 0 || len(t.Columns) == 0
}

// Lookup resolves a column by exact name, falling back to a
// case-insensitive match on the trimmed name.
func (t *Table) Lookup(name string) (*Column, bool) {
	if t == nil {
		return nil, false
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return nil, false
	}
	for _, c := range t.Columns {
		if strings.ToLower(c.Name) == want {
			return c, true
		}
	}
	return nil, false
}

// Header lists column names in table order.
func (t *Table) Header() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// NumericColumns lists numeric column names in table order.
func (t *Table) NumericColumns() []string { return t.namesOf(KindNumeric) }

// CategoricalColumns lists categorical column names in table order.
func (t *Table) CategoricalColumns() []string { return t.namesOf(KindCategorical) }

func (t *Table) namesOf(k Kind) []string {
	if t == nil {
		return nil
	}
	var out []string
	for _, c := range t.Columns {
		if c.Kind == k {
			out = append(out, c.Name)
		}
	}
	return out
}

// Row returns the raw cells of row i in column order.
func (t *Table) Row(i int) []string {
	out := make([]string, len(t.Columns))
	for j, c := range t.Columns {
		if i < len(c.Raw) {
			out[j] = c.Raw[i]
		}
	}
	return out
}

// Pairs returns the rows where both numeric columns are present.
func Pairs(a, b *Column) (xs, ys []float64) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return nil, nil
	}
	n := len(a.Nums)
	if len(b.Nums) < n {
		n = len(b.Nums)
	}
	for i := 0; i < n; i++ {
		x, y := a.Nums[i], b.Nums[i]
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys
}

// Welford accumulates count, mean, variance and range in one pass.
type Welford struct {
	N        int
	Mean     float64
	M2       float64
	Min, Max float64
}

// Add folds x into the running statistics.
func (w *Welford) Add(x float64) {
	if w.N == 0 {
		w.Min, w.Max = x, x
	}
	w.N++
	if x < w.Min {
		w.Min = x
	}
	if x > w.Max {
		w.Max = x
	}
	delta := x - w.Mean
	w.Mean += delta / float64(w.N)
	w.M2 += delta * (x - w.Mean)
}

// Std is the sample standard deviation.
func (w *Welford) Std() float64 {
	if w.N < 2 {
		return 0
	}
	return math.Sqrt(w.M2 / float64(w.N-1))
}

// MedianMAD computes median and MAD (median absolute deviation) of values.
func MedianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = Quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = Quantile(dev, 0.5)
	return
}

// Quantile interpolates linearly over an ascending slice.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
