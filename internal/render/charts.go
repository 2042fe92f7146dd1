package render

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/chart"
)

const (
	maxCategories  = 40
	maxSeries      = 10
	maxPairColumns = 5
)

var errNoRows = errors.New("no rows with the required values present")

type aggFunc int

const (
	aggMean aggFunc = iota
	aggSum
	aggCount
)

// grid holds one aggregated value per (category, series); NaN marks an empty cell.
type grid struct {
	cats   []string
	series []string
	vals   [][]float64
}

func column(t *analysis.Table, field, name string) (*analysis.Column, error) {
	if name == "" {
		return nil, fmt.Errorf("%s column is required", field)
	}
	c, ok := t.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%s column %q not found", field, name)
	}
	return c, nil
}

func numericColumn(t *analysis.Table, field, name string) (*analysis.Column, error) {
	c, err := column(t, field, name)
	if err != nil {
		return nil, err
	}
	if !c.IsNumeric() {
		return nil, fmt.Errorf("%s column %q is not numeric", field, name)
	}
	return c, nil
}

// hueColumn resolves an optional categorical grouping column.
func hueColumn(t *analysis.Table, name string) *analysis.Column {
	if name == "" {
		return nil
	}
	if c, ok := t.Lookup(name); ok && !c.IsNumeric() {
		return c
	}
	return nil
}

// keyAt is the grouping key of row i; "" means missing.
func keyAt(c *analysis.Column, i int) string {
	if c == nil {
		return ""
	}
	if c.IsNumeric() {
		if i >= len(c.Nums) || math.IsNaN(c.Nums[i]) {
			return ""
		}
		return strconv.FormatFloat(c.Nums[i], 'g', -1, 64)
	}
	if i >= len(c.Raw) {
		return ""
	}
	return c.Raw[i]
}

func valueAt(c *analysis.Column, i int) float64 {
	if c == nil || !c.IsNumeric() || i >= len(c.Nums) {
		return math.NaN()
	}
	return c.Nums[i]
}

// levelsOf lists distinct keys in first-seen order, numerically sorted for numeric columns.
func levelsOf(c *analysis.Column, rows int, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < rows; i++ {
		k := keyAt(c, i)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	if c.IsNumeric() {
		sort.Slice(out, func(a, b int) bool {
			x, _ := strconv.ParseFloat(out[a], 64)
			y, _ := strconv.ParseFloat(out[b], 64)
			return x < y
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func indexOf(keys []string) map[string]int {
	m := make(map[string]int, len(keys))
	for i, k := range keys {
		m[k] = i
	}
	return m
}

// aggregate groups y by x level and optional hue level.
func aggregate(rows int, x, y, hue *analysis.Column, f aggFunc) (grid, error) {
	g := grid{cats: levelsOf(x, rows, maxCategories), series: []string{""}}
	if hue != nil {
		g.series = levelsOf(hue, rows, maxSeries)
	}
	if len(g.cats) == 0 || len(g.series) == 0 {
		return g, errNoRows
	}
	ci, si := indexOf(g.cats), indexOf(g.series)
	sum := make([][]float64, len(g.cats))
	n := make([][]int, len(g.cats))
	for i := range sum {
		sum[i] = make([]float64, len(g.series))
		n[i] = make([]int, len(g.series))
	}
	found := false
	for i := 0; i < rows; i++ {
		a, ok := ci[keyAt(x, i)]
		if !ok {
			continue
		}
		b := 0
		if hue != nil {
			if b, ok = si[keyAt(hue, i)]; !ok {
				continue
			}
		}
		v := 1.0
		if f != aggCount {
			if v = valueAt(y, i); math.IsNaN(v) {
				continue
			}
		}
		sum[a][b] += v
		n[a][b]++
		found = true
	}
	if !found {
		return g, errNoRows
	}
	g.vals = make([][]float64, len(g.cats))
	for a := range sum {
		g.vals[a] = make([]float64, len(g.series))
		for b := range sum[a] {
			switch {
			case n[a][b] == 0:
				g.vals[a][b] = math.NaN()
			case f == aggMean:
				g.vals[a][b] = sum[a][b] / float64(n[a][b])
			default:
				g.vals[a][b] = sum[a][b]
			}
		}
	}
	return g, nil
}

// groupsOf collects the non-missing y values per x level. A nil x yields one group.
func groupsOf(rows int, x, y *analysis.Column) ([]string, [][]float64) {
	if x == nil {
		vals := y.Values()
		if len(vals) == 0 {
			return nil, nil
		}
		sort.Float64s(vals)
		return []string{y.Name}, [][]float64{vals}
	}
	cats := levelsOf(x, rows, maxCategories)
	idx := indexOf(cats)
	groups := make([][]float64, len(cats))
	for i := 0; i < rows; i++ {
		a, ok := idx[keyAt(x, i)]
		if !ok {
			continue
		}
		if v := valueAt(y, i); !math.IsNaN(v) {
			groups[a] = append(groups[a], v)
		}
	}
	var outCats []string
	var outVals [][]float64
	for i, g := range groups {
		if len(g) > 0 {
			sort.Float64s(g)
			outCats = append(outCats, cats[i])
			outVals = append(outVals, g)
		}
	}
	return outCats, outVals
}

// barChart covers bar (mean), stacked_bar (sum) and count charts.
func barChart(s chart.Spec, t *analysis.Table, o Options) ([]byte, error) {
	x, err := column(t, "x", s.X)
	if err != nil {
		return nil, err
	}
	f, yLabel := aggMean, s.Y
	var y *analysis.Column
	switch s.Type {
	case chart.Count:
		f, yLabel = aggCount, "count"
	default:
		if y, err = numericColumn(t, "y", s.Y); err != nil {
			return nil, err
		}
		if s.Type == chart.StackedBar {
			f = aggSum
		}
	}
	hue := hueColumn(t, s.Hue)
	g, err := aggregate(t.Rows, x, y, hue, f)
	if err != nil {
		return nil, err
	}
	horizontal := s.Orientation == chart.Horizontal
	colors := Colors(o.Palette)
	c := newCanvas(o, s.Title)
	c.bars(g, s.Type == chart.StackedBar, horizontal, colors, hue == nil)
	c.frame()
	if horizontal {
		c.axisLabels(yLabel, s.X)
	} else {
		c.axisLabels(s.X, yLabel)
	}
	if hue != nil {
		c.legend(hue.Name, g.series, colors)
	}
	return c.bytes(), nil
}

func (c *canvas) bars(g grid, stacked, horizontal bool, colors []string, colorByCat bool) {
	lo, hi := 0.0, 0.0
	for _, row := range g.vals {
		pos, neg := 0.0, 0.0
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			switch {
			case !stacked:
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			case v > 0:
				pos += v
			default:
				neg += v
			}
		}
		if stacked {
			lo, hi = math.Min(lo, neg), math.Max(hi, pos)
		}
	}
	var vs scale
	span := c.pw
	if horizontal {
		vs = newScale(lo, hi, c.px, c.px+c.pw)
		c.xTicks(vs)
		span = c.ph
	} else {
		vs = newScale(lo, hi, c.py+c.ph, c.py)
		c.yTicks(vs)
	}
	band := span / float64(len(g.cats))
	slots := len(g.series)
	if stacked {
		slots = 1
	}
	w := band * 0.8 / float64(slots)
	for i, cat := range g.cats {
		start := band*float64(i) + band*0.1
		pos, neg := 0.0, 0.0
		for j, v := range g.vals[i] {
			if math.IsNaN(v) {
				continue
			}
			color := colors[j%len(colors)]
			if colorByCat {
				color = colors[i%len(colors)]
			}
			base, off := 0.0, start
			switch {
			case !stacked:
				off += w * float64(j)
			case v >= 0:
				base, pos = pos, pos+v
			default:
				base, neg = neg, neg+v
			}
			a, b := vs.at(base), vs.at(base+v)
			if horizontal {
				c.rect(a, c.py+off, b-a, w, color)
			} else {
				c.rect(c.px+off, b, w, a-b, color)
			}
		}
		mid := band * (float64(i) + 0.5)
		if horizontal {
			c.text(c.px-6, c.py+mid+4, fontSize, "end", truncate(cat, 10))
		} else {
			c.text(c.px+mid, c.py+c.ph+16, fontSize, "middle", truncate(cat, 12))
		}
	}
}

func histogramChart(s chart.Spec, t *analysis.Table, o Options) ([]byte, error) {
	x, err := numericColumn(t, "x", s.X)
	if err != nil {
		return nil, err
	}
	vals := x.Values()
	if len(vals) == 0 {
		return nil, errNoRows
	}
	bins := s.Bins
	if bins <= 0 {
		bins = chart.DefaultBins
	}
	lo, hi := extent(vals)
	if hi-lo < 1e-12 {
		pad := math.Max(math.Abs(lo)*1e-6, 0.5)
		lo, hi = lo-pad, hi+pad
	}
	width := (hi - lo) / float64(bins)
	if !(width > 0) || math.IsInf(width, 0) {
		return nil, fmt.Errorf("column %q has no drawable range", s.X)
	}
	hue := hueColumn(t, s.Hue)
	series := []string{""}
	if hue != nil {
		series = levelsOf(hue, t.Rows, maxSeries)
	}
	si := indexOf(series)
	counts := make([][]float64, bins)
	for i := range counts {
		counts[i] = make([]float64, len(series))
	}
	for i := 0; i < t.Rows; i++ {
		v := valueAt(x, i)
		if math.IsNaN(v) {
			continue
		}
		j := 0
		if hue != nil {
			var ok bool
			if j, ok = si[keyAt(hue, i)]; !ok {
				continue
			}
		}
		f := (v - lo) / width
		if math.IsNaN(f) {
			continue
		}
		b := bins - 1
		if f < float64(bins) {
			b = max(int(f), 0)
		}
		counts[b][j]++
	}
	top := 0.0
	for _, row := range counts {
		sum := 0.0
		for _, n := range row {
			sum += n
		}
		top = math.Max(top, sum)
	}

	c := newCanvas(o, s.Title)
	xs := newScale(lo, hi, c.px, c.px+c.pw)
	ys := newScale(0, top, c.py+c.ph, c.py)
	c.yTicks(ys)
	c.xTicks(xs)
	colors := Colors(o.Palette)
	for b, row := range counts {
		x0, x1 := xs.at(lo+width*float64(b)), xs.at(lo+width*float64(b+1))
		base := 0.0
		for j, n := range row {
			if n == 0 {
				continue
			}
			color := o.DefaultColor
			if hue != nil {
				color = colors[j%len(colors)]
			}
			c.rect(x0, ys.at(base+n), x1-x0-0.5, ys.at(base)-ys.at(base+n), color)
			base += n
		}
	}
	c.frame()
	c.axisLabels(s.X, "count")
	if hue != nil {
		c.legend(hue.Name, series, colors)
	}
	return c.bytes(), nil
}

func scatterChart(s chart.Spec, t *analysis.Table, o Options) ([]byte, error) {
	x, err := numericColumn(t, "x", s.X)
	if err != nil {
		return nil, err
	}
	y, err := numericColumn(t, "y", s.Y)
	if err != nil {
		return nil, err
	}
	xv, yv := analysis.Pairs(x, y)
	if len(xv) == 0 {
		return nil, errNoRows
	}
	hue := hueColumn(t, s.Hue)
	var series []string
	if hue != nil {
		series = levelsOf(hue, t.Rows, maxSeries)
	}
	si := indexOf(series)
	colors := Colors(o.Palette)

	c := newCanvas(o, s.Title)
	xlo, xhi := extent(xv)
	ylo, yhi := extent(yv)
	xs := newScale(xlo, xhi, c.px, c.px+c.pw)
	ys := newScale(ylo, yhi, c.py+c.ph, c.py)
	c.yTicks(ys)
	c.xTicks(xs)
	for i := 0; i < t.Rows; i++ {
		a, b := valueAt(x, i), valueAt(y, i)
		if math.IsNaN(a) || math.IsNaN(b) {
			continue
		}
		color := o.DefaultColor
		if hue != nil {
			j, ok := si[keyAt(hue, i)]
			if !ok {
				continue
			}
			color = colors[j%len(colors)]
		}
		c.circle(xs.at(a), ys.at(b), 3.5, color)
	}
	c.frame()
	c.axisLabels(s.X, s.Y)
	if hue != nil {
		c.legend(hue.Name, series, colors)
	}
	return c.bytes(), nil
}

// lineChart plots the mean of y at each distinct x, one line per hue level.
func lineChart(s chart.Spec, t *analysis.Table, o Options) ([]byte, error) {
	x, err := numericColumn(t, "x", s.X)
	if err != nil {
		return nil, err
	}
	y, err := numericColumn(t, "y", s.Y)
	if err != nil {
		return nil, err
	}
	hue := hueColumn(t, s.Hue)
	g, err := aggregate(t.Rows, x, y, hue, aggMean)
	if err != nil {
		return nil, err
	}
	pos := make([]float64, len(g.cats))
	for i, k := range g.cats {
		pos[i], _ = strconv.ParseFloat(k, 64)
	}
	var flat []float64
	for _, row := range g.vals {
		for _, v := range row {
			if !math.IsNaN(v) {
				flat = append(flat, v)
			}
		}
	}
	c := newCanvas(o, s.Title)
	xlo, xhi := extent(pos)
	ylo, yhi := extent(flat)
	xs := newScale(xlo, xhi, c.px, c.px+c.pw)
	ys := newScale(ylo, yhi, c.py+c.ph, c.py)
	c.yTicks(ys)
	c.xTicks(xs)
	colors := Colors(o.Palette)
	for j := range g.series {
		color := o.DefaultColor
		if hue != nil {
			color = colors[j%len(colors)]
		}
		var px, py []float64
		for i := range g.cats {
			if v := g.vals[i][j]; !math.IsNaN(v) {
				px = append(px, xs.at(pos[i]))
				py = append(py, ys.at(v))
			}
		}
		c.polyline(px, py, color)
		for k := range px {
			c.circle(px[k], py[k], 2.5, color)
		}
	}
	c.frame()
	c.axisLabels(s.X, s.Y)
	if hue != nil {
		c.legend(hue.Name, g.series, colors)
	}
	return c.bytes(), nil
}

// distributionChart draws boxplots or violins of y per x level.
func distributionChart(s chart.Spec, t *analysis.Table, o Options) ([]byte, error) {
	y, err := numericColumn(t, "y", s.Y)
	if err != nil {
		return nil, err
	}
	var x *analysis.Column
	if s.X != "" {
		if x, err = column(t, "x", s.X); err != nil {
			return nil, err
		}
	}
	cats, groups := groupsOf(t.Rows, x, y)
	if len(cats) == 0 {
		return nil, errNoRows
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, g := range groups {
		lo, hi = math.Min(lo, g[0]), math.Max(hi, g[len(g)-1])
	}
	kdes := make([]kde, len(groups))
	if s.Type == chart.Violin {
		for i, g := range groups {
			kdes[i] = newKDE(g)
			lo, hi = math.Min(lo, kdes[i].lo), math.Max(hi, kdes[i].hi)
		}
	}

	c := newCanvas(o, s.Title)
	ys := newScale(lo, hi, c.py+c.ph, c.py)
	c.yTicks(ys)
	colors := Colors(o.Palette)
	band := c.pw / float64(len(cats))
	for i, g := range groups {
		mid := c.px + band*(float64(i)+0.5)
		color := colors[i%len(colors)]
		q1, med, q3 := analysis.Quantile(g, 0.25), analysis.Quantile(g, 0.5), analysis.Quantile(g, 0.75)
		if s.Type == chart.Violin {
			c.violin(kdes[i], mid, band*0.4, ys, color)
			c.rect(mid-3, ys.at(q3), 6, ys.at(q1)-ys.at(q3), axisColor)
			c.circle(mid, ys.at(med), 2.5, "#ffffff")
		} else {
			c.box(g, q1, med, q3, mid, band*0.3, ys, color)
		}
		c.text(mid, c.py+c.ph+16, fontSize, "middle", truncate(cats[i], 12))
	}
	c.frame()
	c.axisLabels(s.X, s.Y)
	return c.bytes(), nil
}

func (c *canvas) box(g []float64, q1, med, q3, mid, half float64, ys scale, color string) {
	iqr := q3 - q1
	loW, hiW := q1, q3
	for _, v := range g {
		if v >= q1-1.5*iqr && v < loW {
			loW = v
		}
		if v <= q3+1.5*iqr && v > hiW {
			hiW = v
		}
	}
	c.line(mid, ys.at(loW), mid, ys.at(q1), axisColor, 1.2)
	c.line(mid, ys.at(q3), mid, ys.at(hiW), axisColor, 1.2)
	c.line(mid-half/2, ys.at(loW), mid+half/2, ys.at(loW), axisColor, 1.2)
	c.line(mid-half/2, ys.at(hiW), mid+half/2, ys.at(hiW), axisColor, 1.2)
	c.rect(mid-half, ys.at(q3), 2*half, ys.at(q1)-ys.at(q3), color)
	c.line(mid-half, ys.at(med), mid+half, ys.at(med), axisColor, 2)
	for _, v := range g {
		if v < loW || v > hiW {
			c.circle(mid, ys.at(v), 2.5, axisColor)
		}
	}
}

func (c *canvas) violin(k kde, mid, half float64, ys scale, color string) {
	const steps = 48
	peak := 0.0
	dens := make([]float64, steps+1)
	at := make([]float64, steps+1)
	for i := range dens {
		at[i] = k.lo + (k.hi-k.lo)*float64(i)/steps
		dens[i] = k.at(at[i])
		peak = math.Max(peak, dens[i])
	}
	if peak == 0 {
		peak = 1
	}
	xs := make([]float64, 0, 2*len(at))
	yv := make([]float64, 0, 2*len(at))
	for i := range at {
		xs = append(xs, mid+half*dens[i]/peak)
		yv = append(yv, ys.at(at[i]))
	}
	for i := len(at) - 1; i >= 0; i-- {
		xs = append(xs, mid-half*dens[i]/peak)
		yv = append(yv, ys.at(at[i]))
	}
	c.polygon(xs, yv, color)
}

// kde is a Gaussian kernel density estimate with Silverman's bandwidth.
type kde struct {
	data   []float64
	bw     float64
	lo, hi float64
}

func newKDE(sorted []float64) kde {
	var w analysis.Welford
	for _, v := range sorted {
		w.Add(v)
	}
	sd := w.Std()
	bw := 1.06 * sd * math.Pow(float64(len(sorted)), -0.2)
	if bw <= 0 || math.IsNaN(bw) {
		bw = math.Max(math.Abs(w.Mean)*0.05, 0.5)
	}
	return kde{data: sorted, bw: bw, lo: sorted[0] - 2*bw, hi: sorted[len(sorted)-1] + 2*bw}
}

func (k kde) at(x float64) float64 {
	sum := 0.0
	for _, v := range k.data {
		z := (x - v) / k.bw
		sum += math.Exp(-0.5 * z * z)
	}
	return sum / (float64(len(k.data)) * k.bw * math.Sqrt(2*math.Pi))
}

func heatmapChart(s chart.Spec, t *analysis.Table, o Options) ([]byte, error) {
	m := analysis.Correlation(t, t.NumericColumns())
	k := len(m.Columns)
	if k < 2 {
		return nil, errors.New("needs at least 2 numeric columns")
	}
	c := newCanvas(o, s.Title)
	left := c.px + 40
	size := math.Min(c.pw-40, c.ph) / float64(k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			r := m.Values[i][j]
			x, y := left+size*float64(j), c.py+size*float64(i)
			c.rect(x, y, size-1, size-1, coolwarm(r))
			fill := textColor
			if math.Abs(r) > 0.6 {
				fill = "#ffffff"
			}
			fmt.Fprintf(&c.sb, `<text x="%.1f" y="%.1f" font-size="%d" fill="%s" text-anchor="middle">%.2f</text>`,
				x+size/2, y+size/2+4, fontSize, fill, r)
		}
		c.text(left-6, c.py+size*(float64(i)+0.5)+4, fontSize, "end", truncate(m.Columns[i], 14))
		c.text(left+size*(float64(i)+0.5), c.py+size*float64(k)+16, fontSize, "middle", truncate(m.Columns[i], 14))
	}
	return c.bytes(), nil
}

// pairplotChart draws a scatter matrix over the first numeric columns with
// histograms on the diagonal.
func pairplotChart(s chart.Spec, t *analysis.Table, o Options) ([]byte, error) {
	names := t.NumericColumns()
	if len(names) < 2 {
		return nil, errors.New("needs at least 2 numeric columns")
	}
	if len(names) > maxPairColumns {
		names = names[:maxPairColumns]
	}
	cols := make([]*analysis.Column, len(names))
	for i, n := range names {
		cols[i], _ = t.Lookup(n)
	}
	hue := hueColumn(t, s.Hue)
	var series []string
	if hue != nil {
		series = levelsOf(hue, t.Rows, maxSeries)
	}
	si := indexOf(series)
	colors := Colors(o.Palette)

	c := newCanvas(o, s.Title)
	k := len(cols)
	size := math.Min(c.pw, c.ph) / float64(k)
	left := c.px + (c.pw-size*float64(k))/2
	for i, row := range cols {
		for j, col := range cols {
			x0, y0 := left+size*float64(j), c.py+size*float64(i)
			c.rect(x0+2, y0+2, size-4, size-4, "#f7f7f7")
			clo, chi := extent(col.Values())
			xs := newScale(clo, chi, x0+6, x0+size-6)
			if i == j {
				c.miniHistogram(col.Values(), xs, y0+size-6, size-12, o.DefaultColor)
				continue
			}
			rlo, rhi := extent(row.Values())
			ys := newScale(rlo, rhi, y0+size-6, y0+6)
			for r := 0; r < t.Rows; r++ {
				a, b := valueAt(col, r), valueAt(row, r)
				if math.IsNaN(a) || math.IsNaN(b) {
					continue
				}
				color := o.DefaultColor
				if hue != nil {
					h, ok := si[keyAt(hue, r)]
					if !ok {
						continue
					}
					color = colors[h%len(colors)]
				}
				c.circle(xs.at(a), ys.at(b), 1.8, color)
			}
		}
		c.text(left-6, c.py+size*(float64(i)+0.5)+4, fontSize-1, "end", truncate(row.Name, 10))
		c.text(left+size*(float64(i)+0.5), c.py+size*float64(k)+14, fontSize-1, "middle", truncate(row.Name, 14))
	}
	if hue != nil {
		c.legend(hue.Name, series, colors)
	}
	return c.bytes(), nil
}

func (c *canvas) miniHistogram(vals []float64, xs scale, base, height float64, color string) {
	const bins = 10
	if len(vals) == 0 {
		return
	}
	lo, hi := extent(vals)
	width := (hi - lo) / bins
	if width <= 0 {
		width = 1
	}
	var counts [bins]float64
	top := 0.0
	for _, v := range vals {
		b := int((v - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		counts[b]++
		top = math.Max(top, counts[b])
	}
	for b, n := range counts {
		if n == 0 {
			continue
		}
		x0, x1 := xs.at(lo+width*float64(b)), xs.at(lo+width*float64(b+1))
		h := height * n / top
		c.rect(x0, base-h, x1-x0-0.5, h, color)
	}
}
