package chart

import "github.com/KaramelBytes/chartloom-cli/internal/analysis"

// Inventory lists usable columns by kind, in table order.
type Inventory struct {
	Numeric     []string
	Categorical []string
}

// InventoryOf reads the column inventory of t.
func InventoryOf(t *analysis.Table) Inventory {
	return Inventory{Numeric: t.NumericColumns(), Categorical: t.CategoricalColumns()}
}

// DefaultPool is the type order the fallback generator rotates through.
var DefaultPool = []ChartType{Scatter, Bar, Histogram, Boxplot, Heatmap, Line, Count, Violin, StackedBar, Pairplot}

// PoolFor orders allowed by DefaultPool; an empty allowed list yields DefaultPool.
func PoolFor(allowed []ChartType) []ChartType {
	if len(allowed) == 0 {
		return DefaultPool
	}
	var out []ChartType
	for _, t := range DefaultPool {
		if contains(allowed, t) {
			out = append(out, t)
		}
	}
	return out
}

// Fallback deterministically proposes up to n specs from the inventory,
// visiting the pool types round-robin and skipping excluded signatures.
// It stops at n specs or after two consecutive passes that add nothing.
func Fallback(inv Inventory, pool []ChartType, n int, exclude map[Signature]bool) []Spec {
	if n <= 0 {
		return nil
	}
	queues := make(map[ChartType][]Spec, len(pool))
	for _, t := range pool {
		queues[t] = candidatesFor(t, inv)
	}
	taken := make(map[Signature]bool, len(exclude))
	for sig, v := range exclude {
		taken[sig] = v
	}

	var out []Spec
	idle := 0
	for len(out) < n && idle < 2 {
		produced := false
		for _, t := range pool {
			if len(out) >= n {
				break
			}
			q := queues[t]
			for len(q) > 0 {
				s := q[0]
				q = q[1:]
				if taken[s.Signature()] {
					continue
				}
				taken[s.Signature()] = true
				out = append(out, s)
				produced = true
				break
			}
			queues[t] = q
		}
		if produced {
			idle = 0
		} else {
			idle++
		}
	}
	return out
}

// candidatesFor enumerates every spec of type t the inventory supports.
func candidatesFor(t ChartType, inv Inventory) []Spec {
	var out []Spec
	add := func(s Spec) {
		s.Type = t
		s.Orientation = Vertical
		s.Palette = DefaultPalette
		if t == Histogram {
			s.Bins = DefaultBins
		}
		out = append(out, finish(s))
	}
	nums, cats := inv.Numeric, inv.Categorical
	switch t {
	case Scatter, Line:
		for i := 0; i < len(nums); i++ {
			for j := i + 1; j < len(nums); j++ {
				add(Spec{X: nums[i], Y: nums[j]})
			}
		}
	case Bar, Boxplot, Violin:
		for _, c := range cats {
			for _, v := range nums {
				add(Spec{X: c, Y: v})
			}
		}
	case StackedBar:
		if len(cats) < 2 {
			return nil
		}
		for i, c := range cats {
			hue := cats[(i+1)%len(cats)]
			for _, v := range nums {
				add(Spec{X: c, Y: v, Hue: hue})
			}
		}
	case Histogram:
		for _, v := range nums {
			add(Spec{X: v})
		}
	case Count:
		for _, c := range cats {
			add(Spec{X: c})
		}
	case Heatmap, Pairplot:
		if len(nums) >= 3 {
			add(Spec{})
		}
	}
	return out
}
