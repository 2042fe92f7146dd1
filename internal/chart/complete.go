package chart

import "github.com/KaramelBytes/chartloom-cli/internal/analysis"

// Dedupe keeps the first spec for each (type, x, y) signature.
func Dedupe(specs []Spec) []Spec {
	seen := make(map[Signature]bool, len(specs))
	out := make([]Spec, 0, len(specs))
	for _, s := range specs {
		sig := s.Signature()
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, s)
	}
	return out
}

// CompleteOptions configures Complete.
type CompleteOptions struct {
	Table           *analysis.Table
	Allowed         []ChartType
	AllowDuplicates bool
	Normalizer      Normalizer
}

// Complete deduplicates specs, tops the set up from the fallback generator
// (restricted to the allowed types and unique by signature) and truncates
// it to n. Input order is preserved and fallback specs follow it.
func Complete(specs []Spec, n int, opt CompleteOptions) []Spec {
	out := append([]Spec(nil), specs...)
	if !opt.AllowDuplicates {
		out = Dedupe(specs)
	}
	if len(out) < n && opt.Table != nil {
		exclude := make(map[Signature]bool, len(out))
		for _, s := range out {
			exclude[s.Signature()] = true
		}
		extra := Fallback(InventoryOf(opt.Table), PoolFor(opt.Allowed), n-len(out), exclude)
		for _, s := range extra {
			c := s.Candidate()
			delete(c, "palette")
			ns, _ := opt.Normalizer.Normalize(c, Lenient)
			if !ns.Valid() || exclude[ns.Signature()] {
				continue
			}
			exclude[ns.Signature()] = true
			out = append(out, ns)
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}
