package render

import (
	"math"
	"strings"
)

// Qualitative palettes, in seaborn's colour order.
var palettes = map[string][]string{
	"deep":       {"#4C72B0", "#DD8452", "#55A868", "#C44E52", "#8172B3", "#937860", "#DA8BC3", "#8C8C8C", "#CCB974", "#64B5CD"},
	"muted":      {"#4878D0", "#EE854A", "#6ACC64", "#D65F5F", "#956CB4", "#8C613C", "#DC7EC0", "#797979", "#D5BB67", "#82C6E2"},
	"colorblind": {"#0173B2", "#DE8F05", "#029E73", "#D55E00", "#CC78BC", "#CA9161", "#FBAFE4", "#949494", "#ECE133", "#56B4E9"},
	"pastel":     {"#A1C9F4", "#FFB482", "#8DE5A1", "#FF9F9B", "#D0BBFF", "#DEBB9B", "#FAB0E4", "#CFCFCF", "#FFFEA3", "#B9F2F0"},
	"bright":     {"#023EFF", "#FF7C00", "#1AC938", "#E8000B", "#8B2BE2", "#9F4800", "#F14CC1", "#A3A3A3", "#FFC400", "#00D7FF"},
	"dark":       {"#001C7F", "#B1400D", "#12711C", "#8C0800", "#591E71", "#592F0D", "#A23582", "#3C3C3C", "#B8850A", "#006374"},
}

// Colors returns the named palette, or "deep" for unknown names.
func Colors(name string) []string {
	if p, ok := palettes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return palettes["deep"]
}

// coolwarm maps r in [-1, 1] onto a diverging blue-white-red scale.
func coolwarm(r float64) string {
	if math.IsNaN(r) {
		return "#dddddd"
	}
	if r < -1 {
		r = -1
	}
	if r > 1 {
		r = 1
	}
	cold := [3]float64{59, 76, 192}
	mid := [3]float64{221, 221, 221}
	warm := [3]float64{180, 4, 38}
	from, to, t := mid, warm, r
	if r < 0 {
		to, t = cold, -r
	}
	var c [3]int
	for i := range c {
		c[i] = int(from[i] + (to[i]-from[i])*t + 0.5)
	}
	return rgbHex(c)
}

func rgbHex(c [3]int) string {
	const digits = "0123456789ABCDEF"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range c {
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		b[1+2*i] = digits[v>>4]
		b[2+2*i] = digits[v&15]
	}
	return string(b)
}
