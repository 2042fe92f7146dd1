package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	bgColor   = "#ffffff"
	gridColor = "#e8e8e8"
	axisColor = "#555555"
	textColor = "#333333"
	fontSize  = 11
)

// canvas accumulates SVG markup for one chart with a fixed plot area.
type canvas struct {
	sb   strings.Builder
	w, h int
	// plot area
	px, py, pw, ph float64
}

func newCanvas(o Options, title string) *canvas {
	c := &canvas{w: o.Width, h: o.Height}
	c.px, c.py = 70, 40
	c.pw = float64(o.Width) - c.px - 30
	c.ph = float64(o.Height) - c.py - 60
	fmt.Fprintf(&c.sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		c.w, c.h, c.w, c.h)
	fmt.Fprintf(&c.sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, c.w, c.h, bgColor)
	if title != "" {
		fmt.Fprintf(&c.sb, `<text x="%d" y="22" font-size="15" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
			c.w/2, textColor, escapeXML(title))
	}
	return c
}

func (c *canvas) rect(x, y, w, h float64, fill string) {
	if h < 0 {
		y, h = y+h, -h
	}
	if w < 0 {
		x, w = x+w, -w
	}
	fmt.Fprintf(&c.sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>`, x, y, w, h, fill)
}

func (c *canvas) line(x1, y1, x2, y2 float64, stroke string, width float64) {
	fmt.Fprintf(&c.sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="%.1f"/>`, x1, y1, x2, y2, stroke, width)
}

func (c *canvas) circle(x, y, r float64, fill string) {
	fmt.Fprintf(&c.sb, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s" fill-opacity="0.8"/>`, x, y, r, fill)
}

func (c *canvas) polyline(xs, ys []float64, stroke string) {
	if len(xs) == 0 {
		return
	}
	parts := make([]string, len(xs))
	for i := range xs {
		parts[i] = fmt.Sprintf("%.1f,%.1f", xs[i], ys[i])
	}
	fmt.Fprintf(&c.sb, `<polyline points="%s" fill="none" stroke="%s" stroke-width="2"/>`, strings.Join(parts, " "), stroke)
}

func (c *canvas) polygon(xs, ys []float64, fill string) {
	parts := make([]string, len(xs))
	for i := range xs {
		parts[i] = fmt.Sprintf("%.1f,%.1f", xs[i], ys[i])
	}
	fmt.Fprintf(&c.sb, `<polygon points="%s" fill="%s" fill-opacity="0.85" stroke="%s" stroke-width="1"/>`, strings.Join(parts, " "), fill, axisColor)
}

func (c *canvas) text(x, y float64, size int, anchor, s string) {
	fmt.Fprintf(&c.sb, `<text x="%.1f" y="%.1f" font-size="%d" fill="%s" text-anchor="%s">%s</text>`, x, y, size, textColor, anchor, escapeXML(s))
}

func (c *canvas) rotatedText(x, y float64, s string) {
	fmt.Fprintf(&c.sb, `<text x="%.1f" y="%.1f" font-size="%d" fill="%s" text-anchor="middle" transform="rotate(-90 %.1f %.1f)">%s</text>`,
		x, y, fontSize+1, textColor, x, y, escapeXML(s))
}

// axisLabels writes the x label under the plot and the y label along its left edge.
func (c *canvas) axisLabels(x, y string) {
	if x != "" {
		c.text(c.px+c.pw/2, c.py+c.ph+44, fontSize+1, "middle", x)
	}
	if y != "" {
		c.rotatedText(18, c.py+c.ph/2, y)
	}
}

func (c *canvas) frame() {
	c.line(c.px, c.py+c.ph, c.px+c.pw, c.py+c.ph, axisColor, 1)
	c.line(c.px, c.py, c.px, c.py+c.ph, axisColor, 1)
}

// yTicks draws horizontal grid lines with value labels for a vertical scale.
func (c *canvas) yTicks(s scale) {
	for _, v := range s.ticks() {
		y := s.at(v)
		c.line(c.px, y, c.px+c.pw, y, gridColor, 1)
		c.text(c.px-6, y+4, fontSize, "end", formatNum(v))
	}
}

// xTicks draws vertical grid lines with value labels for a horizontal scale.
func (c *canvas) xTicks(s scale) {
	for _, v := range s.ticks() {
		x := s.at(v)
		c.line(x, c.py, x, c.py+c.ph, gridColor, 1)
		c.text(x, c.py+c.ph+16, fontSize, "middle", formatNum(v))
	}
}

// legend lists hue levels in the top-right corner of the plot area.
func (c *canvas) legend(title string, levels []string, colors []string) {
	if len(levels) == 0 {
		return
	}
	x := c.px + c.pw - 110
	y := c.py + 6
	if title != "" {
		c.text(x, y+8, fontSize, "start", title)
		y += 14
	}
	for i, l := range levels {
		c.rect(x, y+float64(i)*14, 10, 10, colors[i%len(colors)])
		c.text(x+14, y+float64(i)*14+9, fontSize-1, "start", truncate(l, 16))
	}
}

func (c *canvas) bytes() []byte {
	c.sb.WriteString("</svg>")
	return []byte(c.sb.String())
}

// scale maps a data interval onto a pixel interval; lo may exceed hi for y axes.
type scale struct {
	min, max float64
	lo, hi   float64
}

func newScale(min, max, lo, hi float64) scale {
	if math.IsInf(min, 0) || math.IsInf(max, 0) || math.IsNaN(min) || math.IsNaN(max) {
		min, max = 0, 1
	}
	if max-min < 1e-12 {
		pad := math.Max(math.Abs(min)*0.1, 0.5)
		min, max = min-pad, max+pad
	}
	step := niceStep(max - min)
	return scale{min: math.Floor(min/step) * step, max: math.Ceil(max/step) * step, lo: lo, hi: hi}
}

func (s scale) at(v float64) float64 {
	return s.lo + (v-s.min)/(s.max-s.min)*(s.hi-s.lo)
}

func (s scale) ticks() []float64 {
	step := niceStep(s.max - s.min)
	var out []float64
	for v := s.min; v <= s.max+step/2; v += step {
		if math.Abs(v) < step*1e-9 {
			v = 0
		}
		out = append(out, v)
	}
	return out
}

// niceStep picks a 1/2/5 x 10^k step giving about five intervals.
func niceStep(span float64) float64 {
	if span <= 0 {
		return 1
	}
	raw := span / 5
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch f := raw / mag; {
	case f < 1.5:
		return mag
	case f < 3:
		return 2 * mag
	case f < 7:
		return 5 * mag
	}
	return 10 * mag
}

func extent(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return 0, 1
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func formatNum(v float64) string {
	a := math.Abs(v)
	switch {
	case a >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 1, 64) + "M"
	case a >= 1e4:
		return strconv.FormatFloat(v/1e3, 'f', 0, 64) + "k"
	case a == math.Trunc(a):
		return strconv.FormatFloat(v, 'f', 0, 64)
	case a >= 1:
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'g', 2, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
