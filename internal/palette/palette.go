// Package palette maps composite index values to display colors for the
// map overlay. Palettes are fixed stop gradients; the same index always
// produces the same color.
package palette

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// Color is an 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

// Transparent is the fully see-through color used below a match cutoff.
var Transparent = Color{}

// ParseHex parses "#RRGGBB" or "#RRGGBBAA".
func ParseHex(s string) (Color, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 8 {
		return Color{}, fmt.Errorf("invalid hex color %q", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	c := Color{R: b[0], G: b[1], B: b[2], A: 0xFF}
	if len(b) == 4 {
		c.A = b[3]
	}
	return c, nil
}

// Hex renders the color as "#RRGGBB", or "#RRGGBBAA" when not opaque.
func (c Color) Hex() string {
	if c.A == 0xFF {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

// Stop pins a color to an index position on the gradient.
type Stop struct {
	Index float64
	Color Color
}

// Palette is a piecewise-linear gradient over index [0,100]. A banded
// palette renders everything below its cutoff as fully transparent; the
// cutoff is the only discontinuity either strategy allows.
type Palette struct {
	name   string
	stops  []Stop
	cutoff float64
	banded bool
}

func mustHex(s string) Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Thermal is the full-range gradient: deep purple through red and orange
// up to pale yellow.
func Thermal() *Palette {
	return &Palette{
		name: "thermal",
		stops: []Stop{
			{0, mustHex("#31074E")},
			{20, mustHex("#7A1FA2")},
			{45, mustHex("#E53935")},
			{65, mustHex("#FB8C00")},
			{85, mustHex("#FFD54F")},
			{100, mustHex("#FFF9C4")},
		},
	}
}

// Match renders indexes below the cutoff transparent ("not a match") and
// grades the rest from light yellow to dark green. The cutoff is clamped
// into [0,99].
func Match(cutoff float64) *Palette {
	cutoff = clamp(cutoff, 0, 99)
	mid := cutoff + (100-cutoff)/2
	return &Palette{
		name:   "match",
		cutoff: cutoff,
		banded: true,
		stops: []Stop{
			{cutoff, mustHex("#FFF59D")},
			{mid, mustHex("#9CCC65")},
			{100, mustHex("#2E7D32")},
		},
	}
}

// ByName resolves a configured palette name. The cutoff only applies to
// the match palette.
func ByName(name string, cutoff float64) (*Palette, error) {
	switch name {
	case "", "thermal":
		return Thermal(), nil
	case "match":
		return Match(cutoff), nil
	default:
		return nil, fmt.Errorf("unknown palette %q", name)
	}
}

// Name returns the palette's configured name.
func (p *Palette) Name() string { return p.name }

// Stops returns the gradient stops in ascending index order.
func (p *Palette) Stops() []Stop {
	out := make([]Stop, len(p.stops))
	copy(out, p.stops)
	return out
}

// Cutoff returns the transparency threshold and whether one applies.
func (p *Palette) Cutoff() (float64, bool) { return p.cutoff, p.banded }

// ColorFor interpolates the color for an index. Indexes are clamped to
// [0,100]; within a band each channel moves linearly between stops.
func (p *Palette) ColorFor(index float64) Color {
	index = clamp(index, 0, 100)
	if p.banded && index < p.cutoff {
		return Transparent
	}
	if index <= p.stops[0].Index {
		return p.stops[0].Color
	}
	last := p.stops[len(p.stops)-1]
	if index >= last.Index {
		return last.Color
	}
	for i := 1; i < len(p.stops); i++ {
		hi := p.stops[i]
		if index > hi.Index {
			continue
		}
		lo := p.stops[i-1]
		t := (index - lo.Index) / (hi.Index - lo.Index)
		return lerp(lo.Color, hi.Color, t)
	}
	return last.Color
}

// HexFor is ColorFor rendered as a hex string.
func (p *Palette) HexFor(index float64) string {
	return p.ColorFor(index).Hex()
}

func lerp(a, b Color, t float64) Color {
	return Color{
		R: lerpChannel(a.R, b.R, t),
		G: lerpChannel(a.G, b.G, t),
		B: lerpChannel(a.B, b.B, t),
		A: lerpChannel(a.A, b.A, t),
	}
}

func lerpChannel(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a)*(1-t) + float64(b)*t))
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
