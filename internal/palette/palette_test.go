package palette

import (
	"math"
	"testing"
)

func TestThermalExactStopColors(t *testing.T) {
	p := Thermal()

	tests := []struct {
		index float64
		want  string
	}{
		{0, "#31074E"},
		{20, "#7A1FA2"},
		{45, "#E53935"},
		{65, "#FB8C00"},
		{85, "#FFD54F"},
		{100, "#FFF9C4"},
	}
	for _, tt := range tests {
		if got := p.HexFor(tt.index); got != tt.want {
			t.Errorf("index %.0f: expected %s, got %s", tt.index, tt.want, got)
		}
	}
}

func TestThermalInterpolatesMidpoints(t *testing.T) {
	p := Thermal()

	// Halfway between the 45 and 65 stops every channel sits at its
	// midpoint.
	lo, _ := ParseHex("#E53935")
	hi, _ := ParseHex("#FB8C00")
	got := p.ColorFor(55)
	wantR := uint8(math.Round((float64(lo.R) + float64(hi.R)) / 2))
	wantG := uint8(math.Round((float64(lo.G) + float64(hi.G)) / 2))
	wantB := uint8(math.Round((float64(lo.B) + float64(hi.B)) / 2))
	if got.R != wantR || got.G != wantG || got.B != wantB {
		t.Errorf("expected #%02X%02X%02X, got %s", wantR, wantG, wantB, got.Hex())
	}
}

func TestThermalContinuity(t *testing.T) {
	p := Thermal()

	// Stepping across any stop boundary must not jump more than the
	// gradient's own slope allows.
	for _, stop := range p.Stops() {
		before := p.ColorFor(stop.Index - 0.01)
		at := p.ColorFor(stop.Index)
		after := p.ColorFor(stop.Index + 0.01)
		for _, pair := range [][2]Color{{before, at}, {at, after}} {
			if channelDelta(pair[0], pair[1]) > 1 {
				t.Errorf("discontinuity around stop %.0f: %s vs %s",
					stop.Index, pair[0].Hex(), pair[1].Hex())
			}
		}
	}
}

func TestThermalClampsAndStaysDeterministic(t *testing.T) {
	p := Thermal()

	if p.ColorFor(-10) != p.ColorFor(0) {
		t.Error("negative index should clamp to 0")
	}
	if p.ColorFor(140) != p.ColorFor(100) {
		t.Error("oversized index should clamp to 100")
	}
	for i := 0; i <= 100; i += 7 {
		if p.ColorFor(float64(i)) != p.ColorFor(float64(i)) {
			t.Fatalf("non-deterministic color at %d", i)
		}
	}
}

func TestMatchCutoff(t *testing.T) {
	p := Match(20)

	if got := p.ColorFor(19.99); got != Transparent {
		t.Errorf("below cutoff should be transparent, got %s", got.Hex())
	}
	if got := p.HexFor(20); got != "#FFF59D" {
		t.Errorf("at cutoff expected #FFF59D, got %s", got)
	}
	if got := p.HexFor(60); got != "#9CCC65" {
		t.Errorf("band midpoint expected #9CCC65, got %s", got)
	}
	if got := p.HexFor(100); got != "#2E7D32" {
		t.Errorf("top expected #2E7D32, got %s", got)
	}
	if got := p.HexFor(0); got != Transparent.Hex() {
		t.Errorf("zero should be transparent, got %s", got)
	}

	cutoff, banded := p.Cutoff()
	if !banded || cutoff != 20 {
		t.Errorf("expected cutoff 20, got %.1f (banded=%v)", cutoff, banded)
	}
}

func TestMatchTransparentHex(t *testing.T) {
	if got := Transparent.Hex(); got != "#00000000" {
		t.Errorf("expected #00000000, got %s", got)
	}
}

func TestByName(t *testing.T) {
	p, err := ByName("", 0)
	if err != nil || p.Name() != "thermal" {
		t.Errorf("default palette: %v, %v", p, err)
	}
	p, err = ByName("match", 35)
	if err != nil || p.Name() != "match" {
		t.Errorf("match palette: %v, %v", p, err)
	}
	if cutoff, _ := p.Cutoff(); cutoff != 35 {
		t.Errorf("expected cutoff 35, got %.1f", cutoff)
	}
	if _, err := ByName("plasma", 0); err == nil {
		t.Error("expected error for unknown palette")
	}
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#E53935")
	if err != nil {
		t.Fatalf("ParseHex failed: %v", err)
	}
	if c.R != 0xE5 || c.G != 0x39 || c.B != 0x35 || c.A != 0xFF {
		t.Errorf("unexpected color %+v", c)
	}
	if c.Hex() != "#E53935" {
		t.Errorf("round trip produced %s", c.Hex())
	}

	c, err = ParseHex("80402010")
	if err != nil {
		t.Fatalf("ParseHex without hash failed: %v", err)
	}
	if c.A != 0x10 {
		t.Errorf("expected alpha 0x10, got %02X", c.A)
	}

	for _, bad := range []string{"", "#FFF", "#GGGGGG", "#12345"} {
		if _, err := ParseHex(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func channelDelta(a, b Color) int {
	d := func(x, y uint8) int {
		if x > y {
			return int(x - y)
		}
		return int(y - x)
	}
	max := d(a.R, b.R)
	if v := d(a.G, b.G); v > max {
		max = v
	}
	if v := d(a.B, b.B); v > max {
		max = v
	}
	if v := d(a.A, b.A); v > max {
		max = v
	}
	return max
}
