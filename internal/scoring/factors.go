package scoring

import "fmt"

// FactorKey identifies one normalized livability dimension. Scores are
// canonical 0-1 floats, higher is better; loaders normalize raw inputs
// before they reach this package.
type FactorKey string

const (
	FactorPrice       FactorKey = "price"
	FactorWalkability FactorKey = "walkability"
	FactorTraffic     FactorKey = "traffic"
	FactorTransit     FactorKey = "transit"
	FactorNoise       FactorKey = "noise"
	FactorAirQuality  FactorKey = "air_quality"
	FactorFlood       FactorKey = "flood"
	FactorEarthquake  FactorKey = "earthquake"
	FactorWildfire    FactorKey = "wildfire"
)

// AllFactors returns every known factor key in stable order.
func AllFactors() []FactorKey {
	return []FactorKey{
		FactorPrice,
		FactorWalkability,
		FactorTraffic,
		FactorTransit,
		FactorNoise,
		FactorAirQuality,
		FactorFlood,
		FactorEarthquake,
		FactorWildfire,
	}
}

// ParseFactorKey resolves a string to a known factor key.
func ParseFactorKey(s string) (FactorKey, error) {
	switch FactorKey(s) {
	case FactorPrice, FactorWalkability, FactorTraffic, FactorTransit,
		FactorNoise, FactorAirQuality, FactorFlood, FactorEarthquake, FactorWildfire:
		return FactorKey(s), nil
	}
	return "", fmt.Errorf("unknown factor key %q", s)
}

// Category groups sub-factors under a single weight slider.
type Category string

const (
	CategoryAffordability Category = "affordability"
	CategoryLivability    Category = "livability"
	CategoryEnvironmental Category = "environmental"
)

// Members returns the factors aggregated by the category.
func (c Category) Members() []FactorKey {
	switch c {
	case CategoryAffordability:
		return []FactorKey{FactorPrice}
	case CategoryLivability:
		return []FactorKey{FactorWalkability, FactorTransit, FactorNoise}
	case CategoryEnvironmental:
		return []FactorKey{FactorFlood, FactorEarthquake, FactorWildfire, FactorAirQuality}
	default:
		return nil
	}
}

// FactorScores maps factors to their normalized 0-1 values for one region.
// Keys may be absent; the calculator substitutes NeutralScore.
type FactorScores map[FactorKey]float64

// NeutralScore stands in for a factor with no data on the canonical scale.
const NeutralScore = 0.5

// NeutralIndex is returned when no preference is expressed at all.
const NeutralIndex = 50

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
