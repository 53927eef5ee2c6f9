package store

import (
	"strings"

	"github.com/Hearthside-Labs/Mosaic/internal/scoring"
)

// factorAliases maps source column names (lowercased) onto canonical
// factor keys. Sources disagree on naming; everything funnels through
// this table at ingestion so the rest of the system only ever sees
// canonical keys.
var factorAliases = map[string]scoring.FactorKey{
	"price":         scoring.FactorPrice,
	"affordability": scoring.FactorPrice,
	"cost":          scoring.FactorPrice,

	"walkability": scoring.FactorWalkability,
	"walk_index":  scoring.FactorWalkability,
	"natwalkind":  scoring.FactorWalkability,

	"traffic":        scoring.FactorTraffic,
	"vmt":            scoring.FactorTraffic,
	"vmt_per_capita": scoring.FactorTraffic,

	"transit":        scoring.FactorTransit,
	"transit_access": scoring.FactorTransit,
	"transit_freq":   scoring.FactorTransit,

	"noise":           scoring.FactorNoise,
	"noise_pollution": scoring.FactorNoise,

	"air_quality": scoring.FactorAirQuality,
	"air":         scoring.FactorAirQuality,
	"aqi":         scoring.FactorAirQuality,

	"flood":         scoring.FactorFlood,
	"flood_inland":  scoring.FactorFlood,
	"flood_coastal": scoring.FactorFlood,
	"inland_flood":  scoring.FactorFlood,
	"coastal_flood": scoring.FactorFlood,

	"earthquake": scoring.FactorEarthquake,
	"quake":      scoring.FactorEarthquake,
	"seismic":    scoring.FactorEarthquake,

	"wildfire": scoring.FactorWildfire,
	"fire":     scoring.FactorWildfire,
}

// invertSet builds a lookup of lowercased source keys whose values run
// higher-is-worse and must be flipped onto the higher-is-better scale.
func invertSet(keys []string) map[string]bool {
	if len(keys) == 0 {
		return nil
	}
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[strings.ToLower(strings.TrimSpace(k))] = true
	}
	return m
}

// NormalizeScores converts raw source columns into canonical factor
// scores on the 0..1 higher-is-better scale.
//
// Per raw key: values above 1 are treated as percentages and divided by
// 100, keys listed in invert are flipped to 1-v, and the result is
// clamped to [0,1]. Unknown keys are dropped. When several source
// columns feed the same factor (inland and coastal flood, typically)
// the worst normalized value wins, so a tract exposed on either front
// scores as exposed.
func NormalizeScores(raw map[string]float64, invert map[string]bool) scoring.FactorScores {
	if len(raw) == 0 {
		return nil
	}
	out := make(scoring.FactorScores, len(raw))
	for key, v := range raw {
		lk := strings.ToLower(strings.TrimSpace(key))
		factor, ok := factorAliases[lk]
		if !ok {
			continue
		}
		if v > 1 {
			v /= 100
		}
		if invert[lk] {
			v = 1 - v
		}
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		if prev, seen := out[factor]; !seen || v < prev {
			out[factor] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
