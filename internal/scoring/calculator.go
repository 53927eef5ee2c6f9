package scoring

import "math"

// FactorContribution is one enabled factor's share of a composite index,
// kept for detail panels and narrative prompts.
type FactorContribution struct {
	Factor    FactorKey `json:"factor"`
	Group     GroupKey  `json:"group"`
	Score     float64   `json:"score"`
	Weight    float64   `json:"weight"`
	Weighted  float64   `json:"weighted"`
	Available bool      `json:"available"`
}

// ComputeIndex reduces one region's factor scores to the 0-100 composite
// under the given weights and selections.
//
// A group participates when its slider is positive and at least one member
// is enabled; the slider value splits evenly across the enabled members. A
// score missing from the region substitutes NeutralScore rather than being
// skipped. When nothing participates the result is the fixed NeutralIndex.
// Total over its domain: never errors, never panics on well-typed input.
func (s *Schema) ComputeIndex(scores FactorScores, w Weights, sel Selections) int {
	var totalWeight, weightedSum float64
	for _, g := range s.groups {
		gw := w[g.Key]
		if gw <= 0 {
			continue
		}
		enabled := s.enabledMembers(g, sel)
		if len(enabled) == 0 {
			continue
		}
		per := float64(gw) / float64(len(enabled))
		for _, f := range enabled {
			score, ok := scores[f]
			if !ok {
				score = NeutralScore
			}
			totalWeight += per
			weightedSum += per * score
		}
	}
	if totalWeight == 0 {
		return NeutralIndex
	}
	// Round-half-up on the final index only; intermediates stay exact.
	return int(math.Round(clamp(100*weightedSum/totalWeight, 0, 100)))
}

// Breakdown returns the per-factor contributions behind ComputeIndex for
// the same inputs, in schema order. Only enabled factors appear.
func (s *Schema) Breakdown(scores FactorScores, w Weights, sel Selections) []FactorContribution {
	var out []FactorContribution
	for _, g := range s.groups {
		gw := w[g.Key]
		if gw <= 0 {
			continue
		}
		enabled := s.enabledMembers(g, sel)
		if len(enabled) == 0 {
			continue
		}
		per := float64(gw) / float64(len(enabled))
		for _, f := range enabled {
			score, ok := scores[f]
			if !ok {
				score = NeutralScore
			}
			out = append(out, FactorContribution{
				Factor:    f,
				Group:     g.Key,
				Score:     score,
				Weight:    per,
				Weighted:  per * score,
				Available: ok,
			})
		}
	}
	return out
}
