package scoring

// FrontierEntry is one region considered for the shortlist.
type FrontierEntry struct {
	RegionID string       `json:"region_id"`
	Name     string       `json:"name,omitempty"`
	Index    int          `json:"index"`
	Scores   FactorScores `json:"-"`
}

// Frontier returns the entries not dominated on the given factors. An
// entry is dominated when another is at least as good on every factor and
// strictly better on at least one (all factors are higher-is-better on the
// canonical scale). Missing scores count as NeutralScore, matching the
// calculator. The dominance check is quadratic in the region count.
func Frontier(entries []FrontierEntry, factors []FactorKey) []FrontierEntry {
	if len(entries) <= 1 || len(factors) == 0 {
		return entries
	}

	var frontier []FrontierEntry
	for i := range entries {
		dominated := false
		for j := range entries {
			if i == j {
				continue
			}
			if dominates(entries[j], entries[i], factors) {
				dominated = true
				break
			}
		}
		if !dominated {
			frontier = append(frontier, entries[i])
		}
	}
	return frontier
}

func dominates(a, b FrontierEntry, factors []FactorKey) bool {
	strictly := false
	for _, f := range factors {
		av := scoreOrNeutral(a.Scores, f)
		bv := scoreOrNeutral(b.Scores, f)
		if av < bv {
			return false
		}
		if av > bv {
			strictly = true
		}
	}
	return strictly
}

func scoreOrNeutral(scores FactorScores, f FactorKey) float64 {
	if v, ok := scores[f]; ok {
		return v
	}
	return NeutralScore
}
