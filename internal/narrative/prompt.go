package narrative

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Hearthside-Labs/Mosaic/internal/scoring"
)

const regionSystem = `You summarize how one geographic region scores in a livability map tool.
Write two short plain sentences for a general audience. Name the factors that help the score
most and hurt it most. No markdown, no lists, no preamble.`

const translateSystem = `You convert a user's plain-language weighting request into slider values
for a livability map. Reply with a single JSON object and nothing else. Keys must come from the
provided slider list; values are integers from 0 (ignore) to 5 (most important). Omit sliders the
user did not express an opinion about.`

// RegionPrompt renders the facts the model is allowed to draw on. The
// breakdown rows arrive in schema order and keep it.
func RegionPrompt(dataset, name string, index int, rating string, contributions []scoring.FactorContribution) string {
	var b strings.Builder
	if name == "" {
		name = "this region"
	}
	fmt.Fprintf(&b, "Region: %s (dataset %s)\n", name, dataset)
	fmt.Fprintf(&b, "Livability index: %d out of 100, rated %s\n", index, rating)
	b.WriteString("Factor contributions:\n")
	for _, c := range contributions {
		if c.Weight == 0 {
			continue
		}
		if !c.Available {
			fmt.Fprintf(&b, "- %s: no data, counted as neutral (weight %.2f)\n", c.Factor, c.Weight)
			continue
		}
		fmt.Fprintf(&b, "- %s: score %.2f of 1.00 (weight %.2f)\n", c.Factor, c.Score, c.Weight)
	}
	return b.String()
}

// TranslatePrompt pairs the user's request with the sliders it may set.
func TranslatePrompt(text string, groups []string) string {
	sorted := append([]string(nil), groups...)
	sort.Strings(sorted)
	var b strings.Builder
	fmt.Fprintf(&b, "Available sliders: %s\n", strings.Join(sorted, ", "))
	fmt.Fprintf(&b, "User request: %s\n", strings.TrimSpace(text))
	return b.String()
}
