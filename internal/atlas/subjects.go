package atlas

const (
	SubjectDatasetActivated = "mosaic.map.dataset.activated"

	StreamName   = "MOSAIC_MAP"
	StreamMaxAge = "24h"
)

func SubjectRecolor(sessionID string) string   { return "mosaic.map." + sessionID + ".recolor" }
func SubjectNarrative(sessionID string) string { return "mosaic.map." + sessionID + ".narrative" }
func SubjectSelected(sessionID string) string  { return "mosaic.map." + sessionID + ".selected" }

// SubjectSelectedWildcard matches region selections from every session.
const SubjectSelectedWildcard = "mosaic.map.*.selected"
