package scoring

// Rating is the qualitative label shown next to a composite index.
type Rating string

const (
	RatingExcellent Rating = "excellent"
	RatingGood      Rating = "good"
	RatingFair      Rating = "fair"
	RatingMixed     Rating = "mixed"
	RatingPoor      Rating = "poor"
	RatingVeryPoor  Rating = "very_poor"
)

// RatingFor maps an index to its label band.
func RatingFor(index int) Rating {
	switch {
	case index >= 85:
		return RatingExcellent
	case index >= 70:
		return RatingGood
	case index >= 55:
		return RatingFair
	case index >= 45:
		return RatingMixed
	case index >= 30:
		return RatingPoor
	default:
		return RatingVeryPoor
	}
}
