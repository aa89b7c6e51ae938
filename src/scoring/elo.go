package scoring

import "math"

// EloK is the fixed K-factor for rating updates.
const EloK = 32

// Outcome of a match from model A's perspective.
type Outcome int

const (
	AWin Outcome = iota
	BWin
	Tie
)

// OutcomeFromChoice maps a vote choice to a match outcome.
func OutcomeFromChoice(choice string) Outcome {
	switch choice {
	case "A":
		return AWin
	case "B":
		return BWin
	default:
		return Tie
	}
}

// UpdateElo computes new ratings for both sides after one outcome.
// Each side is updated independently with the same K and complementary
// expected scores; any asymmetry is floating-point rounding only.
func UpdateElo(ratingA, ratingB float64, outcome Outcome) (newA, newB float64) {
	expectedA := 1 / (1 + math.Pow(10, (ratingB-ratingA)/400))
	expectedB := 1 - expectedA

	var scoreA, scoreB float64
	switch outcome {
	case AWin:
		scoreA, scoreB = 1, 0
	case BWin:
		scoreA, scoreB = 0, 1
	case Tie:
		scoreA, scoreB = 0.5, 0.5
	}

	newA = ratingA + EloK*(scoreA-expectedA)
	newB = ratingB + EloK*(scoreB-expectedB)
	return newA, newB
}
