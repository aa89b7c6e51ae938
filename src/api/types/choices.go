package types

// Vote / judge choices, stored verbatim on Vote.Choice.
const (
	ChoiceA   = "A"
	ChoiceB   = "B"
	ChoiceTie = "TIE"
)

// ValidChoice reports whether s is one of the three recognized choices.
func ValidChoice(s string) bool {
	return s == ChoiceA || s == ChoiceB || s == ChoiceTie
}
