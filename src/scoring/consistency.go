package scoring

// Consistency rewards voters whose recent votes tend to agree with the
// reference judge. The score is small relative to the other components.
const (
	consistencyWindow = 10
	consistencyMax    = 2.0
)

// HistoryEntry is one prior vote of the user, newest first.
type HistoryEntry struct {
	Choice         string
	ReferenceScore float64 // >0 means the judge agreed with the vote
}

// ConsistencyScore looks at up to the last consistencyWindow votes and
// scales the max bonus by the user's judge-agreement rate. Users with no
// history score 0.
func ConsistencyScore(history []HistoryEntry) float64 {
	if len(history) == 0 {
		return 0
	}
	n := len(history)
	if n > consistencyWindow {
		n = consistencyWindow
	}
	agreed := 0
	for _, h := range history[:n] {
		if h.ReferenceScore > 0 {
			agreed++
		}
	}
	return consistencyMax * float64(agreed) / float64(n)
}
