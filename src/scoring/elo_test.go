package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func expected(ra, rb float64) float64 {
	return 1 / (1 + math.Pow(10, (rb-ra)/400))
}

func TestUpdateEloDeltas(t *testing.T) {
	cases := []struct {
		name           string
		ra, rb         float64
		outcome        Outcome
		scoreA, scoreB float64
	}{
		{"symmetric A win", 1200, 1200, AWin, 1, 0},
		{"symmetric B win", 1200, 1200, BWin, 0, 1},
		{"symmetric tie", 1200, 1200, Tie, 0.5, 0.5},
		{"skewed A win", 1400, 1000, AWin, 1, 0},
		{"skewed B win", 1400, 1000, BWin, 0, 1},
		{"skewed tie", 1400, 1000, Tie, 0.5, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			newA, newB := UpdateElo(tc.ra, tc.rb, tc.outcome)
			expA := expected(tc.ra, tc.rb)
			expB := 1 - expA
			assert.InDelta(t, EloK*(tc.scoreA-expA), newA-tc.ra, 1e-12)
			assert.InDelta(t, EloK*(tc.scoreB-expB), newB-tc.rb, 1e-12)
		})
	}
}

func TestUpdateEloSymmetricTieUnchanged(t *testing.T) {
	newA, newB := UpdateElo(1200, 1200, Tie)
	assert.InDelta(t, 1200.0, newA, 1e-12)
	assert.InDelta(t, 1200.0, newB, 1e-12)
}

func TestUpdateEloUnderdogGainsMore(t *testing.T) {
	// Underdog winning moves more points than favorite winning.
	_, underdog := UpdateElo(1400, 1000, BWin)
	favoriteNew, _ := UpdateElo(1400, 1000, AWin)
	assert.Greater(t, underdog-1000, favoriteNew-1400)
}
