package consensus

import (
	"context"
	"log"
	"math"
	"sort"
)

const (
	// MinVotesForConsensus is the vote count below which a match gets no
	// consensus bonus at all.
	MinVotesForConsensus = 3
	// ConsensusMax is the bonus for a unanimous match; partial majorities
	// scale it by the majority fraction.
	ConsensusMax = 5.0
)

// deltas below this are treated as zero and never written
const epsilon = 1e-9

// VoteSnapshot is the slice of a vote the recomputation needs.
type VoteSnapshot struct {
	ID        uint64
	Wallet    string
	Choice    string
	Consensus float64 // stored consensusScore
}

// Update is one vote's reconciliation. Delta is applied to both the
// vote's totalScore and the voter's aggregate score.
type Update struct {
	VoteID       uint64
	Wallet       string
	NewConsensus float64
	Delta        float64
}

// Store is the persistence surface the batch job runs against. Apply
// must commit all of one match's updates atomically.
type Store interface {
	MatchIDs(ctx context.Context) ([]uint64, error)
	Votes(ctx context.Context, matchID uint64) ([]VoteSnapshot, error)
	Apply(ctx context.Context, matchID uint64, updates []Update) error
}

// ComputeUpdates returns the non-zero reconciliations for one match's
// votes. Under-voted matches and matches without a strict majority yield
// nothing, which is what makes repeated runs idempotent.
func ComputeUpdates(votes []VoteSnapshot) []Update {
	if len(votes) < MinVotesForConsensus {
		return nil
	}

	counts := map[string]int{}
	for _, v := range votes {
		counts[v.Choice]++
	}
	type tally struct {
		choice string
		count  int
	}
	tallies := make([]tally, 0, len(counts))
	for choice, count := range counts {
		tallies = append(tallies, tally{choice, count})
	}
	sort.Slice(tallies, func(i, j int) bool { return tallies[i].count > tallies[j].count })

	top := tallies[0]
	if top.count == 0 {
		return nil
	}
	// A strict majority requires the top count to beat the runner-up.
	if len(tallies) > 1 && tallies[1].count == top.count {
		return nil
	}

	fraction := float64(top.count) / float64(len(votes))
	bonus := ConsensusMax * fraction

	var updates []Update
	for _, v := range votes {
		newConsensus := 0.0
		if v.Choice == top.choice {
			newConsensus = bonus
		}
		delta := newConsensus - v.Consensus
		if math.Abs(delta) < epsilon {
			continue
		}
		updates = append(updates, Update{
			VoteID:       v.ID,
			Wallet:       v.Wallet,
			NewConsensus: newConsensus,
			Delta:        delta,
		})
	}
	return updates
}

// Stats summarizes one batch run.
type Stats struct {
	Matches int
	Updated int // matches that had at least one write
	Failed  int
}

// Recompute walks every match and reconciles consensus scores. A failure
// on one match is logged and skipped; it never aborts the rest of the run.
func Recompute(ctx context.Context, store Store) (Stats, error) {
	ids, err := store.MatchIDs(ctx)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, matchID := range ids {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Matches++

		votes, err := store.Votes(ctx, matchID)
		if err != nil {
			log.Printf("consensus: match %d: load votes: %v", matchID, err)
			stats.Failed++
			continue
		}
		updates := ComputeUpdates(votes)
		if len(updates) == 0 {
			continue
		}
		if err := store.Apply(ctx, matchID, updates); err != nil {
			log.Printf("consensus: match %d: apply: %v", matchID, err)
			stats.Failed++
			continue
		}
		stats.Updated++
	}
	return stats, nil
}
