package consensus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps votes and user scores in memory and applies updates the
// way the real store does: per match, all-or-nothing.
type fakeStore struct {
	votes      map[uint64][]VoteSnapshot
	userScores map[string]float64
	totals     map[uint64]float64 // voteID -> totalScore
	failApply  map[uint64]error
	applied    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		votes:      map[uint64][]VoteSnapshot{},
		userScores: map[string]float64{},
		totals:     map[uint64]float64{},
		failApply:  map[uint64]error{},
	}
}

func (f *fakeStore) addVote(matchID, voteID uint64, wallet, choice string) {
	f.votes[matchID] = append(f.votes[matchID], VoteSnapshot{ID: voteID, Wallet: wallet, Choice: choice})
	f.totals[voteID] = 1 // participation only
	f.userScores[wallet] += 1
}

func (f *fakeStore) MatchIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	for id := range f.votes {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) Votes(ctx context.Context, matchID uint64) ([]VoteSnapshot, error) {
	return f.votes[matchID], nil
}

func (f *fakeStore) Apply(ctx context.Context, matchID uint64, updates []Update) error {
	if err := f.failApply[matchID]; err != nil {
		return err
	}
	f.applied++
	snaps := f.votes[matchID]
	for _, u := range updates {
		for i := range snaps {
			if snaps[i].ID == u.VoteID {
				snaps[i].Consensus = u.NewConsensus
			}
		}
		f.totals[u.VoteID] += u.Delta
		f.userScores[u.Wallet] += u.Delta
	}
	return nil
}

func TestComputeUpdatesUnderThreshold(t *testing.T) {
	votes := []VoteSnapshot{
		{ID: 1, Wallet: "w1", Choice: "A"},
		{ID: 2, Wallet: "w2", Choice: "A"},
	}
	assert.Empty(t, ComputeUpdates(votes), "2 votes never earn consensus, even unanimous")
}

func TestComputeUpdatesMajorityTie(t *testing.T) {
	// A=3, B=3, TIE=1: no strict majority, nobody gets a bonus.
	var votes []VoteSnapshot
	for i := 0; i < 3; i++ {
		votes = append(votes, VoteSnapshot{ID: uint64(i), Choice: "A"})
	}
	for i := 3; i < 6; i++ {
		votes = append(votes, VoteSnapshot{ID: uint64(i), Choice: "B"})
	}
	votes = append(votes, VoteSnapshot{ID: 6, Choice: "TIE"})
	assert.Empty(t, ComputeUpdates(votes))
}

func TestComputeUpdatesFraction(t *testing.T) {
	// A=4, B=1: majority A, fraction 0.8, bonus 5*0.8 = 4.
	votes := []VoteSnapshot{
		{ID: 1, Wallet: "w1", Choice: "A"},
		{ID: 2, Wallet: "w2", Choice: "A"},
		{ID: 3, Wallet: "w3", Choice: "A"},
		{ID: 4, Wallet: "w4", Choice: "A"},
		{ID: 5, Wallet: "w5", Choice: "B"},
	}
	updates := ComputeUpdates(votes)
	require.Len(t, updates, 4, "only A voters change; B voter already at 0")
	for _, u := range updates {
		assert.InDelta(t, 4.0, u.NewConsensus, 1e-9)
		assert.InDelta(t, 4.0, u.Delta, 1e-9)
	}
}

func TestComputeUpdatesReconcilesDownward(t *testing.T) {
	// A majority-voter previously held a bonus but the stored value is stale.
	votes := []VoteSnapshot{
		{ID: 1, Wallet: "w1", Choice: "A", Consensus: 5},
		{ID: 2, Wallet: "w2", Choice: "A"},
		{ID: 3, Wallet: "w3", Choice: "A"},
		{ID: 4, Wallet: "w4", Choice: "B"},
	}
	// fraction 0.75 -> bonus 3.75
	updates := ComputeUpdates(votes)
	require.Len(t, updates, 3)
	for _, u := range updates {
		assert.InDelta(t, 3.75, u.NewConsensus, 1e-9)
		if u.VoteID == 1 {
			assert.InDelta(t, -1.25, u.Delta, 1e-9)
		} else {
			assert.InDelta(t, 3.75, u.Delta, 1e-9)
		}
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	f := newFakeStore()
	f.addVote(1, 1, "w1", "A")
	f.addVote(1, 2, "w2", "A")
	f.addVote(1, 3, "w3", "A")
	f.addVote(1, 4, "w4", "B")
	f.addVote(2, 5, "w1", "TIE")
	f.addVote(2, 6, "w2", "TIE")
	f.addVote(2, 7, "w3", "A")

	stats, err := Recompute(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Matches)
	assert.Equal(t, 2, stats.Updated)

	scoresAfterFirst := map[string]float64{}
	for w, s := range f.userScores {
		scoresAfterFirst[w] = s
	}
	totalsAfterFirst := map[uint64]float64{}
	for id, s := range f.totals {
		totalsAfterFirst[id] = s
	}
	appliedAfterFirst := f.applied

	// Second run with no new votes: zero writes, zero changes.
	stats, err = Recompute(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, appliedAfterFirst, f.applied)
	assert.Equal(t, scoresAfterFirst, f.userScores)
	assert.Equal(t, totalsAfterFirst, f.totals)
}

func TestRecomputeUserScoreReconciliation(t *testing.T) {
	f := newFakeStore()
	// w1 votes with the majority on both matches.
	f.addVote(1, 1, "w1", "A")
	f.addVote(1, 2, "w2", "A")
	f.addVote(1, 3, "w3", "B")
	f.addVote(2, 4, "w1", "B")
	f.addVote(2, 5, "w2", "B")
	f.addVote(2, 6, "w3", "B")

	_, err := Recompute(context.Background(), f)
	require.NoError(t, err)

	// Match 1: A majority 2/3 -> bonus 10/3. Match 2: unanimous -> bonus 5.
	assert.InDelta(t, 2+5.0*2/3+5, f.userScores["w1"], 1e-9)
	// Vote totals carry the same deltas.
	assert.InDelta(t, 1+5.0*2/3, f.totals[1], 1e-9)
	assert.InDelta(t, 1+5.0, f.totals[4], 1e-9)
}

func TestRecomputeFailureIsolation(t *testing.T) {
	f := newFakeStore()
	f.addVote(1, 1, "w1", "A")
	f.addVote(1, 2, "w2", "A")
	f.addVote(1, 3, "w3", "A")
	f.addVote(2, 4, "w1", "B")
	f.addVote(2, 5, "w2", "B")
	f.addVote(2, 6, "w3", "B")
	f.failApply[1] = errors.New("deadlock")

	stats, err := Recompute(context.Background(), f)
	require.NoError(t, err, "one bad match must not abort the batch")
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Updated)
	// Match 2 still got its unanimous bonus.
	assert.InDelta(t, 1+5.0, f.totals[4], 1e-9)
}
