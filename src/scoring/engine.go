package scoring

import (
	"context"
	"fmt"
)

// Score components awarded at vote time. Consensus is always deferred to
// the batch job, which is why it is fixed at zero here.
const (
	BaseParticipationScore = 1.0
	RefCorrectBonus        = 3.0
)

// Input carries everything the engine needs to score one vote.
type Input struct {
	Prompt    string
	ResponseA string
	ResponseB string
	Choice    string         // the user's choice: A, B or TIE
	History   []HistoryEntry // the user's prior votes, newest first
}

// Result is the component breakdown for a freshly cast vote.
type Result struct {
	JudgeChoice      string
	Participation    float64
	ReferenceScore   float64
	ConsensusScore   float64
	ConsistencyScore float64
	TotalScore       float64
}

// Engine computes per-vote composite scores.
type Engine struct {
	judge Judge
}

func NewEngine(judge Judge) *Engine {
	return &Engine{judge: judge}
}

// Score evaluates one vote. A judge failure fails the whole call; the
// caller must not persist anything in that case.
func (e *Engine) Score(ctx context.Context, in Input) (Result, error) {
	judgeChoice, err := e.judge.Evaluate(ctx, in.Prompt, in.ResponseA, in.ResponseB)
	if err != nil {
		return Result{}, fmt.Errorf("score: %w", err)
	}

	res := Result{
		JudgeChoice:      judgeChoice,
		Participation:    BaseParticipationScore,
		ConsensusScore:   0,
		ConsistencyScore: ConsistencyScore(in.History),
	}
	if judgeChoice == in.Choice {
		res.ReferenceScore = RefCorrectBonus
	}
	res.TotalScore = res.Participation + res.ReferenceScore + res.ConsensusScore + res.ConsistencyScore
	return res, nil
}
