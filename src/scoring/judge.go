package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelarena/arena/src/ai/core"
	"github.com/modelarena/arena/src/api/types"
)

// Judge gives an independent second opinion on which response is better.
type Judge interface {
	Evaluate(ctx context.Context, prompt, responseA, responseB string) (string, error)
}

const judgeSystemPrompt = `You are an impartial judge comparing two AI responses to the same prompt. Answer with exactly one word: A if response A is better, B if response B is better, or TIE if they are of comparable quality.`

// RefereeJudge asks an LLM which response is better.
type RefereeJudge struct {
	client core.Client
	model  string
}

func NewRefereeJudge(client core.Client, model string) *RefereeJudge {
	return &RefereeJudge{client: client, model: model}
}

func (j *RefereeJudge) Evaluate(ctx context.Context, prompt, responseA, responseB string) (string, error) {
	input := fmt.Sprintf("Prompt:\n%s\n\nResponse A:\n%s\n\nResponse B:\n%s\n\nWhich response is better?", prompt, responseA, responseB)
	raw, err := j.client.Respond(ctx, input, core.Options{
		Model:        j.model,
		SystemPrompt: judgeSystemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("judge: %w", err)
	}
	return parseVerdict(raw)
}

func parseVerdict(raw string) (string, error) {
	verdict := strings.ToUpper(strings.TrimSpace(raw))
	// Models occasionally pad the answer; take the first recognizable token.
	for _, tok := range strings.Fields(verdict) {
		tok = strings.Trim(tok, ".,:;!\"'")
		if types.ValidChoice(tok) {
			return tok, nil
		}
	}
	return "", fmt.Errorf("judge: unrecognized verdict %q", raw)
}

// HeuristicJudge is an offline fallback: it prefers the materially longer
// response and calls close lengths a tie.
type HeuristicJudge struct{}

func (HeuristicJudge) Evaluate(ctx context.Context, prompt, responseA, responseB string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	la, lb := len(responseA), len(responseB)
	longer, shorter := la, lb
	if lb > la {
		longer, shorter = lb, la
	}
	if longer == 0 || longer-shorter <= longer/10 {
		return types.ChoiceTie, nil
	}
	if la > lb {
		return types.ChoiceA, nil
	}
	return types.ChoiceB, nil
}
