package webserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/modelarena/arena/src/ai/core"
	"github.com/modelarena/arena/src/ai/providers"
	"github.com/modelarena/arena/src/api/types"
	"github.com/modelarena/arena/src/scoring"
	"github.com/modelarena/arena/src/x402"
	"gorm.io/gorm"
)

const (
	chatTimeout  = 90 * time.Second
	judgeTimeout = 30 * time.Second
	maxPromptLen = 8000
)

type Arena struct {
	db        *gorm.DB
	pool      *providers.Pool
	engine    *scoring.Engine
	sanitizer *bluemonday.Policy
}

func NewArena(db *gorm.DB, pool *providers.Pool, engine *scoring.Engine) Arena {
	return Arena{
		db:        db,
		pool:      pool,
		engine:    engine,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

type chatRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	Category string `json:"category" binding:"max=64"`
}

type modelAnswer struct {
	model   types.Model
	content string
}

func (a Arena) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid request"})
		return
	}

	promptText := strings.TrimSpace(a.sanitizer.Sanitize(req.Prompt))
	if promptText == "" || len(promptText) > maxPromptLen {
		c.JSON(http.StatusBadRequest, gin.H{"err": "prompt empty or too long"})
		return
	}

	contestants, err := a.pickModels()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), chatTimeout)
	defer cancel()

	answers, err := a.generate(ctx, contestants, promptText)
	if err != nil {
		log.Printf("chat: model call failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"err": "model call failed"})
		return
	}

	matchID, err := a.persistMatch(c, promptText, req.Category, answers)
	if err != nil {
		log.Printf("chat: persist failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}

	// Model identities stay hidden until the user votes.
	c.JSON(http.StatusCreated, gin.H{
		"matchId": matchID,
		"responses": []gin.H{
			{"position": "A", "content": answers[0].content},
			{"position": "B", "content": answers[1].content},
		},
	})
}

// pickModels draws two distinct active models at random.
func (a Arena) pickModels() ([2]types.Model, error) {
	var picked [2]types.Model
	var models []types.Model
	if err := a.db.Where("active = ?", true).
		Order("RAND()").Limit(2).Find(&models).Error; err != nil {
		return picked, errors.New("model lookup failed")
	}
	if len(models) < 2 {
		return picked, errors.New("not enough active models")
	}
	picked[0], picked[1] = models[0], models[1]
	return picked, nil
}

type genResult struct {
	i      int
	answer modelAnswer
	err    error
}

// generate calls both contestants concurrently. Either failure fails the
// whole match; nothing is persisted in that case. Both results are always
// collected before returning, so no goroutine outlives the call.
func (a Arena) generate(ctx context.Context, contestants [2]types.Model, prompt string) ([2]modelAnswer, error) {
	var answers [2]modelAnswer
	results := make(chan genResult, 2)

	for i, m := range contestants {
		go func(i int, m types.Model) {
			client, err := a.pool.Client(m.Provider)
			if err != nil {
				results <- genResult{i: i, err: err}
				return
			}
			content, err := client.Respond(ctx, prompt, core.Options{Model: m.ModelKey})
			if err != nil {
				results <- genResult{i: i, err: err}
				return
			}
			results <- genResult{i: i, answer: modelAnswer{model: m, content: content}}
		}(i, m)
	}

	var firstErr error
	for range contestants {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		answers[res.i] = res.answer
	}
	return answers, firstErr
}

func (a Arena) persistMatch(c *gin.Context, promptText, category string, answers [2]modelAnswer) (uint64, error) {
	author := x402.Payer(c)
	if author == "" {
		author = "anonymous"
	}

	var matchID uint64
	err := a.db.Transaction(func(tx *gorm.DB) error {
		prompt := types.Prompt{Author: author, Text: promptText, Category: category}
		if err := tx.Create(&prompt).Error; err != nil {
			return err
		}
		match := types.Match{
			PromptID: prompt.ID,
			ModelAID: answers[0].model.ID,
			ModelBID: answers[1].model.ID,
		}
		if err := tx.Create(&match).Error; err != nil {
			return err
		}
		for i, pos := range []string{"A", "B"} {
			resp := types.Response{
				MatchID:  match.ID,
				ModelID:  answers[i].model.ID,
				Position: pos,
				Content:  answers[i].content,
			}
			if err := tx.Create(&resp).Error; err != nil {
				return err
			}
		}
		matchID = match.ID
		return nil
	})
	return matchID, err
}

// ChatStream is the SSE variant of Chat: chunks for position A stream
// first, then position B, then a final "done" event carrying the match
// id. The match is only persisted once both models answered in full.
func (a Arena) ChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid request"})
		return
	}

	promptText := strings.TrimSpace(a.sanitizer.Sanitize(req.Prompt))
	if promptText == "" || len(promptText) > maxPromptLen {
		c.JSON(http.StatusBadRequest, gin.H{"err": "prompt empty or too long"})
		return
	}

	contestants, err := a.pickModels()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), chatTimeout)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	var answers [2]modelAnswer
	for i, pos := range []string{"A", "B"} {
		m := contestants[i]
		client, err := a.pool.Client(m.Provider)
		if err != nil {
			a.streamError(c, "provider unavailable")
			return
		}
		content, err := streamOrFallback(ctx, client, promptText, core.Options{Model: m.ModelKey}, func(chunk string) {
			c.SSEvent("chunk", gin.H{"position": pos, "content": chunk})
			c.Writer.Flush()
		})
		if err != nil {
			log.Printf("chat stream: model %s failed: %v", m.Name, err)
			a.streamError(c, "model call failed")
			return
		}
		answers[i] = modelAnswer{model: m, content: content}
	}

	matchID, err := a.persistMatch(c, promptText, req.Category, answers)
	if err != nil {
		log.Printf("chat stream: persist failed: %v", err)
		a.streamError(c, "internal error")
		return
	}
	c.SSEvent("done", gin.H{"matchId": matchID})
	c.Writer.Flush()
}

func (a Arena) streamError(c *gin.Context, msg string) {
	c.SSEvent("error", gin.H{"err": msg})
	c.Writer.Flush()
}

// streamOrFallback prefers incremental output and falls back to one
// synchronous retry when the provider cannot stream or the stream
// breaks. The fallback emits the full answer as a single chunk.
func streamOrFallback(ctx context.Context, client core.Client, prompt string, opts core.Options, emit func(chunk string)) (string, error) {
	if s, ok := client.(core.Streamer); ok {
		var b strings.Builder
		err := s.RespondStream(ctx, prompt, opts, func(chunk string) error {
			b.WriteString(chunk)
			emit(chunk)
			return nil
		})
		if err == nil {
			return b.String(), nil
		}
		log.Printf("stream failed, retrying synchronously: %v", err)
	}
	content, err := client.Respond(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	emit(content)
	return content, nil
}

type voteRequest struct {
	MatchID  uint64 `json:"matchId" binding:"required"`
	Wallet   string `json:"wallet" binding:"required,min=3,max=64"`
	Choice   string `json:"choice" binding:"required"`
	Nickname string `json:"nickname" binding:"max=64"`
}

func (a Arena) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid request"})
		return
	}
	if !types.ValidChoice(req.Choice) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "choice must be A, B or TIE"})
		return
	}

	var match types.Match
	if err := a.db.First(&match, "id = ?", req.MatchID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "match not found"})
		return
	}

	var existing types.Vote
	err := a.db.First(&existing, "match_id = ? AND wallet = ?", req.MatchID, req.Wallet).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"err": "already voted on this match"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}

	input, modelA, modelB, err := a.loadScoringInput(match, req.Wallet, req.Choice)
	if err != nil {
		log.Printf("vote: load failed for match %d: %v", match.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}

	// Judge outside the transaction: a judge failure must leave no rows.
	ctx, cancel := context.WithTimeout(c.Request.Context(), judgeTimeout)
	defer cancel()
	res, err := a.engine.Score(ctx, input)
	if err != nil {
		log.Printf("vote: scoring failed for match %d: %v", match.ID, err)
		c.JSON(http.StatusBadGateway, gin.H{"err": "scoring unavailable, vote not recorded"})
		return
	}

	err = a.db.Transaction(func(tx *gorm.DB) error {
		vote := types.Vote{
			MatchID:          match.ID,
			Wallet:           req.Wallet,
			Choice:           req.Choice,
			ReferenceScore:   res.ReferenceScore,
			ConsensusScore:   res.ConsensusScore,
			ConsistencyScore: res.ConsistencyScore,
			TotalScore:       res.TotalScore,
		}
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}
		if err := upsertUserScore(tx, req.Wallet, req.Nickname, res.TotalScore); err != nil {
			return err
		}

		newA, newB := scoring.UpdateElo(modelA.Rating, modelB.Rating, scoring.OutcomeFromChoice(req.Choice))
		if err := tx.Model(&types.Model{}).Where("id = ?", modelA.ID).
			Updates(map[string]interface{}{"rating": newA, "games_played": gorm.Expr("games_played + 1")}).Error; err != nil {
			return err
		}
		return tx.Model(&types.Model{}).Where("id = ?", modelB.ID).
			Updates(map[string]interface{}{"rating": newB, "games_played": gorm.Expr("games_played + 1")}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"err": "already voted on this match"})
			return
		}
		log.Printf("vote: persist failed for match %d: %v", match.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"score": gin.H{
			"participation": res.Participation,
			"reference":     res.ReferenceScore,
			"consensus":     res.ConsensusScore,
			"consistency":   res.ConsistencyScore,
			"total":         res.TotalScore,
		},
		// Reveal the contestants now that the vote is locked in.
		"models": gin.H{"A": modelA.Name, "B": modelB.Name},
	})
}

func (a Arena) loadScoringInput(match types.Match, wallet, choice string) (scoring.Input, types.Model, types.Model, error) {
	var in scoring.Input
	var modelA, modelB types.Model

	var prompt types.Prompt
	if err := a.db.First(&prompt, "id = ?", match.PromptID).Error; err != nil {
		return in, modelA, modelB, err
	}
	var responses []types.Response
	if err := a.db.Where("match_id = ?", match.ID).Find(&responses).Error; err != nil {
		return in, modelA, modelB, err
	}
	byPos := map[string]string{}
	for _, r := range responses {
		byPos[r.Position] = r.Content
	}
	if byPos["A"] == "" || byPos["B"] == "" {
		return in, modelA, modelB, errors.New("match has incomplete responses")
	}
	if err := a.db.First(&modelA, "id = ?", match.ModelAID).Error; err != nil {
		return in, modelA, modelB, err
	}
	if err := a.db.First(&modelB, "id = ?", match.ModelBID).Error; err != nil {
		return in, modelA, modelB, err
	}

	var history []types.Vote
	if err := a.db.Where("wallet = ?", wallet).
		Order("created_at DESC").Limit(10).Find(&history).Error; err != nil {
		return in, modelA, modelB, err
	}
	entries := make([]scoring.HistoryEntry, 0, len(history))
	for _, v := range history {
		entries = append(entries, scoring.HistoryEntry{Choice: v.Choice, ReferenceScore: v.ReferenceScore})
	}

	in = scoring.Input{
		Prompt:    prompt.Text,
		ResponseA: byPos["A"],
		ResponseB: byPos["B"],
		Choice:    choice,
		History:   entries,
	}
	return in, modelA, modelB, nil
}

func upsertUserScore(tx *gorm.DB, wallet, nickname string, delta float64) error {
	var user types.User
	err := tx.First(&user, "wallet = ?", wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&types.User{Wallet: wallet, Nickname: nickname, Score: delta}).Error
	}
	if err != nil {
		return err
	}
	updates := map[string]interface{}{"score": gorm.Expr("score + ?", delta)}
	if nickname != "" {
		updates["nickname"] = nickname
	}
	return tx.Model(&types.User{}).Where("wallet = ?", wallet).Updates(updates).Error
}
