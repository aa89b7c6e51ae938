// Minimal end-to-end integration test for the arena API.
//
// Needs a running server with the mock provider seeded (fresh install
// defaults). Run with: go run scripts/api/test_api.go
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

// Fresh wallets per run so reruns never trip duplicate-vote guards.
var (
	baseURL = getenv("API_URL", "http://localhost:8080")
	wallet  = getenv("TEST_WALLET", "smoke-"+uuid.NewString())
	liker   = getenv("TEST_LIKER", "smoke-"+uuid.NewString())
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	health()

	matchID := chat()
	vote(matchID)

	leaderboard("models")
	leaderboard("users")

	promptID := createPrompt()
	likePrompt(promptID)

	pay()
	evaluateAchievements()

	fmt.Println("✓ all endpoints passed")
}

func health() {
	var resp struct{ Status string }
	doJSON("GET", "/health", nil, &resp, http.StatusOK)
	if resp.Status != "ok" {
		log.Fatalf("health: unexpected status %q", resp.Status)
	}
}

func chat() uint64 {
	var resp struct {
		MatchID   uint64 `json:"matchId"`
		Responses []struct {
			Position string
			Content  string
		}
	}
	doJSON("POST", "/arena/chat", map[string]any{
		"prompt":   "Explain the difference between a mutex and a semaphore.",
		"category": "programming",
	}, &resp, http.StatusCreated)
	if resp.MatchID == 0 || len(resp.Responses) != 2 {
		log.Fatalf("chat: bad payload %+v", resp)
	}
	return resp.MatchID
}

func vote(matchID uint64) {
	var resp struct {
		Score struct{ Total float64 }
	}
	doJSON("POST", "/arena/vote", map[string]any{
		"matchId":  matchID,
		"wallet":   wallet,
		"choice":   "A",
		"nickname": "smoketester",
	}, &resp, http.StatusCreated)
	if resp.Score.Total < 1 {
		log.Fatalf("vote: total %v below participation floor", resp.Score.Total)
	}
}

func leaderboard(kind string) {
	var resp map[string]any
	doJSON("GET", "/leaderboard/"+kind, nil, &resp, http.StatusOK)
	if _, ok := resp[kind]; !ok {
		log.Fatalf("leaderboard %s: missing key", kind)
	}
}

func createPrompt() uint64 {
	var resp struct{ ID uint64 }
	doJSON("POST", "/prompts", map[string]any{
		"wallet":   wallet,
		"title":    "Concurrency interview warmup",
		"text":     "Explain the difference between a mutex and a semaphore.",
		"category": "programming",
		"shared":   true,
	}, &resp, http.StatusCreated)
	if resp.ID == 0 {
		log.Fatal("prompt create: zero id")
	}
	return resp.ID
}

func likePrompt(id uint64) {
	var resp struct{ Liked uint64 }
	doJSON("POST", fmt.Sprintf("/prompts/%d/like", id), map[string]any{
		"wallet": liker,
	}, &resp, http.StatusCreated)
	if resp.Liked != id {
		log.Fatalf("like: expected %d, got %d", id, resp.Liked)
	}
}

func pay() {
	var resp struct{ Status string }
	doJSON("POST", "/arena/pay", map[string]any{"wallet": wallet}, &resp, http.StatusOK)
	if resp.Status != "OK" {
		log.Fatalf("pay: status %q", resp.Status)
	}
}

func evaluateAchievements() {
	var resp struct{ Unlocked []string }
	doJSON("POST", "/users/"+wallet+"/achievements/evaluate", nil, &resp, http.StatusOK)
	log.Printf("achievements unlocked: %v", resp.Unlocked)
}

func doJSON(method, path string, body any, out any, wantStatus int) {
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			log.Fatalf("%s %s: marshal: %v", method, path, err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, baseURL+path, rd)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		log.Fatalf("%s %s: status %d (want %d): %s", method, path, resp.StatusCode, wantStatus, buf.String())
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}
