package types

import "time"

// Arena models (the LLM contestants)
type Model struct {
	ID          uint64  `gorm:"primaryKey"`
	Name        string  `gorm:"size:64;unique;not null"`
	Provider    string  `gorm:"size:32;not null"` // openai, anthropic, mock
	ModelKey    string  `gorm:"size:64;not null"` // provider-side model identifier
	Rating      float64 `gorm:"default:1200"`
	GamesPlayed uint64  `gorm:"default:0"`
	Active      bool    `gorm:"default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Prompts (both one-shot chat prompts and shared gallery entries)
type Prompt struct {
	ID        uint64 `gorm:"primaryKey"`
	Author    string `gorm:"size:64;index;not null"` // wallet address or alias
	Title     string `gorm:"size:255"`
	Text      string `gorm:"type:text;not null"`
	Category  string `gorm:"size:64;index"`
	Shared    bool   `gorm:"default:false;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type PromptLike struct {
	ID        uint64 `gorm:"primaryKey"`
	PromptID  uint64 `gorm:"not null;uniqueIndex:uniq_prompt_like"`
	Wallet    string `gorm:"size:64;not null;uniqueIndex:uniq_prompt_like"`
	CreatedAt time.Time
}

// A match pits two models against each other on one prompt.
// Immutable after creation; only its votes evolve.
type Match struct {
	ID        uint64 `gorm:"primaryKey"`
	PromptID  uint64 `gorm:"index;not null"`
	ModelAID  uint64 `gorm:"not null"`
	ModelBID  uint64 `gorm:"not null"`
	CreatedAt time.Time
}

// Exactly two responses per match, positions A and B.
type Response struct {
	ID        uint64 `gorm:"primaryKey"`
	MatchID   uint64 `gorm:"not null;uniqueIndex:uniq_match_position"`
	ModelID   uint64 `gorm:"not null"`
	Position  string `gorm:"size:4;not null;uniqueIndex:uniq_match_position"` // A or B
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

// One vote per (match, wallet). Score components are set at vote time
// except consensus, which the batch job reconciles later. Invariant:
// TotalScore == participation(1) + ReferenceScore + ConsensusScore + ConsistencyScore.
type Vote struct {
	ID               uint64 `gorm:"primaryKey"`
	MatchID          uint64 `gorm:"not null;uniqueIndex:uniq_match_voter"`
	Wallet           string `gorm:"size:64;index;not null;uniqueIndex:uniq_match_voter"`
	Choice           string `gorm:"size:4;not null"` // A, B or TIE
	ReferenceScore   float64
	ConsensusScore   float64
	ConsistencyScore float64
	TotalScore       float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type User struct {
	Wallet    string `gorm:"primaryKey;size:64"`
	Nickname  string `gorm:"size:64"`
	Score     float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Achievements
type Achievement struct {
	ID           uint64 `gorm:"primaryKey"`
	Name         string `gorm:"size:64;unique;not null"`
	Description  string `gorm:"size:255"`
	Condition    string `gorm:"size:255;not null"` // JSON {"type": ..., "count": ...}
	RewardAmount string `gorm:"size:64;not null"`  // USDC minor units, decimal string
	CreatedAt    time.Time
}

type UserAchievement struct {
	ID            uint64 `gorm:"primaryKey"`
	Wallet        string `gorm:"size:64;not null;uniqueIndex:uniq_user_achievement"`
	AchievementID uint64 `gorm:"not null;uniqueIndex:uniq_user_achievement"`
	AchievedAt    time.Time
	Claimed       bool   `gorm:"default:false"`
	ClaimTxHash   string `gorm:"size:128"`
	ClaimedAt     *time.Time
}

// Replay guard for x402 payment authorizations. Rows are only ever
// created or looked up, never updated.
type PaymentAuthorization struct {
	ID          uint64 `gorm:"primaryKey"`
	Wallet      string `gorm:"size:64;index;not null"`
	Nonce       string `gorm:"size:128;unique;not null"`
	ValidBefore time.Time
	TxHash      string `gorm:"size:128"`
	Mode        string `gorm:"size:16;not null"` // simulated or executed
	CreatedAt   time.Time
}

// Signed weekly reward vouchers, redeemable on chain via claimWeekly.
type RewardVoucher struct {
	ID        uint64 `gorm:"primaryKey"`
	Week      uint64 `gorm:"not null;uniqueIndex:uniq_week_wallet"`
	Rank      int    `gorm:"not null"`
	Wallet    string `gorm:"size:64;not null;uniqueIndex:uniq_week_wallet"`
	Amount    string `gorm:"size:64;not null"`
	Nonce     string `gorm:"size:128;unique;not null"`
	Signature string `gorm:"size:256;not null"`
	CreatedAt time.Time
}

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;unique;not null"`
	Value string `gorm:"size:256;not null"`
}
