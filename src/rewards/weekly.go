package rewards

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"time"

	"github.com/modelarena/arena/src/api/data"
	"github.com/modelarena/arena/src/api/types"
	"gorm.io/gorm"
)

const (
	lastWeekSetting = "last_reward_week"
	weekMs          = 7 * 24 * 60 * 60 * 1000
)

// rank 1..3 get fixed amounts, everyone else in the top list gets the tail
// amount. Values are USDC minor units.
var rankAmounts = []int64{100_000_000, 75_000_000, 50_000_000}

const tailAmount = 25_000_000

// Signer produces claimWeekly vouchers; implemented by the treasury client.
type Signer interface {
	SignWeeklyVoucher(week, rank uint64, recipient string, amount *big.Int) ([32]byte, []byte, error)
}

// Job distributes signed weekly vouchers to the top users by score. The
// last processed week is persisted so restarts neither double- nor
// miss-fire.
type Job struct {
	db     *gorm.DB
	signer Signer
	topN   int
	now    func() time.Time
}

func NewJob(db *gorm.DB, signer Signer, topN int) *Job {
	if topN <= 0 {
		topN = 10
	}
	return &Job{db: db, signer: signer, topN: topN, now: time.Now}
}

// CurrentWeek is the period index: floor(now_ms / week_ms).
func CurrentWeek(now time.Time) uint64 {
	return uint64(now.UnixMilli() / weekMs)
}

// ShouldRun compares the persisted marker against the current period.
func ShouldRun(lastProcessed string, current uint64) bool {
	if lastProcessed == "" {
		return true
	}
	last, err := strconv.ParseUint(lastProcessed, 10, 64)
	if err != nil {
		return true
	}
	return last < current
}

// AmountForRank returns the voucher size for a 1-based leaderboard rank.
func AmountForRank(rank int) *big.Int {
	if rank >= 1 && rank <= len(rankAmounts) {
		return big.NewInt(rankAmounts[rank-1])
	}
	return big.NewInt(tailAmount)
}

// Run executes at most one distribution per week.
func (j *Job) Run(ctx context.Context) error {
	week := CurrentWeek(j.now())
	if !ShouldRun(data.GetSetting(j.db, lastWeekSetting), week) {
		return nil
	}

	var top []types.User
	err := j.db.WithContext(ctx).
		Where("score > 0").
		Order("score DESC").
		Limit(j.topN).
		Find(&top).Error
	if err != nil {
		return fmt.Errorf("rewards: top users: %w", err)
	}

	issued := 0
	for i, user := range top {
		rank := i + 1
		amount := AmountForRank(rank)
		nonce, sig, err := j.signer.SignWeeklyVoucher(week, uint64(rank), user.Wallet, amount)
		if err != nil {
			log.Printf("rewards: voucher for %s (rank %d): %v", user.Wallet, rank, err)
			continue
		}
		voucher := types.RewardVoucher{
			Week:      week,
			Rank:      rank,
			Wallet:    user.Wallet,
			Amount:    amount.String(),
			Nonce:     hex.EncodeToString(nonce[:]),
			Signature: hex.EncodeToString(sig),
		}
		if err := j.db.WithContext(ctx).Create(&voucher).Error; err != nil {
			log.Printf("rewards: persist voucher for %s: %v", user.Wallet, err)
			continue
		}
		issued++
	}

	if err := data.PutSetting(j.db, lastWeekSetting, strconv.FormatUint(week, 10)); err != nil {
		return fmt.Errorf("rewards: mark week %d: %w", week, err)
	}
	log.Printf("rewards: week %d: issued %d vouchers", week, issued)
	return nil
}
