package achievements

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/modelarena/arena/src/api/types"
	"gorm.io/gorm"
)

var (
	// ErrNotAchieved refuses a claim on an achievement the user has not earned.
	ErrNotAchieved = errors.New("achievement not achieved")
	// ErrUnknownAchievement refuses operations on undefined achievements.
	ErrUnknownAchievement = errors.New("unknown achievement")
)

// Settler submits the on-chain reward transfer backing a claim.
type Settler interface {
	SettleAchievement(ctx context.Context, id uint64, recipient string, amount *big.Int) (string, error)
}

// Records is the persistence surface for user achievement state.
// BeginClaim is a compare-and-set on the claimed flag: exactly one of any
// number of concurrent callers wins it, and only the winner may settle.
type Records interface {
	Definitions(ctx context.Context) ([]types.Achievement, error)
	Definition(ctx context.Context, id uint64) (*types.Achievement, error)
	AchievedIDs(ctx context.Context, wallet string) (map[uint64]bool, error)
	Get(ctx context.Context, wallet string, achievementID uint64) (*types.UserAchievement, error)
	Create(ctx context.Context, wallet string, achievementID uint64) error
	BeginClaim(ctx context.Context, id uint64) (bool, error)
	FinishClaim(ctx context.Context, id uint64, txHash string) error
	AbortClaim(ctx context.Context, id uint64) error
	StatsFor(ctx context.Context, wallet string) (Stats, error)
}

// ClaimResult reports a (possibly repeated) claim.
type ClaimResult struct {
	TxHash         string
	AlreadyClaimed bool
}

// Service evaluates and claims achievements.
type Service struct {
	records Records
	settler Settler
}

func NewService(records Records, settler Settler) *Service {
	return &Service{records: records, settler: settler}
}

// Evaluate checks every not-yet-achieved definition against the user's
// current stats and records new unlocks. Concurrent evaluation is safe:
// duplicate-creation conflicts are swallowed as success.
func (s *Service) Evaluate(ctx context.Context, wallet string) ([]types.Achievement, error) {
	stats, err := s.records.StatsFor(ctx, wallet)
	if err != nil {
		return nil, err
	}
	defs, err := s.records.Definitions(ctx)
	if err != nil {
		return nil, err
	}
	achieved, err := s.records.AchievedIDs(ctx, wallet)
	if err != nil {
		return nil, err
	}

	var unlocked []types.Achievement
	for _, def := range defs {
		if achieved[def.ID] {
			continue
		}
		cond, err := ParseCondition(def.Condition)
		if err != nil {
			log.Printf("achievements: %s (%d): %v", def.Name, def.ID, err)
			continue
		}
		if !cond.Met(stats) {
			continue
		}
		if err := s.records.Create(ctx, wallet, def.ID); err != nil {
			if isDuplicate(err) {
				continue // another evaluation got there first
			}
			return unlocked, err
		}
		unlocked = append(unlocked, def)
	}
	return unlocked, nil
}

// Claim converts an achieved-but-unclaimed record to claimed, gated by a
// successful on-chain reward transfer. Claiming an already-claimed
// achievement is a no-op success so client retries stay idempotent.
func (s *Service) Claim(ctx context.Context, wallet string, achievementID uint64) (ClaimResult, error) {
	ua, err := s.records.Get(ctx, wallet, achievementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ClaimResult{}, ErrNotAchieved
		}
		return ClaimResult{}, err
	}
	if ua.Claimed {
		return ClaimResult{TxHash: ua.ClaimTxHash, AlreadyClaimed: true}, nil
	}

	def, err := s.records.Definition(ctx, achievementID)
	if err != nil {
		return ClaimResult{}, err
	}
	amount, ok := new(big.Int).SetString(def.RewardAmount, 10)
	if !ok {
		return ClaimResult{}, fmt.Errorf("achievement %d: bad reward amount %q", achievementID, def.RewardAmount)
	}

	won, err := s.records.BeginClaim(ctx, ua.ID)
	if err != nil {
		return ClaimResult{}, err
	}
	if !won {
		// A concurrent claim took the flag; report whatever it recorded.
		cur, err := s.records.Get(ctx, wallet, achievementID)
		if err != nil {
			return ClaimResult{}, err
		}
		return ClaimResult{TxHash: cur.ClaimTxHash, AlreadyClaimed: true}, nil
	}

	txHash, err := s.settler.SettleAchievement(ctx, achievementID, wallet, amount)
	if err != nil {
		if abortErr := s.records.AbortClaim(ctx, ua.ID); abortErr != nil {
			log.Printf("achievements: abort claim %d: %v", ua.ID, abortErr)
		}
		return ClaimResult{}, fmt.Errorf("claim settlement: %w", err)
	}
	if err := s.records.FinishClaim(ctx, ua.ID, txHash); err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{TxHash: txHash}, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "Duplicate entry")
}

// GormRecords is the database-backed Records implementation.
type GormRecords struct {
	db *gorm.DB
}

func NewGormRecords(db *gorm.DB) *GormRecords {
	return &GormRecords{db: db}
}

func (r *GormRecords) Definitions(ctx context.Context) ([]types.Achievement, error) {
	var defs []types.Achievement
	err := r.db.WithContext(ctx).Order("id").Find(&defs).Error
	return defs, err
}

func (r *GormRecords) Definition(ctx context.Context, id uint64) (*types.Achievement, error) {
	var def types.Achievement
	if err := r.db.WithContext(ctx).First(&def, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownAchievement
		}
		return nil, err
	}
	return &def, nil
}

func (r *GormRecords) AchievedIDs(ctx context.Context, wallet string) (map[uint64]bool, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&types.UserAchievement{}).
		Where("wallet = ?", wallet).Pluck("achievement_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *GormRecords) Get(ctx context.Context, wallet string, achievementID uint64) (*types.UserAchievement, error) {
	var ua types.UserAchievement
	err := r.db.WithContext(ctx).
		First(&ua, "wallet = ? AND achievement_id = ?", wallet, achievementID).Error
	if err != nil {
		return nil, err
	}
	return &ua, nil
}

func (r *GormRecords) Create(ctx context.Context, wallet string, achievementID uint64) error {
	return r.db.WithContext(ctx).Create(&types.UserAchievement{
		Wallet:        wallet,
		AchievementID: achievementID,
		AchievedAt:    time.Now(),
	}).Error
}

func (r *GormRecords) BeginClaim(ctx context.Context, id uint64) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&types.UserAchievement{}).
		Where("id = ? AND claimed = ?", id, false).
		Updates(map[string]interface{}{
			"claimed":    true,
			"claimed_at": &now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRecords) FinishClaim(ctx context.Context, id uint64, txHash string) error {
	return r.db.WithContext(ctx).Model(&types.UserAchievement{}).
		Where("id = ?", id).
		Update("claim_tx_hash", txHash).Error
}

func (r *GormRecords) AbortClaim(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&types.UserAchievement{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"claimed":    false,
			"claimed_at": nil,
		}).Error
}

// StatsFor aggregates the user's prompt/like numbers in one pass each.
func (r *GormRecords) StatsFor(ctx context.Context, wallet string) (Stats, error) {
	db := r.db.WithContext(ctx)
	var stats Stats

	if err := db.Model(&types.Prompt{}).
		Where("author = ? AND shared = ?", wallet, true).
		Count(&stats.SharedCount).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&types.PromptLike{}).
		Joins("JOIN prompts ON prompts.id = prompt_likes.prompt_id").
		Where("prompts.author = ?", wallet).
		Count(&stats.TotalLikes).Error; err != nil {
		return stats, err
	}
	var top struct{ N int64 }
	err := db.Model(&types.PromptLike{}).
		Select("count(*) as n").
		Joins("JOIN prompts ON prompts.id = prompt_likes.prompt_id").
		Where("prompts.author = ?", wallet).
		Group("prompt_likes.prompt_id").
		Order("n DESC").Limit(1).Scan(&top).Error
	if err != nil {
		return stats, err
	}
	stats.TopPromptLikes = top.N
	if err := db.Model(&types.Prompt{}).
		Where("author = ? AND shared = ? AND category <> ''", wallet, true).
		Distinct("category").
		Count(&stats.DistinctCategories).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
