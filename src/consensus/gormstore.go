package consensus

import (
	"context"

	"github.com/modelarena/arena/src/api/types"
	"gorm.io/gorm"
)

// GormStore backs the batch job with the arena database. Each match's
// updates run inside one transaction; score mutations are expressed as
// SQL-side deltas so concurrent vote writes are never overwritten.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) MatchIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&types.Match{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

func (s *GormStore) Votes(ctx context.Context, matchID uint64) ([]VoteSnapshot, error) {
	var votes []types.Vote
	if err := s.db.WithContext(ctx).Where("match_id = ?", matchID).Find(&votes).Error; err != nil {
		return nil, err
	}
	out := make([]VoteSnapshot, 0, len(votes))
	for _, v := range votes {
		out = append(out, VoteSnapshot{
			ID:        v.ID,
			Wallet:    v.Wallet,
			Choice:    v.Choice,
			Consensus: v.ConsensusScore,
		})
	}
	return out, nil
}

func (s *GormStore) Apply(ctx context.Context, matchID uint64, updates []Update) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			res := tx.Model(&types.Vote{}).Where("id = ?", u.VoteID).Updates(map[string]interface{}{
				"consensus_score": u.NewConsensus,
				"total_score":     gorm.Expr("total_score + ?", u.Delta),
			})
			if res.Error != nil {
				return res.Error
			}
			if u.Wallet == "" {
				continue
			}
			if err := tx.Model(&types.User{}).Where("wallet = ?", u.Wallet).
				Update("score", gorm.Expr("score + ?", u.Delta)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
