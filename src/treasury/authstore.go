package treasury

import (
	"context"
	"errors"
	"time"

	"github.com/modelarena/arena/src/api/types"
	"gorm.io/gorm"
)

// ErrNonceReused means a payment nonce was presented by a wallet other
// than the one that first recorded it. Resubmission by the same wallet is
// tolerated as a retry.
var ErrNonceReused = errors.New("payment nonce already used by another wallet")

// AuthStore is the replay-guard ledger of payment authorizations.
type AuthStore interface {
	Record(ctx context.Context, wallet, nonce string, validBefore time.Time, txHash, mode string) error
}

type GormAuthStore struct {
	db *gorm.DB
}

func NewGormAuthStore(db *gorm.DB) *GormAuthStore {
	return &GormAuthStore{db: db}
}

func (s *GormAuthStore) Record(ctx context.Context, wallet, nonce string, validBefore time.Time, txHash, mode string) error {
	var existing types.PaymentAuthorization
	err := s.db.WithContext(ctx).First(&existing, "nonce = ?", nonce).Error
	switch {
	case err == nil:
		if existing.Wallet != wallet {
			return ErrNonceReused
		}
		return nil // same wallet resubmitting: no-op
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.db.WithContext(ctx).Create(&types.PaymentAuthorization{
			Wallet:      wallet,
			Nonce:       nonce,
			ValidBefore: validBefore,
			TxHash:      txHash,
			Mode:        mode,
		}).Error
	default:
		return err
	}
}
