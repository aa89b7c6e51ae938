package treasury

import (
	"context"
	"sync"
	"time"
)

// MemoryAuthStore is an in-process AuthStore with the same nonce semantics
// as the database-backed one. Used in tests and key-less dev setups.
type MemoryAuthStore struct {
	mu    sync.Mutex
	rows  map[string]string // nonce -> wallet
	Count int
}

func NewMemoryAuthStore() *MemoryAuthStore {
	return &MemoryAuthStore{rows: map[string]string{}}
}

func (s *MemoryAuthStore) Record(ctx context.Context, wallet, nonce string, validBefore time.Time, txHash, mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.rows[nonce]; ok {
		if owner != wallet {
			return ErrNonceReused
		}
		return nil
	}
	s.rows[nonce] = wallet
	s.Count++
	return nil
}
