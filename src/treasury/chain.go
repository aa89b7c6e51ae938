package treasury

import (
	"context"
	"math/big"
)

// PermitSignature is an EIP-2612-style permit supplied by the payer.
type PermitSignature struct {
	Deadline *big.Int
	V        uint8
	R        [32]byte
	S        [32]byte
}

// Chain is the fixed interface of the on-chain arena treasury contract
// plus the two USDC views the client needs. A nil Chain puts the client
// in simulated mode.
type Chain interface {
	PricePerChat(ctx context.Context) (*big.Int, error)
	BalanceOf(ctx context.Context, owner string) (*big.Int, error)
	Allowance(ctx context.Context, owner string) (*big.Int, error)
	PayWithAllowance(ctx context.Context, payer string, amount *big.Int) (string, error)
	PayWithPermit(ctx context.Context, payer string, amount *big.Int, permit PermitSignature) (string, error)
	ClaimAchievement(ctx context.Context, id uint64, recipient string, amount *big.Int, nonce [32]byte, sig []byte) (string, error)
	ClaimWeekly(ctx context.Context, week, rank uint64, recipient string, amount *big.Int, nonce [32]byte, sig []byte) (string, error)
}
