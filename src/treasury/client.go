package treasury

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const authorizationTTL = 5 * time.Minute

// Client bridges the arena to the on-chain treasury. With a nil Chain it
// runs in simulated mode: settlement attempts only record authorization
// rows for audit and replay protection, no funds move.
type Client struct {
	chain  Chain
	auths  AuthStore
	signer *VoucherSigner

	mu          sync.Mutex
	cachedPrice *big.Int
}

// NewClient builds a treasury client. chain and signer may be nil
// (simulated mode / unsigned deployments).
func NewClient(chain Chain, auths AuthStore, signer *VoucherSigner, defaultPrice *big.Int) *Client {
	return &Client{chain: chain, auths: auths, signer: signer, cachedPrice: defaultPrice}
}

func (c *Client) Simulated() bool { return c.chain == nil }

// AttemptPayment settles a priced request best-effort. The nonce is the
// fingerprint of the client's payment authorization; recording it twice
// for the same wallet is a no-op, while a different wallet presenting the
// same nonce is rejected.
func (c *Client) AttemptPayment(ctx context.Context, payer string, amount *big.Int, nonce string) (Receipt, error) {
	validBefore := time.Now().Add(authorizationTTL)

	if c.chain == nil {
		if err := c.auths.Record(ctx, payer, nonce, validBefore, "", ModeSimulated); err != nil {
			return Receipt{Mode: ModeSimulated}, err
		}
		return Receipt{Success: true, Mode: ModeSimulated}, nil
	}

	// Balance check is best-effort: an RPC hiccup must not turn into a
	// false negative for a paying user.
	if balance, err := c.chain.BalanceOf(ctx, payer); err != nil {
		log.Printf("treasury: balance check for %s failed, proceeding: %v", payer, err)
	} else if balance.Cmp(amount) < 0 {
		return Receipt{Mode: ModeExecuted}, fmt.Errorf("insufficient balance: have %s, need %s", balance, amount)
	}

	txHash, err := c.chain.PayWithAllowance(ctx, payer, amount)
	if err != nil {
		return Receipt{Mode: ModeExecuted}, fmt.Errorf("settlement: %w", err)
	}
	if err := c.auths.Record(ctx, payer, nonce, validBefore, txHash, ModeExecuted); err != nil {
		return Receipt{Success: true, TxHash: txHash, Mode: ModeExecuted}, err
	}
	return Receipt{Success: true, TxHash: txHash, Mode: ModeExecuted}, nil
}

// Price returns the on-chain pricePerChat, falling back to the last known
// value when the RPC call fails.
func (c *Client) Price(ctx context.Context) *big.Int {
	if c.chain != nil {
		if price, err := c.chain.PricePerChat(ctx); err == nil && price.Sign() > 0 {
			c.mu.Lock()
			c.cachedPrice = price
			c.mu.Unlock()
			return price
		} else if err != nil {
			log.Printf("treasury: pricePerChat: %v", err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.cachedPrice)
}

// Charge performs a direct chat payment via permit signature when
// supplied, else via pre-approved allowance. An insufficient allowance is
// classified as AllowanceRequired so the caller can prompt for approval.
func (c *Client) Charge(ctx context.Context, payer string, permit *PermitSignature) PaymentResult {
	price := c.Price(ctx)

	if c.chain == nil {
		return PaymentResult{Kind: Ok}
	}

	if permit != nil {
		txHash, err := c.chain.PayWithPermit(ctx, payer, price, *permit)
		if err != nil {
			return PaymentResult{Kind: Failed, Reason: err.Error()}
		}
		return PaymentResult{Kind: Ok, TxHash: txHash}
	}

	allowance, err := c.chain.Allowance(ctx, payer)
	if err != nil {
		return PaymentResult{Kind: Failed, Reason: fmt.Sprintf("allowance check: %v", err)}
	}
	if allowance.Cmp(price) < 0 {
		return PaymentResult{Kind: AllowanceRequired, Reason: "treasury contract not approved for the chat price"}
	}

	txHash, err := c.chain.PayWithAllowance(ctx, payer, price)
	if err != nil {
		return PaymentResult{Kind: Failed, Reason: err.Error()}
	}
	return PaymentResult{Kind: Ok, TxHash: txHash}
}

// SettleAchievement signs an (id, recipient, amount, nonce) voucher and
// submits the on-chain claim. Simulated mode reports success without a
// transaction.
func (c *Client) SettleAchievement(ctx context.Context, id uint64, recipient string, amount *big.Int) (string, error) {
	if c.chain == nil || c.signer == nil {
		log.Printf("treasury: simulated achievement claim %d for %s", id, recipient)
		return "", nil
	}
	nonce, err := randomNonce()
	if err != nil {
		return "", err
	}
	sig, err := c.signer.SignAchievement(id, recipient, amount, nonce)
	if err != nil {
		return "", fmt.Errorf("sign achievement voucher: %w", err)
	}
	return c.chain.ClaimAchievement(ctx, id, recipient, amount, nonce, sig)
}

// SignWeeklyVoucher produces a claimWeekly voucher without submitting it;
// users redeem these themselves.
func (c *Client) SignWeeklyVoucher(week, rank uint64, recipient string, amount *big.Int) (nonce [32]byte, sig []byte, err error) {
	if c.signer == nil {
		return nonce, nil, fmt.Errorf("treasury: no signing key configured")
	}
	nonce, err = randomNonce()
	if err != nil {
		return nonce, nil, err
	}
	sig, err = c.signer.SignWeekly(week, rank, recipient, amount, nonce)
	return nonce, sig, err
}

func randomNonce() ([32]byte, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, err
	}
	return nonce, nil
}

// USDToMinorUnits converts a USD price string to USDC minor units (6 decimals).
func USDToMinorUnits(price string) (*big.Int, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("bad price %q: %w", price, err)
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("negative price %q", price)
	}
	return d.Shift(6).Round(0).BigInt(), nil
}
