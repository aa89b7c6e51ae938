package treasury

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	price        *big.Int
	priceErr     error
	allowance    *big.Int
	allowanceErr error
	balance      *big.Int
	payErr       error
	permitErr    error
	payCalls     int
	permitCalls  int
}

func (f *fakeChain) PricePerChat(ctx context.Context) (*big.Int, error) {
	return f.price, f.priceErr
}

func (f *fakeChain) BalanceOf(ctx context.Context, owner string) (*big.Int, error) {
	if f.balance == nil {
		return nil, errors.New("rpc down")
	}
	return f.balance, nil
}

func (f *fakeChain) Allowance(ctx context.Context, owner string) (*big.Int, error) {
	return f.allowance, f.allowanceErr
}

func (f *fakeChain) PayWithAllowance(ctx context.Context, payer string, amount *big.Int) (string, error) {
	f.payCalls++
	if f.payErr != nil {
		return "", f.payErr
	}
	return "0xabc", nil
}

func (f *fakeChain) PayWithPermit(ctx context.Context, payer string, amount *big.Int, permit PermitSignature) (string, error) {
	f.permitCalls++
	if f.permitErr != nil {
		return "", f.permitErr
	}
	return "0xdef", nil
}

func (f *fakeChain) ClaimAchievement(ctx context.Context, id uint64, recipient string, amount *big.Int, nonce [32]byte, sig []byte) (string, error) {
	return "0xclaim", nil
}

func (f *fakeChain) ClaimWeekly(ctx context.Context, week, rank uint64, recipient string, amount *big.Int, nonce [32]byte, sig []byte) (string, error) {
	return "0xweekly", nil
}

const (
	walletA = "0x1111111111111111111111111111111111111111"
	walletB = "0x2222222222222222222222222222222222222222"
)

func TestNonceReplayRules(t *testing.T) {
	store := NewMemoryAuthStore()
	ctx := context.Background()
	c := NewClient(nil, store, nil, big.NewInt(10000))

	// First record succeeds.
	r, err := c.AttemptPayment(ctx, walletA, big.NewInt(10000), "nonce-1")
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, ModeSimulated, r.Mode)

	// Same wallet, same nonce: tolerated as a resubmission, no new row.
	_, err = c.AttemptPayment(ctx, walletA, big.NewInt(10000), "nonce-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count)

	// Different wallet, same nonce: hard error.
	_, err = c.AttemptPayment(ctx, walletB, big.NewInt(10000), "nonce-1")
	assert.ErrorIs(t, err, ErrNonceReused)
}

func TestAttemptPaymentBalanceCheckBestEffort(t *testing.T) {
	// balance == nil makes BalanceOf fail; the payment must still proceed.
	chain := &fakeChain{price: big.NewInt(10000), allowance: big.NewInt(1 << 30)}
	c := NewClient(chain, NewMemoryAuthStore(), nil, big.NewInt(10000))

	r, err := c.AttemptPayment(context.Background(), walletA, big.NewInt(10000), "n1")
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, ModeExecuted, r.Mode)
	assert.Equal(t, "0xabc", r.TxHash)
}

func TestAttemptPaymentInsufficientBalance(t *testing.T) {
	chain := &fakeChain{balance: big.NewInt(5)}
	c := NewClient(chain, NewMemoryAuthStore(), nil, big.NewInt(10000))

	_, err := c.AttemptPayment(context.Background(), walletA, big.NewInt(10000), "n1")
	assert.Error(t, err)
	assert.Zero(t, chain.payCalls)
}

func TestChargeAllowanceRequired(t *testing.T) {
	chain := &fakeChain{price: big.NewInt(10000), allowance: big.NewInt(1)}
	c := NewClient(chain, NewMemoryAuthStore(), nil, big.NewInt(10000))

	res := c.Charge(context.Background(), walletA, nil)
	assert.Equal(t, AllowanceRequired, res.Kind)
	assert.Zero(t, chain.payCalls, "no charge attempted without allowance")
}

func TestChargeWithAllowance(t *testing.T) {
	chain := &fakeChain{price: big.NewInt(10000), allowance: big.NewInt(1 << 30)}
	c := NewClient(chain, NewMemoryAuthStore(), nil, big.NewInt(10000))

	res := c.Charge(context.Background(), walletA, nil)
	assert.Equal(t, Ok, res.Kind)
	assert.Equal(t, "0xabc", res.TxHash)
}

func TestChargeWithPermit(t *testing.T) {
	chain := &fakeChain{price: big.NewInt(10000)}
	c := NewClient(chain, NewMemoryAuthStore(), nil, big.NewInt(10000))

	res := c.Charge(context.Background(), walletA, &PermitSignature{Deadline: big.NewInt(9999999999)})
	assert.Equal(t, Ok, res.Kind)
	assert.Equal(t, 1, chain.permitCalls)
	assert.Zero(t, chain.payCalls)
}

func TestChargeFailureReason(t *testing.T) {
	chain := &fakeChain{price: big.NewInt(10000), allowance: big.NewInt(1 << 30), payErr: errors.New("reverted")}
	c := NewClient(chain, NewMemoryAuthStore(), nil, big.NewInt(10000))

	res := c.Charge(context.Background(), walletA, nil)
	assert.Equal(t, Failed, res.Kind)
	assert.Contains(t, res.Reason, "reverted")
}

func TestPriceFallbackOnRPCError(t *testing.T) {
	chain := &fakeChain{priceErr: errors.New("rpc down")}
	c := NewClient(chain, NewMemoryAuthStore(), nil, big.NewInt(12345))
	assert.Equal(t, big.NewInt(12345), c.Price(context.Background()))
}

func TestUSDToMinorUnits(t *testing.T) {
	for price, want := range map[string]int64{
		"0.01": 10000,
		"1":    1000000,
		"2.5":  2500000,
	} {
		got, err := USDToMinorUnits(price)
		require.NoError(t, err)
		assert.Equal(t, want, got.Int64(), price)
	}
	_, err := USDToMinorUnits("not-a-price")
	assert.Error(t, err)
	_, err = USDToMinorUnits("-1")
	assert.Error(t, err)
}

func TestVoucherSignatureRecovers(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := &VoucherSigner{key: key}

	var nonce [32]byte
	nonce[0] = 7
	sig, err := signer.SignAchievement(42, walletA, big.NewInt(1000000), nonce)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	// Recover the signing address the way the contract would.
	hash := crypto.Keccak256(
		leftPad(42),
		common.HexToAddress(walletA).Bytes(),
		leftPadBig(big.NewInt(1000000)),
		nonce[:],
	)
	prefixed := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n32"), hash)
	pub, err := crypto.SigToPub(prefixed, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), crypto.PubkeyToAddress(*pub).Hex())
}

func leftPad(v uint64) []byte {
	return leftPadBig(new(big.Int).SetUint64(v))
}

func leftPadBig(v *big.Int) []byte {
	b := v.Bytes()
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
