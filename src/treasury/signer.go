package treasury

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// VoucherSigner produces the server-side signatures the treasury contract
// verifies on claim calls.
type VoucherSigner struct {
	key *ecdsa.PrivateKey
}

func NewVoucherSigner(keyHex string) (*VoucherSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	return &VoucherSigner{key: key}, nil
}

func (s *VoucherSigner) Address() string {
	return crypto.PubkeyToAddress(s.key.PublicKey).Hex()
}

func (s *VoucherSigner) sign(packed ...[]byte) ([]byte, error) {
	hash := crypto.Keccak256(packed...)
	// The contract recovers over the eth_sign prefix.
	prefixed := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n32"), hash)
	return crypto.Sign(prefixed, s.key)
}

// SignAchievement signs the (achievementId, recipient, amount, nonce) tuple.
func (s *VoucherSigner) SignAchievement(id uint64, recipient string, amount *big.Int, nonce [32]byte) ([]byte, error) {
	return s.sign(
		common.LeftPadBytes(new(big.Int).SetUint64(id).Bytes(), 32),
		common.HexToAddress(recipient).Bytes(),
		common.LeftPadBytes(amount.Bytes(), 32),
		nonce[:],
	)
}

// SignWeekly signs the (week, rank, recipient, amount, nonce) tuple.
func (s *VoucherSigner) SignWeekly(week, rank uint64, recipient string, amount *big.Int, nonce [32]byte) ([]byte, error) {
	return s.sign(
		common.LeftPadBytes(new(big.Int).SetUint64(week).Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(rank).Bytes(), 32),
		common.HexToAddress(recipient).Bytes(),
		common.LeftPadBytes(amount.Bytes(), 32),
		nonce[:],
	)
}
