package treasury

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const treasuryABIJSON = `[
  {"type":"function","name":"pricePerChat","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"payWithAllowance","stateMutability":"nonpayable","inputs":[{"name":"payer","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"payWithPermit","stateMutability":"nonpayable","inputs":[{"name":"payer","type":"address"},{"name":"amount","type":"uint256"},{"name":"deadline","type":"uint256"},{"name":"v","type":"uint8"},{"name":"r","type":"bytes32"},{"name":"s","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"claimAchievement","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"},{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"},{"name":"nonce","type":"bytes32"},{"name":"signature","type":"bytes"}],"outputs":[]},
  {"type":"function","name":"claimWeekly","stateMutability":"nonpayable","inputs":[{"name":"week","type":"uint256"},{"name":"rank","type":"uint256"},{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"},{"name":"nonce","type":"bytes32"},{"name":"signature","type":"bytes"}],"outputs":[]}
]`

const erc20ABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// EthChain talks to the treasury contract over an EVM JSON-RPC endpoint.
// All writes are signed with the backend wallet key.
type EthChain struct {
	client      *ethclient.Client
	treasuryABI abi.ABI
	erc20ABI    abi.ABI
	contract    common.Address
	token       common.Address
	key         *ecdsa.PrivateKey
	from        common.Address
	chainID     *big.Int
}

// NewEthChain dials the RPC endpoint and prepares the fixed ABIs.
func NewEthChain(rpcURL, contractAddr, tokenAddr, keyHex string, chainID int64) (*EthChain, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("treasury: dial %s: %w", rpcURL, err)
	}
	tABI, err := abi.JSON(strings.NewReader(treasuryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("treasury: abi: %w", err)
	}
	eABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("treasury: erc20 abi: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("treasury: private key: %w", err)
	}
	return &EthChain{
		client:      client,
		treasuryABI: tABI,
		erc20ABI:    eABI,
		contract:    common.HexToAddress(contractAddr),
		token:       common.HexToAddress(tokenAddr),
		key:         key,
		from:        crypto.PubkeyToAddress(key.PublicKey),
		chainID:     big.NewInt(chainID),
	}, nil
}

func (e *EthChain) callUint256(ctx context.Context, to common.Address, a abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	input, err := a.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, err
	}
	vals, err := a.Unpack(method, out)
	if err != nil {
		return nil, err
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("%s: unexpected outputs", method)
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output type", method)
	}
	return v, nil
}

func (e *EthChain) PricePerChat(ctx context.Context) (*big.Int, error) {
	return e.callUint256(ctx, e.contract, e.treasuryABI, "pricePerChat")
}

func (e *EthChain) BalanceOf(ctx context.Context, owner string) (*big.Int, error) {
	return e.callUint256(ctx, e.token, e.erc20ABI, "balanceOf", common.HexToAddress(owner))
}

func (e *EthChain) Allowance(ctx context.Context, owner string) (*big.Int, error) {
	return e.callUint256(ctx, e.token, e.erc20ABI, "allowance", common.HexToAddress(owner), e.contract)
}

func (e *EthChain) submit(ctx context.Context, method string, args ...interface{}) (string, error) {
	input, err := e.treasuryABI.Pack(method, args...)
	if err != nil {
		return "", err
	}
	nonce, err := e.client.PendingNonceAt(ctx, e.from)
	if err != nil {
		return "", err
	}
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", err
	}
	gasLimit, err := e.client.EstimateGas(ctx, ethereum.CallMsg{
		From: e.from,
		To:   &e.contract,
		Data: input,
	})
	if err != nil {
		return "", err
	}
	tx := types.NewTransaction(nonce, e.contract, big.NewInt(0), gasLimit, gasPrice, input)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(e.chainID), e.key)
	if err != nil {
		return "", err
	}
	if err := e.client.SendTransaction(ctx, signed); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

func (e *EthChain) PayWithAllowance(ctx context.Context, payer string, amount *big.Int) (string, error) {
	return e.submit(ctx, "payWithAllowance", common.HexToAddress(payer), amount)
}

func (e *EthChain) PayWithPermit(ctx context.Context, payer string, amount *big.Int, permit PermitSignature) (string, error) {
	return e.submit(ctx, "payWithPermit", common.HexToAddress(payer), amount, permit.Deadline, permit.V, permit.R, permit.S)
}

func (e *EthChain) ClaimAchievement(ctx context.Context, id uint64, recipient string, amount *big.Int, nonce [32]byte, sig []byte) (string, error) {
	return e.submit(ctx, "claimAchievement", new(big.Int).SetUint64(id), common.HexToAddress(recipient), amount, nonce, sig)
}

func (e *EthChain) ClaimWeekly(ctx context.Context, week, rank uint64, recipient string, amount *big.Int, nonce [32]byte, sig []byte) (string, error) {
	return e.submit(ctx, "claimWeekly", new(big.Int).SetUint64(week), new(big.Int).SetUint64(rank), common.HexToAddress(recipient), amount, nonce, sig)
}
