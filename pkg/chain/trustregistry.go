// Package chain defines the on-chain TrustRegistry calling contract
// consumed by pkg/trust (SPEC_FULL.md §6) and a concrete client over
// go-ethereum's ethclient/abi/bind, the idiomatic Go equivalent of the
// original Rust node's alloy-generated bindings
// (original_source/node/src/contract.rs). The three read methods and
// their argument/return shapes match that source exactly; didHash is the
// 32-byte Keccak-256 of the DID string.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// TrustDetails mirrors the contract's getTrustDetails() return tuple.
type TrustDetails struct {
	Reputation  uint64
	Stake       uint64
	Endorsement uint64
	Composite   uint64
}

// ReputationDetails mirrors the contract's getReputation() return tuple.
type ReputationDetails struct {
	Score         uint64
	Transactions  uint64
	SuccessRate   uint64
}

// TrustRegistry is the read-only on-chain contract interface the
// TrustAggregator's circuit breaker wraps. Defining it as a narrow
// interface (rather than depending on *EthClient directly) lets tests
// substitute a fake without a live RPC endpoint.
type TrustRegistry interface {
	GetTrustScore(ctx context.Context, did string) (uint64, error)
	GetTrustDetails(ctx context.Context, did string) (TrustDetails, error)
	GetReputation(ctx context.Context, did string) (ReputationDetails, error)
}

// DIDHash returns the 32-byte Keccak-256 hash of the DID string, the key
// the TrustRegistry contract indexes by (SPEC_FULL.md §6).
func DIDHash(did string) [32]byte {
	return crypto.Keccak256Hash([]byte(did))
}

const trustRegistryABI = `[
	{"type":"function","name":"getTrustScore","stateMutability":"view",
	 "inputs":[{"name":"didHash","type":"bytes32"}],
	 "outputs":[{"name":"compositeScore","type":"uint256"}]},
	{"type":"function","name":"getTrustDetails","stateMutability":"view",
	 "inputs":[{"name":"didHash","type":"bytes32"}],
	 "outputs":[
		{"name":"reputationScore","type":"uint256"},
		{"name":"stakeScore","type":"uint256"},
		{"name":"endorsementScore","type":"uint256"},
		{"name":"compositeScore","type":"uint256"}]},
	{"type":"function","name":"getReputation","stateMutability":"view",
	 "inputs":[{"name":"didHash","type":"bytes32"}],
	 "outputs":[
		{"name":"score","type":"uint256"},
		{"name":"transactions","type":"uint256"},
		{"name":"successRate","type":"uint256"}]}
]`

// EthClient is a TrustRegistry client over a go-ethereum JSON-RPC
// endpoint. The ABI is parsed once at construction; each call opens a
// bind.BoundContract against the shared ethclient.Client connection.
type EthClient struct {
	client  *ethclient.Client
	address common.Address
	abi     abi.ABI
}

// NewEthClient dials rpcURL and binds to contractAddress.
func NewEthClient(rpcURL, contractAddress string) (*EthClient, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddress)
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC %s: %w", rpcURL, err)
	}
	parsed, err := abi.JSON(strings.NewReader(trustRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("parse TrustRegistry ABI: %w", err)
	}
	return &EthClient{
		client:  client,
		address: common.HexToAddress(contractAddress),
		abi:     parsed,
	}, nil
}

func (c *EthClient) bound() *bind.BoundContract {
	return bind.NewBoundContract(c.address, c.abi, c.client, c.client, c.client)
}

// GetTrustScore returns the composite trust score (0-10000).
func (c *EthClient) GetTrustScore(ctx context.Context, did string) (uint64, error) {
	hash := DIDHash(did)
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.bound().Call(opts, &out, "getTrustScore", hash); err != nil {
		return 0, fmt.Errorf("getTrustScore: %w", err)
	}
	score, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("getTrustScore: unexpected return type")
	}
	return score.Uint64(), nil
}

// GetTrustDetails returns the full component breakdown.
func (c *EthClient) GetTrustDetails(ctx context.Context, did string) (TrustDetails, error) {
	hash := DIDHash(did)
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.bound().Call(opts, &out, "getTrustDetails", hash); err != nil {
		return TrustDetails{}, fmt.Errorf("getTrustDetails: %w", err)
	}
	if len(out) != 4 {
		return TrustDetails{}, fmt.Errorf("getTrustDetails: expected 4 return values, got %d", len(out))
	}
	return TrustDetails{
		Reputation:  toUint64(out[0]),
		Stake:       toUint64(out[1]),
		Endorsement: toUint64(out[2]),
		Composite:   toUint64(out[3]),
	}, nil
}

// GetReputation returns the reputation, transaction count, and success rate.
func (c *EthClient) GetReputation(ctx context.Context, did string) (ReputationDetails, error) {
	hash := DIDHash(did)
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.bound().Call(opts, &out, "getReputation", hash); err != nil {
		return ReputationDetails{}, fmt.Errorf("getReputation: %w", err)
	}
	if len(out) != 3 {
		return ReputationDetails{}, fmt.Errorf("getReputation: expected 3 return values, got %d", len(out))
	}
	return ReputationDetails{
		Score:        toUint64(out[0]),
		Transactions: toUint64(out[1]),
		SuccessRate:  toUint64(out[2]),
	}, nil
}

func toUint64(v interface{}) uint64 {
	if bi, ok := v.(*big.Int); ok {
		return bi.Uint64()
	}
	return 0
}
