// Package evm provides access to the EVM chain slab runs against: a retrying multi-RPC client,
// the connected chain's signer and a transaction confirmation function.
package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ConfirmFunc is a function that takes a transaction, waits for the transaction to be confirmed,
// and returns the block number and an error.
type ConfirmFunc func(tx *types.Transaction) (uint64, error)

// OnchainClient is an EVM chain client.
// For EVM specifically we can use existing geth interface to abstract chain clients.
type OnchainClient interface {
	bind.ContractBackend
	bind.DeployBackend

	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// Chain represents the EVM chain slab is connected to.
type Chain struct {
	ChainID uint64

	Client OnchainClient
	// Signer signs transactions for the connected account. Nil when running read-only.
	Signer *bind.TransactOpts
	Confirm ConfirmFunc

	// SignHash signs arbitrary 32 byte digests with the key behind Signer.
	SignHash func([]byte) ([]byte, error)
}

// Name returns the human readable name of the chain.
func (c Chain) Name() string {
	return ChainName(c.ChainID)
}

// String returns "<name> (<chain id>)".
func (c Chain) String() string {
	return fmt.Sprintf("%s (%d)", c.Name(), c.ChainID)
}

// BigChainID returns the chain ID as a *big.Int for signers.
func (c Chain) BigChainID() *big.Int {
	return new(big.Int).SetUint64(c.ChainID)
}

var chainNames = map[uint64]string{
	1:        "ethereum-mainnet",
	11155111: "ethereum-testnet-sepolia",
	1337:     "simulated",
}

// ChainName returns the name of a chain ID, or "chain-<id>" when unknown.
func ChainName(chainID uint64) string {
	if n, ok := chainNames[chainID]; ok {
		return n
	}

	return fmt.Sprintf("chain-%d", chainID)
}
