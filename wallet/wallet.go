// Package wallet holds the connected session: which account slab acts as and on which chain.
// Every mutation checks the session before touching the network.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tocwex/slab-sub000/chain/evm"
	"github.com/tocwex/slab-sub000/pkg/logger"
)

// ErrNotConnected is returned by operations that need a signer when the session is read-only.
var ErrNotConnected = errors.New("wallet not connected")

// Tx is a plain transaction request.
type Tx struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Wallet is the session surface the rest of slab depends on.
type Wallet interface {
	// ChainID is the chain the session is on.
	ChainID() uint64
	// Account is the connected address, or ErrNotConnected.
	Account() (common.Address, error)
	// SignHash signs a 32 byte digest with the connected key. v is 0 or 1.
	SignHash(digest []byte) ([]byte, error)
	// Send submits tx and waits for it to be mined successfully.
	Send(ctx context.Context, tx Tx) (*types.Receipt, error)
}

var _ Wallet = (*Session)(nil)

// Session is a Wallet backed by an evm.Chain.
type Session struct {
	chain *evm.Chain
	lggr  logger.Logger
}

// NewSession creates a session on chain. A chain without a signer yields a read-only session.
func NewSession(chain *evm.Chain, lggr logger.Logger) *Session {
	return &Session{chain: chain, lggr: lggr.Named("Wallet")}
}

// Chain returns the chain of the session.
func (s *Session) Chain() *evm.Chain {
	return s.chain
}

func (s *Session) ChainID() uint64 {
	return s.chain.ChainID
}

func (s *Session) Account() (common.Address, error) {
	if s.chain.Signer == nil {
		return common.Address{}, ErrNotConnected
	}

	return s.chain.Signer.From, nil
}

// Connected reports whether the session can sign.
func (s *Session) Connected() bool {
	return s.chain.Signer != nil && s.chain.SignHash != nil
}

func (s *Session) SignHash(digest []byte) ([]byte, error) {
	if !s.Connected() {
		return nil, ErrNotConnected
	}
	if len(digest) != common.HashLength {
		return nil, fmt.Errorf("digest must be %d bytes, got %d", common.HashLength, len(digest))
	}

	return s.chain.SignHash(digest)
}

func (s *Session) Send(ctx context.Context, tx Tx) (*types.Receipt, error) {
	if !s.Connected() {
		return nil, ErrNotConnected
	}

	opts := *s.chain.Signer
	opts.Context = ctx
	opts.Value = tx.Value

	// bind refuses to estimate calls to addresses without code
	if opts.GasLimit == 0 {
		gas, err := s.chain.Client.EstimateGas(ctx, ethereum.CallMsg{From: opts.From, To: &tx.To, Value: tx.Value, Data: tx.Data})
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas for %s: %w", tx.To.Hex(), evm.MaybeDataErr(err))
		}
		opts.GasLimit = gas
	}

	// an empty ABI is enough for RawTransact
	contract := bind.NewBoundContract(tx.To, abi.ABI{}, s.chain.Client, s.chain.Client, s.chain.Client)
	sent, err := contract.RawTransact(&opts, tx.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction to %s: %w", tx.To.Hex(), evm.MaybeDataErr(err))
	}
	s.lggr.Infow("transaction sent", "hash", sent.Hash().Hex(), "to", tx.To.Hex(), "chain", s.chain.String())

	if _, err = s.chain.Confirm(sent); err != nil {
		return nil, err
	}

	receipt, err := s.chain.Client.TransactionReceipt(ctx, sent.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt of %s: %w", sent.Hash().Hex(), err)
	}
	s.lggr.Infow("transaction confirmed", "hash", sent.Hash().Hex(), "block", receipt.BlockNumber)

	return receipt, nil
}

// Balance returns the native balance of the connected account.
func (s *Session) Balance(ctx context.Context) (*big.Int, error) {
	account, err := s.Account()
	if err != nil {
		return nil, err
	}

	return s.chain.Client.BalanceAt(ctx, account, nil)
}
