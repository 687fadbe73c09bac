package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tocwex/slab-sub000/chain/evm"
)

const (
	// DefaultConfirmTimeout bounds how long a transaction is waited on before it is reported failed.
	DefaultConfirmTimeout = 2 * time.Minute
	// DefaultTickInterval matches the polling interval of bind.WaitMined.
	DefaultTickInterval = 1 * time.Second
)

// ErrReverted is returned by confirm functions when the transaction was mined but reverted.
var ErrReverted = errors.New("transaction reverted")

// ConfirmFunctor is an interface for creating a confirmation function for transactions on the
// EVM chain.
type ConfirmFunctor interface {
	// Generate returns a function that confirms transactions on the EVM chain.
	Generate(
		ctx context.Context, chainID uint64, client evm.OnchainClient, from common.Address,
	) (evm.ConfirmFunc, error)
}

// ConfirmFuncGeth returns a ConfirmFunctor that polls for receipts through the geth client.
func ConfirmFuncGeth(waitMinedTimeout time.Duration, opts ...func(*confirmFuncGeth)) ConfirmFunctor {
	cf := &confirmFuncGeth{
		tickInterval:     DefaultTickInterval,
		waitMinedTimeout: waitMinedTimeout,
	}
	for _, o := range opts {
		o(cf)
	}

	return cf
}

func WithTickInterval(interval time.Duration) func(*confirmFuncGeth) {
	return func(o *confirmFuncGeth) {
		o.tickInterval = interval
	}
}

type confirmFuncGeth struct {
	tickInterval     time.Duration
	waitMinedTimeout time.Duration
}

// Generate returns a function that confirms transactions using the Geth client.
func (g *confirmFuncGeth) Generate(
	ctx context.Context, chainID uint64, client evm.OnchainClient, from common.Address,
) (evm.ConfirmFunc, error) {
	return func(tx *types.Transaction) (uint64, error) {
		if tx == nil {
			return 0, fmt.Errorf("tx was nil, nothing to confirm for chain %d", chainID)
		}

		ctxTimeout, cancel := context.WithTimeout(ctx, g.waitMinedTimeout)
		defer cancel()

		receipt, err := WaitMinedWithInterval(ctxTimeout, g.tickInterval, client, tx.Hash())
		if err != nil {
			return 0, fmt.Errorf("tx %s failed to confirm for chain %d: %w", tx.Hash().Hex(), chainID, err)
		}
		if receipt == nil {
			return 0, fmt.Errorf("receipt was nil for tx %s for chain %d", tx.Hash().Hex(), chainID)
		}

		blockNum := receipt.BlockNumber.Uint64()
		if receipt.Status == types.ReceiptStatusFailed {
			reason, rerr := getErrorReasonFromTx(ctxTimeout, client, from, tx, receipt)
			if rerr == nil && reason != "" {
				return blockNum, fmt.Errorf("%w: tx %s on chain %d: %s", ErrReverted, tx.Hash().Hex(), chainID, reason)
			}

			return blockNum, fmt.Errorf("%w: tx %s on chain %d, could not decode error reason",
				ErrReverted, tx.Hash().Hex(), chainID)
		}

		return blockNum, nil
	}, nil
}

// WaitMinedWithInterval polls for the receipt of txHash every tick until it is found or ctx is
// done. Errors other than ethereum.NotFound are retried on the next tick as well.
func WaitMinedWithInterval(ctx context.Context, tick time.Duration, b bind.DeployBackend, txHash common.Hash) (*types.Receipt, error) {
	queryTicker := time.NewTicker(tick)
	defer queryTicker.Stop()

	var lastErr error
	for {
		receipt, err := b.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, errors.Join(ctx.Err(), lastErr)
			}

			return nil, ctx.Err()
		case <-queryTicker.C:
		}
	}
}
