package mutation

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tocwex/slab-sub000/operations"
	"github.com/tocwex/slab-sub000/safe"
	"github.com/tocwex/slab-sub000/wallet"
)

// SafeService is the Safe transaction service as used by mutations.
type SafeService interface {
	SafeInfo(ctx context.Context, safe common.Address) (safe.Info, error)
	SafesByOwner(ctx context.Context, owner common.Address) ([]common.Address, error)
	PendingTransactions(ctx context.Context, safe common.Address, minNonce uint64) ([]safe.MultisigTransaction, error)
	Transaction(ctx context.Context, safeTxHash common.Hash) (safe.MultisigTransaction, error)
	Propose(ctx context.Context, safe common.Address, req safe.ProposeRequest) error
	Confirm(ctx context.Context, safeTxHash common.Hash, signature []byte) error
}

// Deps are the clients the write operations use.
type Deps struct {
	Wallet   wallet.Wallet
	Safes    SafeService
	Deployer *safe.Deployer
}

type SendInput struct {
	To    common.Address `json:"to"`
	Value *big.Int       `json:"value"`
	Data  hexutil.Bytes  `json:"data"`
}

type SendOutput struct {
	TxHash common.Hash `json:"txHash"`
	Block  uint64      `json:"block"`
}

type DeploySafeInput struct {
	Owners    []common.Address `json:"owners"`
	Threshold uint64           `json:"threshold"`
	SaltNonce *big.Int         `json:"saltNonce"`
}

type ProposeInput struct {
	Safe    common.Address      `json:"safe"`
	Request safe.ProposeRequest `json:"request"`
}

type ConfirmInput struct {
	SafeTxHash common.Hash   `json:"safeTxHash"`
	Signature  hexutil.Bytes `json:"signature"`
}

var (
	SendTransaction = operations.NewOperation(
		"send-transaction",
		semver.MustParse("1.0.0"),
		"Send a transaction from the connected wallet and wait for it to be mined",
		func(b operations.Bundle, deps Deps, in SendInput) (SendOutput, error) {
			receipt, err := deps.Wallet.Send(b.GetContext(), wallet.Tx{To: in.To, Value: in.Value, Data: in.Data})
			if err != nil {
				return SendOutput{}, err
			}

			out := SendOutput{TxHash: receipt.TxHash}
			if receipt.BlockNumber != nil {
				out.Block = receipt.BlockNumber.Uint64()
			}

			return out, nil
		},
	)

	DeploySafe = operations.NewOperation(
		"deploy-safe",
		semver.MustParse("1.0.0"),
		"Deploy a Safe proxy through the proxy factory",
		func(b operations.Bundle, deps Deps, in DeploySafeInput) (common.Address, error) {
			if deps.Deployer == nil {
				return common.Address{}, fmt.Errorf("%w: no safe deployer", ErrNotConfigured)
			}

			return deps.Deployer.Deploy(b.GetContext(), in.Owners, in.Threshold, in.SaltNonce)
		},
	)

	ProposeTransaction = operations.NewOperation(
		"propose-safe-transaction",
		semver.MustParse("1.0.0"),
		"Propose a signed transaction to the Safe transaction service",
		func(b operations.Bundle, deps Deps, in ProposeInput) (common.Hash, error) {
			if err := deps.Safes.Propose(b.GetContext(), in.Safe, in.Request); err != nil {
				return common.Hash{}, err
			}

			return in.Request.ContractTransactionHash, nil
		},
	)

	ConfirmTransaction = operations.NewOperation(
		"confirm-safe-transaction",
		semver.MustParse("1.0.0"),
		"Add the connected owner's signature to a proposed Safe transaction",
		func(b operations.Bundle, deps Deps, in ConfirmInput) (common.Hash, error) {
			if err := deps.Safes.Confirm(b.GetContext(), in.SafeTxHash, in.Signature); err != nil {
				return common.Hash{}, err
			}

			return in.SafeTxHash, nil
		},
	)
)

// Registry returns a registry of every write operation.
func Registry() *operations.Registry {
	r := operations.NewRegistry()
	operations.Register(r, SendTransaction)
	operations.Register(r, DeploySafe)
	operations.Register(r, ProposeTransaction)
	operations.Register(r, ConfirmTransaction)

	return r
}
