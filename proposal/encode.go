package proposal

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocwex/slab-sub000/contracts"
	"github.com/tocwex/slab-sub000/safe"
	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/tokenbound"
)

// ErrInvalidArgs is returned by encoders for arguments the contracts would reject.
var ErrInvalidArgs = errors.New("invalid proposal arguments")

// Call is a call made by a Safe, ready to be proposed or executed.
type Call struct {
	To        common.Address
	Value     *big.Int
	Data      []byte
	Operation safe.Operation
}

// Tx returns the call in the form Decode accepts.
func (c Call) Tx() Tx {
	return Tx{To: c.To, Value: orZero(c.Value), Data: c.Data}
}

// SafeTransaction returns the Safe transaction making the call at nonce.
func (c Call) SafeTransaction(nonce uint64) safe.Transaction {
	return safe.Transaction{
		To:        c.To,
		Value:     orZero(c.Value),
		Data:      c.Data,
		Operation: c.Operation,
		Nonce:     new(big.Int).SetUint64(nonce),
	}
}

// executeCall wraps an inner call in the tokenbound account's execute.
func executeCall(account common.Address, e tokenbound.Execution) (Call, error) {
	data, err := tokenbound.Execute(e)
	if err != nil {
		return Call{}, err
	}

	return Call{To: account, Value: new(big.Int), Data: data, Operation: safe.OperationCall}, nil
}

func positive(name string, v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidArgs, name)
	}

	return nil
}

// EncodeTransfer sends amount of t from the tokenbound account to recipient.
func EncodeTransfer(account common.Address, t token.Token, recipient common.Address, amount *big.Int) (Call, error) {
	if err := positive("amount", amount); err != nil {
		return Call{}, err
	}

	if t.Native || t.Address == token.NativeAddress {
		return executeCall(account, tokenbound.Execution{To: recipient, Value: amount})
	}

	inner, err := contracts.ERC20ABI.Pack("transfer", recipient, amount)
	if err != nil {
		return Call{}, err
	}

	return executeCall(account, tokenbound.Execution{To: t.Address, Data: inner})
}

// LaunchParams describe a Syndicate token launch.
type LaunchParams struct {
	Implementation common.Address
	Salt           [32]byte
	InitialSupply  *big.Int
	MaxSupply      *big.Int
	Point          *big.Int
	ProtocolFee    *big.Int
	Name           string
	Symbol         string
}

// EncodeLaunch deploys the Syndicate token through the deployer, called by the tokenbound account.
func EncodeLaunch(account, deployer common.Address, p LaunchParams) (Call, error) {
	if p.Name == "" || p.Symbol == "" {
		return Call{}, fmt.Errorf("%w: name and symbol are required", ErrInvalidArgs)
	}
	if err := positive("max supply", p.MaxSupply); err != nil {
		return Call{}, err
	}
	initial := orZero(p.InitialSupply)
	if initial.Cmp(p.MaxSupply) > 0 {
		return Call{}, fmt.Errorf("%w: initial supply exceeds max supply", ErrInvalidArgs)
	}
	if p.Point == nil {
		return Call{}, fmt.Errorf("%w: point is required", ErrInvalidArgs)
	}

	inner, err := contracts.SyndicateDeployerABI.Pack("deploySyndicate",
		p.Implementation, p.Salt, initial, p.MaxSupply, p.Point, orZero(p.ProtocolFee), p.Name, p.Symbol)
	if err != nil {
		return Call{}, err
	}

	return executeCall(account, tokenbound.Execution{To: deployer, Data: inner})
}

// EncodeMint mints amount of the Syndicate token to recipient.
func EncodeMint(account, syndicateToken, recipient common.Address, amount *big.Int) (Call, error) {
	if err := positive("amount", amount); err != nil {
		return Call{}, err
	}

	inner, err := contracts.SyndicateTokenABI.Pack("mint", recipient, amount)
	if err != nil {
		return Call{}, err
	}

	return executeCall(account, tokenbound.Execution{To: syndicateToken, Data: inner})
}

// EncodeBatchMint mints to several recipients in one call.
func EncodeBatchMint(account, syndicateToken common.Address, recipients []Recipient) (Call, error) {
	if len(recipients) == 0 {
		return Call{}, fmt.Errorf("%w: no recipients", ErrInvalidArgs)
	}

	accounts := make([]common.Address, len(recipients))
	amounts := make([]*big.Int, len(recipients))
	for i, r := range recipients {
		if err := positive(fmt.Sprintf("amount of recipient %d", i), r.Amount); err != nil {
			return Call{}, err
		}
		accounts[i], amounts[i] = r.To, r.Amount
	}

	inner, err := contracts.SyndicateTokenABI.Pack("batchMint", accounts, amounts)
	if err != nil {
		return Call{}, err
	}

	return executeCall(account, tokenbound.Execution{To: syndicateToken, Data: inner})
}

// EncodeDissolve dissolves the Syndicate token.
func EncodeDissolve(account, syndicateToken common.Address) (Call, error) {
	inner, err := contracts.SyndicateTokenABI.Pack("dissolveSyndicate")
	if err != nil {
		return Call{}, err
	}

	return executeCall(account, tokenbound.Execution{To: syndicateToken, Data: inner})
}

// EncodeTerminate transfers the point out of the Safe through the Ecliptic directly.
func EncodeTerminate(ecliptic common.Address, point uint32, recipient common.Address, reset bool) (Call, error) {
	if recipient == (common.Address{}) {
		return Call{}, fmt.Errorf("%w: recipient is required", ErrInvalidArgs)
	}

	data, err := contracts.EclipticABI.Pack("transferPoint", point, recipient, reset)
	if err != nil {
		return Call{}, err
	}

	return Call{To: ecliptic, Value: new(big.Int), Data: data, Operation: safe.OperationCall}, nil
}
