// Package tokenbound derives, deploys and drives ERC-6551 tokenbound accounts owned by Azimuth
// points.
package tokenbound

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tocwex/slab-sub000/contracts"
)

// Operation is the call type of an account execution.
type Operation uint8

const (
	OperationCall         Operation = 0
	OperationDelegateCall Operation = 1
	OperationCreate       Operation = 2
	OperationCreate2      Operation = 3
)

// ErrNotExecute is returned by DecodeExecute for calldata that is not an execute call.
var ErrNotExecute = errors.New("calldata is not a tokenbound execute call")

var (
	// ERC-1167 style proxy wrapping the implementation, as created by the ERC-6551 registry.
	proxyPrefix = common.FromHex("0x3d60ad80600a3d3981f3363d3d373d3d3d363d73")
	proxySuffix = common.FromHex("0x5af43d82803e903d91602b57fd5bf3")
)

// Params identify a tokenbound account.
type Params struct {
	Registry       common.Address
	Implementation common.Address
	Salt           [32]byte
	ChainID        uint64
	TokenContract  common.Address
	TokenID        *big.Int
}

// ParamsFor returns the account parameters of tokenID on the deployment's identity registry.
func ParamsFor(d contracts.Deployment, tokenID *big.Int) Params {
	return Params{
		Registry:       d.ERC6551Registry,
		Implementation: d.TokenboundAccount,
		Salt:           d.TokenboundSalt,
		ChainID:        d.ChainID,
		TokenContract:  d.Ecliptic,
		TokenID:        tokenID,
	}
}

// Address computes the counterfactual account address without touching the chain.
func Address(p Params) common.Address {
	word := func(b []byte) []byte { return common.LeftPadBytes(b, 32) }

	code := make([]byte, 0, len(proxyPrefix)+common.AddressLength+len(proxySuffix)+4*32)
	code = append(code, proxyPrefix...)
	code = append(code, p.Implementation.Bytes()...)
	code = append(code, proxySuffix...)
	code = append(code, p.Salt[:]...)
	code = append(code, word(new(big.Int).SetUint64(p.ChainID).Bytes())...)
	code = append(code, word(p.TokenContract.Bytes())...)
	code = append(code, word(tokenIDOrZero(p.TokenID).Bytes())...)

	return crypto.CreateAddress2(p.Registry, p.Salt, crypto.Keccak256(code))
}

// CodeReader reads deployed bytecode.
type CodeReader interface {
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
}

// IsDeployed reports whether code exists at addr.
func IsDeployed(ctx context.Context, r CodeReader, addr common.Address) (bool, error) {
	code, err := r.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("failed to read code at %s: %w", addr.Hex(), err)
	}

	return len(code) > 0, nil
}

// CreateAccount returns the registry calldata deploying the account of p.
func CreateAccount(p Params) ([]byte, error) {
	return contracts.ERC6551RegistryABI.Pack("createAccount",
		p.Implementation, p.Salt, new(big.Int).SetUint64(p.ChainID), p.TokenContract, tokenIDOrZero(p.TokenID))
}

// Execution is a call made by a tokenbound account.
type Execution struct {
	To        common.Address
	Value     *big.Int
	Data      []byte
	Operation Operation
}

// Execute wraps e in the account's execute calldata.
func Execute(e Execution) ([]byte, error) {
	value := e.Value
	if value == nil {
		value = new(big.Int)
	}
	if e.Data == nil {
		e.Data = []byte{}
	}

	return contracts.TokenboundAccountABI.Pack("execute", e.To, value, e.Data, uint8(e.Operation))
}

// DecodeExecute unwraps execute calldata.
func DecodeExecute(data []byte) (Execution, error) {
	method := contracts.TokenboundAccountABI.Methods["execute"]
	if len(data) < 4 || !matches(method, data) {
		return Execution{}, ErrNotExecute
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return Execution{}, fmt.Errorf("%w: %w", ErrNotExecute, err)
	}

	var out struct {
		To        common.Address
		Value     *big.Int
		Data      []byte
		Operation uint8
	}
	if err = method.Inputs.Copy(&out, args); err != nil {
		return Execution{}, fmt.Errorf("%w: %w", ErrNotExecute, err)
	}

	return Execution{To: out.To, Value: out.Value, Data: out.Data, Operation: Operation(out.Operation)}, nil
}

func matches(m abi.Method, data []byte) bool {
	return string(m.ID) == string(data[:4])
}

func tokenIDOrZero(id *big.Int) *big.Int {
	if id == nil {
		return new(big.Int)
	}

	return id
}
