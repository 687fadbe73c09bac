// Package evmtest provides an in-memory contract backend for unit tests. Calls are dispatched to
// handlers registered per contract address and ABI method.
package evmtest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrReverted is returned for calls nothing is registered for.
var ErrReverted = errors.New("execution reverted")

// HandlerFunc receives the unpacked method arguments and returns the outputs to pack.
type HandlerFunc func(args []any) ([]any, error)

type handlerKey struct {
	to       common.Address
	selector [4]byte
}

type handler struct {
	method abi.Method
	fn     HandlerFunc
}

// FakeCaller implements bind.ContractCaller and BalanceAt.
type FakeCaller struct {
	mu       sync.Mutex
	handlers map[handlerKey]handler
	code     map[common.Address][]byte
	balances map[common.Address]*big.Int
	calls    []ethereum.CallMsg
}

// NewFakeCaller creates an empty FakeCaller.
func NewFakeCaller() *FakeCaller {
	return &FakeCaller{
		handlers: map[handlerKey]handler{},
		code:     map[common.Address][]byte{},
		balances: map[common.Address]*big.Int{},
	}
}

// Handle registers fn for calls of method on the contract at to.
func (f *FakeCaller) Handle(to common.Address, contractABI *abi.ABI, method string, fn HandlerFunc) *FakeCaller {
	m, ok := contractABI.Methods[method]
	if !ok {
		panic(fmt.Sprintf("evmtest: method %s not in ABI", method))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var sel [4]byte
	copy(sel[:], m.ID)
	f.handlers[handlerKey{to: to, selector: sel}] = handler{method: m, fn: fn}

	return f
}

// Returns registers constant outputs for method on the contract at to.
func (f *FakeCaller) Returns(to common.Address, contractABI *abi.ABI, method string, outs ...any) *FakeCaller {
	return f.Handle(to, contractABI, method, func([]any) ([]any, error) { return outs, nil })
}

// Reverts registers a reverting method on the contract at to.
func (f *FakeCaller) Reverts(to common.Address, contractABI *abi.ABI, method string) *FakeCaller {
	return f.Handle(to, contractABI, method, func([]any) ([]any, error) { return nil, ErrReverted })
}

// SetCode sets the code at addr. Any non-empty code marks the address as a deployed contract.
func (f *FakeCaller) SetCode(addr common.Address, code []byte) *FakeCaller {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.code[addr] = code

	return f
}

// SetBalance sets the native balance of addr.
func (f *FakeCaller) SetBalance(addr common.Address, bal *big.Int) *FakeCaller {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.balances[addr] = bal

	return f
}

// Calls returns the calls received so far.
func (f *FakeCaller) Calls() []ethereum.CallMsg {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]ethereum.CallMsg(nil), f.calls...)
}

func (f *FakeCaller) CodeAt(_ context.Context, contract common.Address, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.code[contract], nil
}

func (f *FakeCaller) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b, ok := f.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}

	return new(big.Int), nil
}

func (f *FakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if call.To == nil || len(call.Data) < 4 {
		return nil, ErrReverted
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	var sel [4]byte
	copy(sel[:], call.Data[:4])
	h, ok := f.handlers[handlerKey{to: *call.To, selector: sel}]
	f.mu.Unlock()

	if !ok {
		return nil, ErrReverted
	}

	args, err := h.method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("evmtest: unpack %s: %w", h.method.Name, err)
	}
	outs, err := h.fn(args)
	if err != nil {
		return nil, err
	}

	return h.method.Outputs.Pack(outs...)
}
