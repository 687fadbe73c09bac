package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tocwex/slab-sub000/contracts"
	"github.com/tocwex/slab-sub000/datastore"
	"github.com/tocwex/slab-sub000/pkg/logger"
)

// Resolver resolves ERC-20 metadata, consulting the well-known list and the datastore before
// reading the contract. Fetched metadata is written back to the datastore.
type Resolver struct {
	chainID uint64
	caller  bind.ContractCaller
	store   datastore.MutableTokenStore
	lggr    logger.Logger
}

// NewResolver creates a Resolver for one chain.
func NewResolver(chainID uint64, caller bind.ContractCaller, store datastore.MutableTokenStore, lggr logger.Logger) *Resolver {
	return &Resolver{chainID: chainID, caller: caller, store: store, lggr: lggr.Named("TokenResolver")}
}

// Resolve returns the metadata of the token at address.
func (r *Resolver) Resolve(ctx context.Context, address common.Address) (Token, error) {
	if address == NativeAddress {
		return Native(r.chainID), nil
	}
	if t, ok := LookupWellKnown(r.chainID, address); ok {
		return t, nil
	}

	rec, err := r.store.Get(datastore.NewTokenKey(r.chainID, address))
	if err == nil {
		return FromRecord(rec), nil
	}
	if !errors.Is(err, datastore.ErrTokenNotFound) {
		return Token{}, err
	}

	t, err := r.fetch(ctx, address)
	if err != nil {
		return Token{}, err
	}
	if err = r.store.Upsert(t.Record()); err != nil {
		r.lggr.Warnw("failed to cache token metadata", "token", address.Hex(), "err", err)
	}

	return t, nil
}

// Remember stores token metadata, e.g. for a freshly launched Syndicate token.
func (r *Resolver) Remember(t Token) error {
	t.ChainID = r.chainID

	return r.store.Upsert(t.Record())
}

// Known lists the well-known tokens followed by every cached token for the chain.
func (r *Resolver) Known() []Token {
	out := WellKnown(r.chainID)
	for _, rec := range r.store.Filter(datastore.TokenByChainID(r.chainID)) {
		if _, ok := LookupWellKnown(r.chainID, rec.Address); ok {
			continue
		}
		out = append(out, FromRecord(rec))
	}

	return out
}

func (r *Resolver) fetch(ctx context.Context, address common.Address) (Token, error) {
	erc20 := bind.NewBoundContract(address, *contracts.ERC20ABI, r.caller, nil, nil)
	opts := &bind.CallOpts{Context: ctx}

	var (
		name, symbol string
		decimals     uint8
	)
	if err := callOne(erc20, opts, "decimals", &decimals); err != nil {
		return Token{}, fmt.Errorf("failed to read decimals of %s: %w", address.Hex(), err)
	}
	if err := callOne(erc20, opts, "symbol", &symbol); err != nil {
		return Token{}, fmt.Errorf("failed to read symbol of %s: %w", address.Hex(), err)
	}
	// name is optional in EIP-20
	if err := callOne(erc20, opts, "name", &name); err != nil {
		r.lggr.Debugw("token has no name", "token", address.Hex(), "err", err)
	}

	r.lggr.Debugw("fetched token metadata", "token", address.Hex(), "symbol", symbol, "decimals", decimals)

	return Token{ChainID: r.chainID, Address: address, Name: name, Symbol: symbol, Decimals: decimals}, nil
}

func callOne[T any](c *bind.BoundContract, opts *bind.CallOpts, method string, out *T) error {
	var res []any
	if err := c.Call(opts, &res, method); err != nil {
		return err
	}
	if len(res) != 1 {
		return fmt.Errorf("%s returned %d values", method, len(res))
	}
	v, ok := res[0].(T)
	if !ok {
		return fmt.Errorf("%s returned %T", method, res[0])
	}
	*out = v

	return nil
}
