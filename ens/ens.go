// Package ens resolves ENS names to addresses through the registry and the name's resolver.
package ens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tocwex/slab-sub000/contracts"
	"github.com/tocwex/slab-sub000/pkg/logger"
	"github.com/tocwex/slab-sub000/querycache"
)

var (
	// ErrNotFound is returned when a name has no resolver or no address record.
	ErrNotFound = errors.New("ens name not found")
	// ErrInvalidRecipient is returned by ResolveRecipient for input that is neither an address
	// nor a name.
	ErrInvalidRecipient = errors.New("recipient must be an address or an ENS name")
)

// Namehash computes the EIP-137 node of name. Names are lower-cased; no further normalization
// is applied.
func Namehash(name string) common.Hash {
	var node common.Hash
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return node
	}

	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), label)
	}

	return node
}

// IsName reports whether s looks like an ENS name.
func IsName(s string) bool {
	s = strings.TrimSpace(s)
	return strings.Contains(s, ".") && !strings.HasPrefix(s, ".") && !strings.HasSuffix(s, ".") &&
		!strings.Contains(s, " ") && !strings.Contains(s, "..")
}

// Resolver performs forward resolution.
type Resolver struct {
	registry common.Address
	caller   bind.ContractCaller
	cache    *querycache.Cache
}

// NewResolver creates a Resolver using the registry at registry. Lookups are cached in cache;
// a nil cache gets a private one.
func NewResolver(registry common.Address, caller bind.ContractCaller, cache *querycache.Cache) *Resolver {
	if cache == nil {
		cache = querycache.New(querycache.Config{}, logger.Nop())
	}

	return &Resolver{registry: registry, caller: caller, cache: cache}
}

// Key is the query cache key of name's address record.
func Key(name string) string {
	return querycache.Key("ens", strings.TrimSpace(name))
}

// Resolve returns the address record of name.
func (r *Resolver) Resolve(ctx context.Context, name string) (common.Address, error) {
	if r.registry == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: no ENS registry on this chain", ErrNotFound)
	}

	return querycache.Fetch(ctx, r.cache, Key(name), func(ctx context.Context) (common.Address, error) {
		addr, err := r.lookup(ctx, name)
		if errors.Is(err, ErrNotFound) {
			return addr, retry.Unrecoverable(err)
		}

		return addr, err
	})
}

func (r *Resolver) lookup(ctx context.Context, name string) (common.Address, error) {
	node := Namehash(name)
	opts := &bind.CallOpts{Context: ctx}

	registry := bind.NewBoundContract(r.registry, *contracts.ENSRegistryABI, r.caller, nil, nil)
	resolverAddr, err := callAddress(registry, opts, "resolver", node)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to look up resolver of %s: %w", name, err)
	}
	if resolverAddr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s has no resolver", ErrNotFound, name)
	}

	resolver := bind.NewBoundContract(resolverAddr, *contracts.ENSResolverABI, r.caller, nil, nil)
	addr, err := callAddress(resolver, opts, "addr", node)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s has no address", ErrNotFound, name)
	}

	return addr, nil
}

// ResolveRecipient accepts a hex address or an ENS name.
func (r *Resolver) ResolveRecipient(ctx context.Context, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if common.IsHexAddress(s) {
		return common.HexToAddress(s), nil
	}
	if !IsName(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, s)
	}

	return r.Resolve(ctx, s)
}

func callAddress(c *bind.BoundContract, opts *bind.CallOpts, method string, node common.Hash) (common.Address, error) {
	var out []any
	if err := c.Call(opts, &out, method, [32]byte(node)); err != nil {
		return common.Address{}, err
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("%s returned %d values", method, len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s returned %T", method, out[0])
	}

	return addr, nil
}
