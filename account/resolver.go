package account

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/tocwex/slab-sub000/contracts"
	"github.com/tocwex/slab-sub000/datastore"
	"github.com/tocwex/slab-sub000/pkg/logger"
	"github.com/tocwex/slab-sub000/proposal"
	"github.com/tocwex/slab-sub000/querycache"
	"github.com/tocwex/slab-sub000/safe"
	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/tokenbound"
	"github.com/tocwex/slab-sub000/urbit"
)

const holdingsConcurrency = 8

// Config wires a Resolver. Caller and Cache are required; Safes is required for Safe reads.
type Config struct {
	Deployment contracts.Deployment
	Caller     Caller
	Safes      SafeService
	Tokens     *token.Resolver
	Decoder    *proposal.Decoder
	Cache      *querycache.Cache
	// Store holds locally created Safes, listed alongside the service's answer.
	Store datastore.SafeStore
	Lggr  logger.Logger
}

// Resolver answers account queries.
type Resolver struct {
	dep     contracts.Deployment
	caller  Caller
	safes   SafeService
	tokens  *token.Resolver
	decoder *proposal.Decoder
	cache   *querycache.Cache
	store   datastore.SafeStore
	lggr    logger.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) *Resolver {
	lggr := cfg.Lggr
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Resolver{
		dep:     cfg.Deployment,
		caller:  cfg.Caller,
		safes:   cfg.Safes,
		tokens:  cfg.Tokens,
		decoder: cfg.Decoder,
		cache:   cfg.Cache,
		store:   cfg.Store,
		lggr:    lggr.Named("AccountResolver"),
	}
}

// Deployment returns the contract addresses the resolver reads.
func (r *Resolver) Deployment() contracts.Deployment {
	return r.dep
}

// Cache returns the query cache of the resolver.
func (r *Resolver) Cache() *querycache.Cache {
	return r.cache
}

func (r *Resolver) ready(needSafes bool) error {
	switch {
	case r.caller == nil:
		return fmt.Errorf("%w: no chain client", ErrNotInitialized)
	case r.cache == nil:
		return fmt.Errorf("%w: no query cache", ErrNotInitialized)
	case needSafes && r.safes == nil:
		return fmt.Errorf("%w: no safe transaction service", ErrNotInitialized)
	default:
		return nil
	}
}

// PointsOf lists the points held by owner.
func (r *Resolver) PointsOf(ctx context.Context, owner common.Address) ([]urbit.Identity, error) {
	if err := r.ready(false); err != nil {
		return nil, err
	}

	return querycache.Fetch(ctx, r.cache, PointsKey(owner), func(ctx context.Context) ([]urbit.Identity, error) {
		var points []uint32
		azimuth := bind.NewBoundContract(r.dep.Azimuth, *contracts.AzimuthABI, r.caller, nil, nil)
		if err := call(ctx, azimuth, "getOwnedPoints", &points, owner); err != nil {
			return nil, err
		}

		out := make([]urbit.Identity, len(points))
		for i, p := range points {
			out[i] = urbit.IdentityFromUint64(uint64(p))
		}

		return out, nil
	})
}

// OwnerOf returns the holder of a point NFT.
func (r *Resolver) OwnerOf(ctx context.Context, point *big.Int) (common.Address, error) {
	if err := r.ready(false); err != nil {
		return common.Address{}, err
	}

	return querycache.Fetch(ctx, r.cache, OwnerKey(point), func(ctx context.Context) (common.Address, error) {
		var owner common.Address
		ecliptic := bind.NewBoundContract(r.dep.Ecliptic, *contracts.EclipticABI, r.caller, nil, nil)
		err := call(ctx, ecliptic, "ownerOf", &owner, point)

		return owner, err
	})
}

// TokenboundAddress computes the account address of ident without network access.
func (r *Resolver) TokenboundAddress(ident urbit.Identity) (common.Address, error) {
	if _, ok := ident.Uint32(); !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrNoTokenboundID, ident)
	}

	return tokenbound.Address(tokenbound.ParamsFor(r.dep, ident.ID)), nil
}

// IsDeployed reports whether code exists at addr.
func (r *Resolver) IsDeployed(ctx context.Context, addr common.Address) (bool, error) {
	if err := r.ready(false); err != nil {
		return false, err
	}

	return querycache.Fetch(ctx, r.cache, DeployedKey(addr), func(ctx context.Context) (bool, error) {
		return tokenbound.IsDeployed(ctx, r.caller, addr)
	})
}

// TokenboundAccount resolves the account of ident with its holdings and launched token.
func (r *Resolver) TokenboundAccount(ctx context.Context, ident urbit.Identity) (TokenboundAccount, error) {
	if err := r.ready(false); err != nil {
		return TokenboundAccount{}, err
	}
	addr, err := r.TokenboundAddress(ident)
	if err != nil {
		return TokenboundAccount{}, err
	}

	acct := TokenboundAccount{Identity: ident, Address: addr}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		acct.Deployed, err = r.IsDeployed(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		acct.Owner, err = r.OwnerOf(gctx, ident.ID)
		return err
	})
	g.Go(func() (err error) {
		acct.LaunchedToken, err = r.LaunchedToken(gctx, ident.ID)
		return err
	})
	if err = g.Wait(); err != nil {
		return TokenboundAccount{}, err
	}

	acct.Holdings, err = r.Holdings(ctx, addr, acct.LaunchedToken)
	if err != nil {
		return TokenboundAccount{}, err
	}

	return acct, nil
}

// LaunchedToken returns the Syndicate token launched for point, nil when there is none or the
// chain has no Syndicate deployer.
func (r *Resolver) LaunchedToken(ctx context.Context, point *big.Int) (*token.Token, error) {
	if err := r.ready(false); err != nil {
		return nil, err
	}
	if r.dep.SyndicateDeployer == (common.Address{}) {
		return nil, nil
	}

	return querycache.Fetch(ctx, r.cache, LaunchedKey(point), func(ctx context.Context) (*token.Token, error) {
		var addr common.Address
		deployer := bind.NewBoundContract(r.dep.SyndicateDeployer, *contracts.SyndicateDeployerABI, r.caller, nil, nil)
		if err := call(ctx, deployer, "syndicateTokenOf", &addr, point); err != nil {
			return nil, err
		}
		if addr == (common.Address{}) {
			return nil, nil
		}

		t := token.Unknown(r.dep.ChainID, addr)
		if r.tokens != nil {
			resolved, err := r.tokens.Resolve(ctx, addr)
			if err != nil {
				return nil, err
			}
			t = resolved
		}

		return &t, nil
	})
}

// Holdings returns the balances of addr in the native currency, every known token and extra.
// Zero ERC-20 balances are omitted.
func (r *Resolver) Holdings(ctx context.Context, addr common.Address, extra ...*token.Token) (map[common.Address]Holding, error) {
	if err := r.ready(false); err != nil {
		return nil, err
	}

	tokens := token.WellKnown(r.dep.ChainID)
	if r.tokens != nil {
		tokens = r.tokens.Known()
	}
	for _, t := range extra {
		if t != nil && !slices.ContainsFunc(tokens, func(k token.Token) bool { return k.Address == t.Address }) {
			tokens = append(tokens, *t)
		}
	}

	return querycache.Fetch(ctx, r.cache, HoldingsKey(addr), func(ctx context.Context) (map[common.Address]Holding, error) {
		balances := make([]*big.Int, len(tokens))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(holdingsConcurrency)
		for i, t := range tokens {
			g.Go(func() error {
				bal, err := r.balanceOf(gctx, t, addr)
				if err != nil {
					return fmt.Errorf("failed to read %s balance of %s: %w", t.Label(), addr.Hex(), err)
				}
				balances[i] = bal

				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		out := make(map[common.Address]Holding, len(tokens))
		for i, t := range tokens {
			if !t.Native && balances[i].Sign() == 0 {
				continue
			}
			out[t.Address] = Holding{Token: t, Balance: balances[i]}
		}

		return out, nil
	})
}

func (r *Resolver) balanceOf(ctx context.Context, t token.Token, holder common.Address) (*big.Int, error) {
	if t.Native {
		return r.caller.BalanceAt(ctx, holder, nil)
	}

	var bal *big.Int
	erc20 := bind.NewBoundContract(t.Address, *contracts.ERC20ABI, r.caller, nil, nil)
	if err := call(ctx, erc20, "balanceOf", &bal, holder); err != nil {
		return nil, err
	}

	return bal, nil
}

// SafeAccount resolves a Safe with its queued proposals.
func (r *Resolver) SafeAccount(ctx context.Context, addr common.Address) (SafeAccount, error) {
	if err := r.ready(true); err != nil {
		return SafeAccount{}, err
	}

	return querycache.Fetch(ctx, r.cache, SafeKey(addr), func(ctx context.Context) (SafeAccount, error) {
		info, err := r.safes.SafeInfo(ctx, addr)
		if err != nil {
			return SafeAccount{}, permanentIfNotFound(err)
		}

		acct := SafeAccount{
			Address:   addr,
			Owners:    info.Owners,
			Threshold: info.Threshold.Uint64(),
			Nonce:     info.Nonce.Uint64(),
		}
		// the service lags behind executions it has not indexed yet
		onchain, err := safe.Nonce(ctx, r.caller, addr)
		if err != nil {
			r.lggr.Warnw("failed to read safe nonce, using the service's", "safe", addr.Hex(), "err", err)
		} else if onchain > acct.Nonce {
			acct.Nonce = onchain
		}

		pending, err := r.safes.PendingTransactions(ctx, addr, acct.Nonce)
		if err != nil {
			return SafeAccount{}, permanentIfNotFound(err)
		}
		acct.Proposals = r.proposalDecoder().Proposals(ctx, pending, acct.Threshold, acct.Nonce)

		return acct, nil
	})
}

// SafesOf lists the Safes owner belongs to, including Safes created locally that the service
// has not indexed yet.
func (r *Resolver) SafesOf(ctx context.Context, owner common.Address) ([]common.Address, error) {
	if err := r.ready(true); err != nil {
		return nil, err
	}

	return querycache.Fetch(ctx, r.cache, SafesOfKey(owner), func(ctx context.Context) ([]common.Address, error) {
		safes, err := r.safes.SafesByOwner(ctx, owner)
		if err != nil && !errors.Is(err, safe.ErrNotFound) {
			return nil, err
		}

		if r.store != nil {
			for _, rec := range r.store.Filter(datastore.SafeByChainID(r.dep.ChainID), datastore.SafeByOwner(owner)) {
				for _, a := range rec.Addresses {
					if !slices.Contains(safes, a) {
						safes = append(safes, a)
					}
				}
			}
		}

		return safes, nil
	})
}

// Syndicate resolves the Syndicate of ident. It returns ErrNotSyndicate when the point is not
// held by a Safe.
func (r *Resolver) Syndicate(ctx context.Context, ident urbit.Identity) (Syndicate, error) {
	if err := r.ready(true); err != nil {
		return Syndicate{}, err
	}

	tba, err := r.TokenboundAccount(ctx, ident)
	if err != nil {
		return Syndicate{}, err
	}

	safeAcct, err := r.SafeAccount(ctx, tba.Owner)
	if errors.Is(err, safe.ErrNotFound) {
		return Syndicate{}, fmt.Errorf("%w: %s is held by %s", ErrNotSyndicate, ident, tba.Owner.Hex())
	}
	if err != nil {
		return Syndicate{}, err
	}

	return Syndicate{TokenboundAccount: tba, Safe: safeAcct}, nil
}

func (r *Resolver) proposalDecoder() *proposal.Decoder {
	if r.decoder != nil {
		return r.decoder
	}
	if r.tokens == nil {
		return proposal.NewDecoder(r.dep.ChainID, nil, r.lggr)
	}

	return proposal.NewDecoder(r.dep.ChainID, r.tokens, r.lggr)
}

func permanentIfNotFound(err error) error {
	if errors.Is(err, safe.ErrNotFound) {
		return retry.Unrecoverable(err)
	}

	return err
}

func call[T any](ctx context.Context, c *bind.BoundContract, method string, out *T, args ...any) error {
	var res []any
	if err := c.Call(&bind.CallOpts{Context: ctx}, &res, method, args...); err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
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
