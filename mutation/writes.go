package mutation

import (
	"context"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocwex/slab-sub000/account"
	"github.com/tocwex/slab-sub000/operations"
	"github.com/tocwex/slab-sub000/proposal"
	"github.com/tocwex/slab-sub000/querycache"
	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/tokenbound"
	"github.com/tocwex/slab-sub000/urbit"
)

// CreateAccount deploys the tokenbound account of ident through the ERC-6551 registry. Anyone
// may deploy an account; it is always controlled by the holder of the point.
func (m *Mutator) CreateAccount(ctx context.Context, ident urbit.Identity) (Result, error) {
	if _, err := m.connected(false); err != nil {
		return Result{}, err
	}
	addr, err := m.accounts.TokenboundAddress(ident)
	if err != nil {
		return Result{}, err
	}
	deployed, err := m.accounts.IsDeployed(ctx, addr)
	if err != nil {
		return Result{}, err
	}
	if deployed {
		return Result{}, fmt.Errorf("%w: %s", ErrAlreadyDeployed, addr.Hex())
	}

	params := tokenbound.ParamsFor(m.deployment(), ident.ID)
	data, err := tokenbound.CreateAccount(params)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = m.cache().Mutate(ctx, querycache.Mutation{
		Name: "create-account",
		Keys: []string{account.DeployedKey(addr), account.TokenboundKey(ident.ID)},
		Optimistic: func(c *querycache.Cache) {
			c.Set(account.DeployedKey(addr), true)
		},
		Run: func(ctx context.Context) error {
			res, err = m.send(ctx, params.Registry, nil, data)
			return err
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("create-account failed: %w", err)
	}
	res.Mode, res.Address = ModeDeployed, addr

	return res, nil
}

// CreateSafe deploys a Safe owned by owners and the connected account, requiring threshold
// signatures.
func (m *Mutator) CreateSafe(ctx context.Context, owners []common.Address, threshold uint64, saltNonce *big.Int) (Result, error) {
	sender, err := m.connected(false)
	if err != nil {
		return Result{}, err
	}
	if m.deps.Deployer == nil {
		return Result{}, fmt.Errorf("%w: no safe deployer", ErrNotConfigured)
	}
	if !slices.Contains(owners, sender) {
		owners = append(slices.Clone(owners), sender)
	}
	if saltNonce == nil {
		saltNonce = new(big.Int)
	}

	keys := make([]string, len(owners))
	for i, o := range owners {
		keys[i] = account.SafesOfKey(o)
	}

	var res Result
	err = m.cache().Mutate(ctx, querycache.Mutation{
		Name: "create-safe",
		Keys: keys,
		Run: func(ctx context.Context) error {
			report, err := operations.ExecuteOperation(m.bundle(ctx), DeploySafe, m.deps, DeploySafeInput{
				Owners: owners, Threshold: threshold, SaltNonce: saltNonce,
			})
			if err != nil {
				return err
			}
			res = Result{Mode: ModeDeployed, ReportID: report.ID, Address: report.Output}

			return nil
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("create-safe failed: %w", err)
	}

	return res, nil
}

// tokenboundFor resolves the route and the deployed tokenbound account of ident.
func (m *Mutator) tokenboundFor(ctx context.Context, ident urbit.Identity) (route, common.Address, error) {
	r, err := m.routeFor(ctx, ident)
	if err != nil {
		return route{}, common.Address{}, err
	}
	addr, err := m.accounts.TokenboundAddress(ident)
	if err != nil {
		return route{}, common.Address{}, err
	}
	deployed, err := m.accounts.IsDeployed(ctx, addr)
	if err != nil {
		return route{}, common.Address{}, err
	}
	if !deployed {
		return route{}, common.Address{}, fmt.Errorf("%w: %s", ErrNotDeployed, addr.Hex())
	}

	return r, addr, nil
}

// SendTokens transfers amount of t from the tokenbound account of ident to recipient.
func (m *Mutator) SendTokens(ctx context.Context, ident urbit.Identity, t token.Token, recipient common.Address, amount *big.Int) (Result, error) {
	r, tba, err := m.tokenboundFor(ctx, ident)
	if err != nil {
		return Result{}, err
	}
	call, err := proposal.EncodeTransfer(tba, t, recipient, amount)
	if err != nil {
		return Result{}, err
	}

	var optimistic func(*querycache.Cache)
	if r.mode() == ModeDirect {
		optimistic = func(c *querycache.Cache) { debit(c, tba, t.Address, amount) }
	}

	return m.submit(ctx, "send", r, call,
		[]string{account.HoldingsKey(tba), account.HoldingsKey(recipient)}, optimistic)
}

// debit lowers a cached balance by amount.
func debit(c *querycache.Cache, holder, tokenAddr common.Address, amount *big.Int) {
	holdings, ok := querycache.Peek[map[common.Address]account.Holding](c, account.HoldingsKey(holder))
	if !ok {
		return
	}
	h, ok := holdings[tokenAddr]
	if !ok || h.Balance == nil {
		return
	}

	next := make(map[common.Address]account.Holding, len(holdings))
	for k, v := range holdings {
		next[k] = v
	}
	bal := new(big.Int).Sub(h.Balance, amount)
	if bal.Sign() < 0 {
		bal.SetInt64(0)
	}
	next[tokenAddr] = account.Holding{Token: h.Token, Balance: bal}
	c.Set(account.HoldingsKey(holder), next)
}

// LaunchInput describes a Syndicate token launch. The point is taken from the launching identity.
type LaunchInput struct {
	Name          string
	Symbol        string
	InitialSupply *big.Int
	MaxSupply     *big.Int
	// ProtocolFee is sent as 0 when nil.
	ProtocolFee *big.Int
	// Implementation and Salt are passed to the deployer as given.
	Implementation common.Address
	Salt           [32]byte
}

// LaunchToken deploys the Syndicate token of ident through the Syndicate deployer.
func (m *Mutator) LaunchToken(ctx context.Context, ident urbit.Identity, in LaunchInput) (Result, error) {
	if _, err := m.connected(false); err != nil {
		return Result{}, err
	}
	deployer := m.deployment().SyndicateDeployer
	if deployer == (common.Address{}) {
		return Result{}, fmt.Errorf("%w: no syndicate deployer", ErrUnsupported)
	}

	r, tba, err := m.tokenboundFor(ctx, ident)
	if err != nil {
		return Result{}, err
	}
	launched, err := m.accounts.LaunchedToken(ctx, ident.ID)
	if err != nil {
		return Result{}, err
	}
	if launched != nil {
		return Result{}, fmt.Errorf("%w: %s already launched %s", proposal.ErrInvalidArgs, ident, launched.Label())
	}

	call, err := proposal.EncodeLaunch(tba, deployer, proposal.LaunchParams{
		Implementation: in.Implementation,
		Salt:           in.Salt,
		InitialSupply:  in.InitialSupply,
		MaxSupply:      in.MaxSupply,
		Point:          ident.ID,
		ProtocolFee:    in.ProtocolFee,
		Name:           in.Name,
		Symbol:         in.Symbol,
	})
	if err != nil {
		return Result{}, err
	}

	return m.submit(ctx, "launch", r, call,
		[]string{account.LaunchedKey(ident.ID), account.HoldingsKey(tba)}, nil)
}

// launchedFor resolves the route, tokenbound account and launched token of ident.
func (m *Mutator) launchedFor(ctx context.Context, ident urbit.Identity) (route, common.Address, token.Token, error) {
	r, tba, err := m.tokenboundFor(ctx, ident)
	if err != nil {
		return route{}, common.Address{}, token.Token{}, err
	}
	launched, err := m.accounts.LaunchedToken(ctx, ident.ID)
	if err != nil {
		return route{}, common.Address{}, token.Token{}, err
	}
	if launched == nil {
		return route{}, common.Address{}, token.Token{}, fmt.Errorf("%w: %s", ErrNoLaunchedToken, ident)
	}

	return r, tba, *launched, nil
}

// Mint mints the launched token of ident to recipients, batching when there is more than one.
func (m *Mutator) Mint(ctx context.Context, ident urbit.Identity, recipients []proposal.Recipient) (Result, error) {
	if len(recipients) == 0 {
		return Result{}, fmt.Errorf("%w: no recipients", proposal.ErrInvalidArgs)
	}
	r, tba, launched, err := m.launchedFor(ctx, ident)
	if err != nil {
		return Result{}, err
	}

	var call proposal.Call
	if len(recipients) == 1 {
		call, err = proposal.EncodeMint(tba, launched.Address, recipients[0].To, recipients[0].Amount)
	} else {
		call, err = proposal.EncodeBatchMint(tba, launched.Address, recipients)
	}
	if err != nil {
		return Result{}, err
	}

	keys := []string{account.LaunchedKey(ident.ID)}
	for _, rc := range recipients {
		keys = append(keys, account.HoldingsKey(rc.To))
	}

	return m.submit(ctx, "mint", r, call, keys, nil)
}

// Dissolve dissolves the launched token of ident.
func (m *Mutator) Dissolve(ctx context.Context, ident urbit.Identity) (Result, error) {
	r, tba, launched, err := m.launchedFor(ctx, ident)
	if err != nil {
		return Result{}, err
	}
	call, err := proposal.EncodeDissolve(tba, launched.Address)
	if err != nil {
		return Result{}, err
	}

	return m.submit(ctx, "dissolve", r, call,
		[]string{account.LaunchedKey(ident.ID), account.HoldingsKey(tba)}, nil)
}

// Terminate transfers ident out of its holder to recipient, optionally resetting its keys.
func (m *Mutator) Terminate(ctx context.Context, ident urbit.Identity, recipient common.Address, reset bool) (Result, error) {
	point, ok := ident.Uint32()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", account.ErrNoTokenboundID, ident)
	}
	r, err := m.routeFor(ctx, ident)
	if err != nil {
		return Result{}, err
	}
	call, err := proposal.EncodeTerminate(m.deployment().Ecliptic, point, recipient, reset)
	if err != nil {
		return Result{}, err
	}

	var optimistic func(*querycache.Cache)
	if r.mode() == ModeDirect {
		optimistic = func(c *querycache.Cache) { c.Set(account.OwnerKey(ident.ID), recipient) }
	}

	return m.submit(ctx, "terminate", r, call, []string{
		account.OwnerKey(ident.ID),
		account.TokenboundKey(ident.ID),
		account.PointsKey(r.holder),
		account.PointsKey(recipient),
	}, optimistic)
}
