// Package mutation performs slab's writes: account and Safe creation, transfers, token launches,
// mints, dissolutions, terminations and the Safe signing flow.
//
// A write made for a point goes straight from the connected wallet when the wallet holds the
// point, and is proposed to the owning Safe otherwise. Every write runs once through the query
// cache's Mutate, so cached reads are restored when it fails and invalidated when it settles.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocwex/slab-sub000/account"
	"github.com/tocwex/slab-sub000/contracts"
	"github.com/tocwex/slab-sub000/operations"
	"github.com/tocwex/slab-sub000/pkg/logger"
	"github.com/tocwex/slab-sub000/proposal"
	"github.com/tocwex/slab-sub000/querycache"
	"github.com/tocwex/slab-sub000/safe"
	"github.com/tocwex/slab-sub000/urbit"
	"github.com/tocwex/slab-sub000/wallet"
)

var (
	// ErrNotOwner is returned when the connected account neither holds the point nor signs for
	// the Safe holding it.
	ErrNotOwner = errors.New("connected account does not control the point")
	// ErrNotSyndicate is returned when a Safe action targets an address that is not a Safe.
	ErrNotSyndicate = account.ErrNotSyndicate
	// ErrNotConfigured is returned when a client the mutation needs is missing.
	ErrNotConfigured = errors.New("mutation client not configured")
	// ErrWrongChain is returned when the wallet is on another chain than the deployment.
	ErrWrongChain = errors.New("wallet is connected to a different chain")
	// ErrNotDeployed is returned for writes through a tokenbound account that does not exist yet.
	ErrNotDeployed = errors.New("tokenbound account is not deployed")
	// ErrAlreadyDeployed is returned when creating an account that exists.
	ErrAlreadyDeployed = errors.New("tokenbound account is already deployed")
	// ErrNoLaunchedToken is returned for mints and dissolutions of a point without a token.
	ErrNoLaunchedToken = errors.New("point has no launched token")
	// ErrUnsupported is returned when the chain lacks a contract the write needs.
	ErrUnsupported = errors.New("not supported on this chain")
	// ErrAlreadyConfirmed is returned when the connected owner already signed the proposal.
	ErrAlreadyConfirmed = errors.New("proposal already confirmed by the connected account")
	// ErrAlreadyExecuted is returned for proposals that were executed.
	ErrAlreadyExecuted = errors.New("proposal already executed")
	// ErrNotNext is returned when executing a proposal whose nonce is not the Safe's nonce.
	ErrNotNext = errors.New("proposal is not next in the safe queue")
)

// Mode is how a write reached the chain.
type Mode string

const (
	ModeDirect    Mode = "direct"
	ModeProposed  Mode = "proposed"
	ModeConfirmed Mode = "confirmed"
	ModeExecuted  Mode = "executed"
	ModeDeployed  Mode = "deployed"
)

// Result describes a settled write.
type Result struct {
	Mode     Mode
	ReportID string
	// TxHash is set for writes sent from the wallet.
	TxHash common.Hash
	// Safe, SafeTxHash and Nonce are set for Safe proposals, confirmations and executions.
	Safe       common.Address
	SafeTxHash common.Hash
	Nonce      uint64
	// Address is the contract a deployment created.
	Address common.Address
}

// Config wires a Mutator. Wallet and Accounts are required.
type Config struct {
	Wallet   wallet.Wallet
	Accounts *account.Resolver
	Safes    SafeService
	Deployer *safe.Deployer
	// Reporter records every write. Defaults to memory.
	Reporter operations.Reporter
	Lggr     logger.Logger
}

// Mutator performs writes for the connected wallet.
type Mutator struct {
	wallet   wallet.Wallet
	accounts *account.Resolver
	deps     Deps
	reporter operations.Reporter
	lggr     logger.Logger
}

// New creates a Mutator.
func New(cfg Config) *Mutator {
	lggr := cfg.Lggr
	if lggr == nil {
		lggr = logger.Nop()
	}
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = operations.NewMemoryReporter()
	}

	return &Mutator{
		wallet:   cfg.Wallet,
		accounts: cfg.Accounts,
		deps:     Deps{Wallet: cfg.Wallet, Safes: cfg.Safes, Deployer: cfg.Deployer},
		reporter: reporter,
		lggr:     lggr.Named("Mutator"),
	}
}

func (m *Mutator) bundle(ctx context.Context) operations.Bundle {
	return operations.NewBundle(func() context.Context { return ctx }, m.lggr, m.reporter)
}

func (m *Mutator) deployment() contracts.Deployment {
	return m.accounts.Deployment()
}

func (m *Mutator) cache() *querycache.Cache {
	return m.accounts.Cache()
}

// connected checks the session and returns the connected account. It makes no network calls.
func (m *Mutator) connected(needSafes bool) (common.Address, error) {
	if m.wallet == nil || m.accounts == nil || m.cache() == nil {
		return common.Address{}, fmt.Errorf("%w: wallet and account resolver are required", ErrNotConfigured)
	}
	if needSafes && m.deps.Safes == nil {
		return common.Address{}, fmt.Errorf("%w: no safe transaction service", ErrNotConfigured)
	}
	acct, err := m.wallet.Account()
	if err != nil {
		return common.Address{}, err
	}
	if chainID := m.deployment().ChainID; chainID != 0 && m.wallet.ChainID() != chainID {
		return common.Address{}, fmt.Errorf("%w: wallet on %d, deployment on %d", ErrWrongChain, m.wallet.ChainID(), chainID)
	}

	return acct, nil
}

// route is where a write made for a point goes.
type route struct {
	sender common.Address
	// holder is the owner of the point: the sender itself or a Safe the sender signs for.
	holder common.Address
	safe   *account.SafeAccount
}

func (r route) mode() Mode {
	if r.safe != nil {
		return ModeProposed
	}

	return ModeDirect
}

// routeFor decides how the connected account acts for ident.
func (m *Mutator) routeFor(ctx context.Context, ident urbit.Identity) (route, error) {
	sender, err := m.connected(false)
	if err != nil {
		return route{}, err
	}

	holder, err := m.accounts.OwnerOf(ctx, ident.ID)
	if err != nil {
		return route{}, fmt.Errorf("failed to read owner of %s: %w", ident, err)
	}
	if holder == sender {
		return route{sender: sender, holder: holder}, nil
	}
	if m.deps.Safes == nil {
		return route{}, fmt.Errorf("%w: %s is held by %s", ErrNotOwner, ident, holder.Hex())
	}

	sa, err := m.accounts.SafeAccount(ctx, holder)
	if errors.Is(err, safe.ErrNotFound) {
		return route{}, fmt.Errorf("%w: %s is held by %s", ErrNotOwner, ident, holder.Hex())
	}
	if err != nil {
		return route{}, err
	}
	if !sa.IsOwner(sender) {
		return route{}, fmt.Errorf("%w: %s is not an owner of %s", ErrNotOwner, sender.Hex(), holder.Hex())
	}

	return route{sender: sender, holder: holder, safe: &sa}, nil
}

// submit sends call directly or proposes it to the Safe of r, inside a cache mutation.
func (m *Mutator) submit(ctx context.Context, name string, r route, call proposal.Call, keys []string, optimistic func(*querycache.Cache)) (Result, error) {
	if r.safe != nil {
		keys = append(keys, account.SafeKey(r.holder))
	}

	var res Result
	err := m.cache().Mutate(ctx, querycache.Mutation{
		Name:       name,
		Keys:       keys,
		Optimistic: optimistic,
		Run: func(ctx context.Context) error {
			var err error
			if r.safe == nil {
				res, err = m.send(ctx, call.To, call.Value, call.Data)
			} else {
				res, err = m.propose(ctx, r, call)
			}

			return err
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s failed: %w", name, err)
	}
	m.lggr.Infow("mutation settled", "mutation", name, "mode", res.Mode, "report_id", res.ReportID)

	return res, nil
}

func (m *Mutator) send(ctx context.Context, to common.Address, value *big.Int, data []byte) (Result, error) {
	report, err := operations.ExecuteOperation(m.bundle(ctx), SendTransaction, m.deps, SendInput{To: to, Value: value, Data: data})
	if err != nil {
		return Result{}, err
	}

	return Result{Mode: ModeDirect, ReportID: report.ID, TxHash: report.Output.TxHash}, nil
}

func (m *Mutator) propose(ctx context.Context, r route, call proposal.Call) (Result, error) {
	nonce := r.safe.NextNonce()
	tx := call.SafeTransaction(nonce)
	hash, err := tx.Hash(m.wallet.ChainID(), r.holder)
	if err != nil {
		return Result{}, err
	}
	sig, err := safe.SignHash(m.wallet.SignHash, hash)
	if err != nil {
		return Result{}, err
	}

	report, err := operations.ExecuteOperation(m.bundle(ctx), ProposeTransaction, m.deps, ProposeInput{
		Safe:    r.holder,
		Request: safe.NewProposeRequest(tx, hash, r.sender, sig),
	})
	if err != nil {
		return Result{}, err
	}

	return Result{Mode: ModeProposed, ReportID: report.ID, Safe: r.holder, SafeTxHash: hash, Nonce: nonce}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, safe.ErrNotFound)
}
