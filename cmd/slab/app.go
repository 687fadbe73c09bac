package main

import (
	"context"
	"fmt"

	"github.com/tocwex/slab-sub000/account"
	"github.com/tocwex/slab-sub000/chain/evm"
	"github.com/tocwex/slab-sub000/chain/evm/provider"
	"github.com/tocwex/slab-sub000/config"
	"github.com/tocwex/slab-sub000/datastore"
	"github.com/tocwex/slab-sub000/ens"
	"github.com/tocwex/slab-sub000/mutation"
	"github.com/tocwex/slab-sub000/operations"
	"github.com/tocwex/slab-sub000/pkg/commands"
	"github.com/tocwex/slab-sub000/proposal"
	"github.com/tocwex/slab-sub000/querycache"
	"github.com/tocwex/slab-sub000/safe"
	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/wallet"
)

// settings renders the effective configuration at path.
func settings(path string) (string, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return "", err
	}

	return cfg.YAML()
}

// loadApp connects to the configured chain and wires the resolvers and the mutator.
func loadApp(ctx context.Context, opts commands.LoadOptions) (*commands.App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	lggr, err := cfg.Log.Logger()
	if err != nil {
		return nil, err
	}
	dep, err := cfg.Deployment()
	if err != nil {
		return nil, err
	}
	rpcs, err := cfg.Chain.Endpoints()
	if err != nil {
		return nil, err
	}

	chain, err := provider.NewRPCChainProvider(cfg.Chain.ChainID, provider.RPCChainProviderConfig{
		Signer:         cfg.Wallet.Signer(),
		RPCs:           rpcs,
		ConfirmFunctor: provider.ConfirmFuncGeth(cfg.Tx.ConfirmTimeout, provider.WithTickInterval(cfg.Tx.Tick)),
		Logger:         lggr,
	}).Initialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", evm.ChainName(cfg.Chain.ChainID), err)
	}
	session := wallet.NewSession(chain, lggr)

	store, err := datastore.OpenFileStore(cfg.Datastore.Path)
	if err != nil {
		return nil, err
	}
	cache := querycache.New(cfg.Cache.QueryCache(), lggr)
	tokens := token.NewResolver(cfg.Chain.ChainID, chain.Client, store.Tokens(), lggr)
	decoder := proposal.NewDecoder(cfg.Chain.ChainID, tokens, lggr)
	history := operations.NewFileReporter(cfg.Datastore.History)

	accCfg := account.Config{
		Deployment: dep,
		Caller:     chain.Client,
		Tokens:     tokens,
		Decoder:    decoder,
		Cache:      cache,
		Store:      store.Safes(),
		Lggr:       lggr,
	}
	mutCfg := mutation.Config{Wallet: session, Reporter: history, Lggr: lggr}

	// without a transaction service slab still serves points held directly
	if url, serr := cfg.SafeServiceURL(); serr == nil {
		client := safe.NewClient(url, lggr, cfg.Safe.ClientOptions()...)
		accCfg.Safes = client
		mutCfg.Safes = client
	} else {
		lggr.Warnw("Safe features disabled", "err", serr)
	}
	accounts := account.NewResolver(accCfg)
	mutCfg.Accounts = accounts

	app := &commands.App{
		ChainID:    cfg.Chain.ChainID,
		Wallet:     session,
		Reader:     accounts,
		Decoder:    decoder,
		Tokens:     tokens,
		Recipients: ens.NewResolver(dep.ENSRegistry, chain.Client, cache),
		Cache:      cache,
		History:    history,
		Operations: mutation.Registry(),
		Store:      store,
	}
	if session.Connected() {
		mutCfg.Deployer = safe.NewDeployer(session, dep, store.Safes(), lggr)
		app.Writer = mutation.New(mutCfg)
	}

	return app, nil
}
