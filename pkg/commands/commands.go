// Package commands builds the slab command line.
//
// The commands never dial anything on construction. Each command loads the App it needs through
// the configured Loader when it runs, so help and flag errors work offline:
//
//	root, err := commands.NewRootCommand(commands.Config{
//	    Logger: lggr,
//	    Load:   loadApp,
//	})
//	if err != nil {
//	    return err
//	}
//	return root.ExecuteContext(ctx)
package commands

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/tocwex/slab-sub000/account"
	"github.com/tocwex/slab-sub000/datastore"
	"github.com/tocwex/slab-sub000/mutation"
	"github.com/tocwex/slab-sub000/operations"
	"github.com/tocwex/slab-sub000/pkg/commands/flags"
	"github.com/tocwex/slab-sub000/pkg/commands/text"
	"github.com/tocwex/slab-sub000/pkg/logger"
	"github.com/tocwex/slab-sub000/proposal"
	"github.com/tocwex/slab-sub000/querycache"
	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/urbit"
	"github.com/tocwex/slab-sub000/wallet"
)

// Reader is the query side rendered by the commands. *account.Resolver implements it.
type Reader interface {
	PointsOf(ctx context.Context, owner common.Address) ([]urbit.Identity, error)
	TokenboundAccount(ctx context.Context, ident urbit.Identity) (account.TokenboundAccount, error)
	Syndicate(ctx context.Context, ident urbit.Identity) (account.Syndicate, error)
	SafeAccount(ctx context.Context, addr common.Address) (account.SafeAccount, error)
	SafesOf(ctx context.Context, owner common.Address) ([]common.Address, error)
	Holdings(ctx context.Context, addr common.Address, extra ...*token.Token) (map[common.Address]account.Holding, error)
}

// Writer is the write side. *mutation.Mutator implements it.
type Writer interface {
	CreateAccount(ctx context.Context, ident urbit.Identity) (mutation.Result, error)
	CreateSafe(ctx context.Context, owners []common.Address, threshold uint64, saltNonce *big.Int) (mutation.Result, error)
	SendTokens(ctx context.Context, ident urbit.Identity, t token.Token, recipient common.Address, amount *big.Int) (mutation.Result, error)
	LaunchToken(ctx context.Context, ident urbit.Identity, in mutation.LaunchInput) (mutation.Result, error)
	Mint(ctx context.Context, ident urbit.Identity, recipients []proposal.Recipient) (mutation.Result, error)
	Dissolve(ctx context.Context, ident urbit.Identity) (mutation.Result, error)
	Terminate(ctx context.Context, ident urbit.Identity, recipient common.Address, reset bool) (mutation.Result, error)
	SignProposal(ctx context.Context, addr common.Address, safeTxHash common.Hash) (mutation.Result, error)
	ExecuteProposal(ctx context.Context, addr common.Address, safeTxHash common.Hash) (mutation.Result, error)
}

// Decoder classifies calldata. *proposal.Decoder implements it.
type Decoder interface {
	Decode(ctx context.Context, tx proposal.Tx) proposal.Intent
}

// TokenBook resolves and remembers token metadata. *token.Resolver implements it.
type TokenBook interface {
	Resolve(ctx context.Context, address common.Address) (token.Token, error)
	Remember(t token.Token) error
	Known() []token.Token
}

// RecipientResolver turns an address or ENS name into an address. *ens.Resolver implements it.
type RecipientResolver interface {
	ResolveRecipient(ctx context.Context, s string) (common.Address, error)
}

// Saver persists local state after a command changed it.
type Saver interface {
	Save() error
	Seal() datastore.DataStore
}

// App is everything a command may touch. Fields a command does not use may be nil.
type App struct {
	ChainID    uint64
	Wallet     wallet.Wallet
	Reader     Reader
	Writer     Writer
	Decoder    Decoder
	Tokens     TokenBook
	Recipients RecipientResolver
	// Cache wraps reads into loading, error or success states.
	Cache      *querycache.Cache
	History    operations.Reporter
	Operations *operations.Registry
	Store      Saver
}

// LoadOptions are the root flags a Loader needs.
type LoadOptions struct {
	ConfigPath string
}

// Loader builds the App for a command run.
type Loader func(ctx context.Context, opts LoadOptions) (*App, error)

// Config holds the configuration of the command tree.
type Config struct {
	// Logger is the logger of the commands. Required.
	Logger logger.Logger

	// Load builds the App. Required.
	Load Loader

	// Settings renders the effective configuration for the config command. Optional.
	Settings func(configPath string) (string, error)

	// Version is printed by --version.
	Version string
}

// Validate checks that all required configuration fields are set.
func (c Config) Validate() error {
	var missing []string

	if c.Logger == nil {
		missing = append(missing, "Logger")
	}
	if c.Load == nil {
		missing = append(missing, "Load")
	}

	if len(missing) > 0 {
		return errors.New("commands.Config: missing required fields: " + strings.Join(missing, ", "))
	}

	return nil
}

var (
	rootLong = text.LongDesc(`
		slab manages Urbit points as on-chain accounts.

		A point owns an ERC-6551 tokenbound account. A point held by a Safe multisig is a Syndicate:
		its writes become Safe proposals the other owners sign and execute. Writes for a point held
		by the connected wallet are sent directly.
	`)
)

// NewRootCommand creates the slab command with all subcommands.
func NewRootCommand(cfg Config) (*cobra.Command, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cmd := &cobra.Command{
		Use:           "slab",
		Short:         "Urbit point accounts and Syndicates",
		Long:          rootLong,
		Version:       cfg.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.Config(cmd)
	flags.JSON(cmd)

	cmd.AddCommand(
		newPointCmd(cfg),
		newPointsCmd(cfg),
		newAccountCmd(cfg),
		newSyndicateCmd(cfg),
		newProposalsCmd(cfg),
		newDecodeCmd(cfg),
		newSendCmd(cfg),
		newSignCmd(cfg),
		newExecuteCmd(cfg),
		newLaunchCmd(cfg),
		newMintCmd(cfg),
		newDissolveCmd(cfg),
		newTerminateCmd(cfg),
		newSafeCmd(cfg),
		newTokensCmd(cfg),
		newOperationsCmd(cfg),
		newHistoryCmd(cfg),
		newConfigCmd(cfg),
		newDatastoreCmd(cfg),
	)

	return cmd, nil
}

// load builds the App of a running command.
func load(cmd *cobra.Command, cfg Config) (*App, error) {
	return cfg.Load(cmd.Context(), LoadOptions{
		ConfigPath: flags.MustString(cmd.Flags().GetString("config")),
	})
}

// fetch runs a read through the App's cache and reports its state.
func fetch[T any](cmd *cobra.Command, app *App, key string, fn func(context.Context) (T, error)) (T, error) {
	ctx := cmd.Context()
	if app.Cache == nil {
		return fn(ctx)
	}

	res := querycache.Load(ctx, app.Cache, querycache.Key("cli", key), fn)
	if res.State == querycache.StateError {
		var zero T
		return zero, res.Err
	}

	return res.Value, nil
}
