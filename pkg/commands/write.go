package commands

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/tocwex/slab-sub000/account"
	"github.com/tocwex/slab-sub000/mutation"
	"github.com/tocwex/slab-sub000/pkg/commands/flags"
	"github.com/tocwex/slab-sub000/pkg/commands/text"
	"github.com/tocwex/slab-sub000/querycache"
	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/urbit"
)

var (
	sendLong = text.LongDesc(`
		Sends native currency or an ERC-20 token out of a point's tokenbound account.

		When the connected wallet holds the point the transfer is sent directly. When a Safe the
		wallet co-owns holds it, the transfer is proposed to the Safe and signed by the wallet.
	`)

	sendExample = text.Examples(`
		# Send 0.5 ETH from ~sampel-palnet's account to an ENS name
		slab send ~sampel-palnet vitalik.eth 0.5

		# Send 100 USDC
		slab send ~sampel-palnet 0x1234567890123456789012345678901234567890 100 --token 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48
	`)

	launchExample = text.Examples(`
		slab launch ~sampel-palnet --name "Sampel Palnet" --symbol SAMPEL --supply 1000000 --max-supply 21000000
	`)

	mintExample = text.Examples(`
		# Mint to two recipients in one proposal
		slab mint ~sampel-palnet 0x1111111111111111111111111111111111111111=100 alice.eth=250
	`)
)

// writer loads the App and checks it can write.
func writer(cmd *cobra.Command, cfg Config) (*App, error) {
	app, err := load(cmd, cfg)
	if err != nil {
		return nil, err
	}
	if app.Writer == nil {
		return nil, errNoWallet
	}

	return app, nil
}

// runWrite runs a write on the point of args[0] and prints its result.
func runWrite(cmd *cobra.Command, cfg Config, args []string, write func(ctx context.Context, app *App, ident urbit.Identity) (mutation.Result, error)) error {
	ident, err := parseIdentity(args[0])
	if err != nil {
		return err
	}
	app, err := writer(cmd, cfg)
	if err != nil {
		return err
	}

	res, err := write(cmd.Context(), app, ident)
	if err != nil {
		return err
	}

	return newPrinter(cmd).result(res)
}

func newSendCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "send <point> <recipient> <amount>",
		Short:   "Send tokens from a point's account",
		Long:    sendLong,
		Example: sendExample,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, cfg, args, func(ctx context.Context, app *App, ident urbit.Identity) (mutation.Result, error) {
				t, err := tokenOf(ctx, app, flags.MustString(cmd.Flags().GetString("token")))
				if err != nil {
					return mutation.Result{}, err
				}
				to, err := recipient(ctx, app, args[1])
				if err != nil {
					return mutation.Result{}, err
				}
				amount, err := token.ParseAmount(args[2], t.Decimals)
				if err != nil {
					return mutation.Result{}, err
				}
				cfg.Logger.Infow("sending", "point", ident.String(), "to", to.Hex(), "amount", t.Format(amount))

				return app.Writer.SendTokens(ctx, ident, t, to, amount)
			})
		},
	}
	flags.Token(cmd)

	return cmd
}

func safeTxArgs(args []string) (common.Address, common.Hash, error) {
	addr, err := parseAddress(args[0])
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	hash, err := parseHash(args[1])
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}

	return addr, hash, nil
}

func newSignCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sign <safe> <safe-tx-hash>",
		Short: "Sign a pending Safe proposal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, hash, err := safeTxArgs(args)
			if err != nil {
				return err
			}
			app, err := writer(cmd, cfg)
			if err != nil {
				return err
			}

			res, err := app.Writer.SignProposal(cmd.Context(), addr, hash)
			if err != nil {
				return err
			}

			return newPrinter(cmd).result(res)
		},
	}
}

func newExecuteCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "execute <safe> <safe-tx-hash>",
		Short: "Execute a Safe proposal that has enough signatures",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, hash, err := safeTxArgs(args)
			if err != nil {
				return err
			}
			app, err := writer(cmd, cfg)
			if err != nil {
				return err
			}

			res, err := app.Writer.ExecuteProposal(cmd.Context(), addr, hash)
			if err != nil {
				return err
			}

			return newPrinter(cmd).result(res)
		},
	}
}

type launchFlags struct {
	name           string
	symbol         string
	supply         string
	maxSupply      string
	fee            string
	implementation string
	salt           string
}

func (f launchFlags) input() (mutation.LaunchInput, error) {
	const decimals = 18

	in := mutation.LaunchInput{Name: f.name, Symbol: f.symbol}
	var err error
	if in.InitialSupply, err = token.ParseAmount(f.supply, decimals); err != nil {
		return in, err
	}
	if in.MaxSupply, err = token.ParseAmount(f.maxSupply, decimals); err != nil {
		return in, err
	}
	if in.MaxSupply.Cmp(in.InitialSupply) < 0 {
		return in, errors.New("--max-supply is below --supply")
	}
	if f.fee != "" {
		fee, ok := new(big.Int).SetString(f.fee, 10)
		if !ok {
			return in, fmt.Errorf("invalid --fee %q", f.fee)
		}
		in.ProtocolFee = fee
	}
	if f.implementation != "" {
		if in.Implementation, err = parseAddress(f.implementation); err != nil {
			return in, err
		}
	}
	if in.Salt, err = parseSalt(f.salt); err != nil {
		return in, err
	}

	return in, nil
}

func newLaunchCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "launch <point>",
		Short:   "Launch the Syndicate token of a point",
		Example: launchExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := launchFlags{
				name:           flags.MustString(cmd.Flags().GetString("name")),
				symbol:         flags.MustString(cmd.Flags().GetString("symbol")),
				supply:         flags.MustString(cmd.Flags().GetString("supply")),
				maxSupply:      flags.MustString(cmd.Flags().GetString("max-supply")),
				fee:            flags.MustString(cmd.Flags().GetString("fee")),
				implementation: flags.MustString(cmd.Flags().GetString("implementation")),
				salt:           flags.MustString(cmd.Flags().GetString("salt")),
			}
			in, err := f.input()
			if err != nil {
				return err
			}

			return runWrite(cmd, cfg, args, func(ctx context.Context, app *App, ident urbit.Identity) (mutation.Result, error) {
				return app.Writer.LaunchToken(ctx, ident, in)
			})
		},
	}
	cmd.Flags().String("name", "", "Token name (required)")
	cmd.Flags().String("symbol", "", "Token symbol (required)")
	cmd.Flags().String("supply", "", "Initial supply, minted to the point's account (required)")
	cmd.Flags().String("max-supply", "", "Maximum supply (required)")
	cmd.Flags().String("fee", "", "Protocol fee passed to the deployer, 0 when empty")
	cmd.Flags().String("implementation", "", "Token implementation address, the zero address when empty")
	cmd.Flags().String("salt", "", "Deployment salt, hex")
	for _, f := range []string{"name", "symbol", "supply", "max-supply"} {
		_ = cmd.MarkFlagRequired(f)
	}

	return cmd
}

func newMintCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:     "mint <point> <recipient>=<amount>...",
		Short:   "Mint Syndicate tokens",
		Example: mintExample,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, cfg, args, func(ctx context.Context, app *App, ident urbit.Identity) (mutation.Result, error) {
				decimals := uint8(18)
				if app.Reader != nil {
					tba, err := fetch(cmd, app, querycache.Key("point", ident.ID), func(ctx context.Context) (account.TokenboundAccount, error) {
						return app.Reader.TokenboundAccount(ctx, ident)
					})
					if err != nil {
						return mutation.Result{}, err
					}
					if tba.LaunchedToken == nil {
						return mutation.Result{}, mutation.ErrNoLaunchedToken
					}
					decimals = tba.LaunchedToken.Decimals
				}
				recipients, err := parseRecipients(ctx, app, args[1:], decimals)
				if err != nil {
					return mutation.Result{}, err
				}

				return app.Writer.Mint(ctx, ident, recipients)
			})
		},
	}
}

func newDissolveCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "dissolve <point>",
		Short: "Dissolve the Syndicate token of a point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, cfg, args, func(ctx context.Context, app *App, ident urbit.Identity) (mutation.Result, error) {
				return app.Writer.Dissolve(ctx, ident)
			})
		},
	}
}

func newTerminateCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terminate <point> <recipient>",
		Short: "Transfer a point out of its Safe, ending the Syndicate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reset := flags.MustBool(cmd.Flags().GetBool("reset"))

			return runWrite(cmd, cfg, args, func(ctx context.Context, app *App, ident urbit.Identity) (mutation.Result, error) {
				to, err := recipient(ctx, app, args[1])
				if err != nil {
					return mutation.Result{}, err
				}

				return app.Writer.Terminate(ctx, ident, to, reset)
			})
		},
	}
	cmd.Flags().Bool("reset", false, "Clear the point's keys and proxies on transfer")

	return cmd
}

func newAccountCreateCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "create <point>",
		Short: "Deploy the tokenbound account of a point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, cfg, args, func(ctx context.Context, app *App, ident urbit.Identity) (mutation.Result, error) {
				return app.Writer.CreateAccount(ctx, ident)
			})
		},
	}
}

func newSafeCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "safe",
		Short: "Safe multisig commands",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Deploy a Safe owned by the connected account and the given owners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw := flags.MustStringSlice(cmd.Flags().GetStringSlice("owner"))
			threshold := flags.MustUint64(cmd.Flags().GetUint64("threshold"))
			saltArg := flags.MustString(cmd.Flags().GetString("salt"))

			app, err := writer(cmd, cfg)
			if err != nil {
				return err
			}
			owners := make([]common.Address, 0, len(raw))
			for _, o := range raw {
				addr, err := recipient(cmd.Context(), app, o)
				if err != nil {
					return err
				}
				owners = append(owners, addr)
			}
			var salt *big.Int
			if saltArg != "" {
				var ok bool
				if salt, ok = new(big.Int).SetString(saltArg, 0); !ok {
					return fmt.Errorf("invalid --salt %q", saltArg)
				}
			}

			res, err := app.Writer.CreateSafe(cmd.Context(), owners, threshold, salt)
			if err != nil {
				return err
			}
			if err = save(app); err != nil {
				return err
			}

			return newPrinter(cmd).result(res)
		},
	}
	create.Flags().StringSlice("owner", nil, "Co-owner address or ENS name, repeatable")
	create.Flags().Uint64("threshold", 1, "Signatures required to execute")
	create.Flags().String("salt", "", "Salt nonce, 0 when empty")

	list := &cobra.Command{
		Use:   "list [owner]",
		Short: "List the Safes an address owns, the connected account by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := reader(cmd, cfg)
			if err != nil {
				return err
			}
			addr, err := owner(app, args)
			if err != nil {
				return err
			}

			safes, err := app.Reader.SafesOf(cmd.Context(), addr)
			if err != nil {
				return fmt.Errorf("failed to list safes of %s: %w", addr.Hex(), err)
			}
			p := newPrinter(cmd)
			if ok, err := p.JSON(safes); ok {
				return err
			}
			for _, s := range safes {
				p.line("%s", s.Hex())
			}

			return nil
		},
	}

	cmd.AddCommand(create, list)

	return cmd
}
