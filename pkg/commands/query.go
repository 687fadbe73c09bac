package commands

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/tocwex/slab-sub000/account"
	"github.com/tocwex/slab-sub000/pkg/commands/flags"
	"github.com/tocwex/slab-sub000/pkg/commands/text"
	"github.com/tocwex/slab-sub000/proposal"
	"github.com/tocwex/slab-sub000/querycache"
	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/urbit"
)

var errNoChain = errors.New("no chain connection configured")

var (
	pointExample = text.Examples(`
		# Show ~sampel-palnet and its tokenbound account
		slab point ~sampel-palnet

		# Points can be given by number
		slab point 256 --json
	`)

	syndicateLong = text.LongDesc(`
		Shows a Syndicate: a point held by a Safe multisig. Lists the Safe's owners, its
		threshold, the Syndicate token and the pending proposals with what each one does.
	`)
)

type holdingJSON struct {
	Token   token.Token `json:"token"`
	Balance string      `json:"balance"`
}

type pointJSON struct {
	Point         urbit.Identity `json:"point"`
	Parent        urbit.Identity `json:"parent"`
	Owner         common.Address `json:"owner"`
	Account       common.Address `json:"account"`
	Deployed      bool           `json:"deployed"`
	LaunchedToken *token.Token   `json:"launchedToken,omitempty"`
	Holdings      []holdingJSON  `json:"holdings"`
	Safe          *safeJSON      `json:"safe,omitempty"`
	Proposals     []proposalJSON `json:"proposals,omitempty"`
}

type safeJSON struct {
	Address   common.Address   `json:"address"`
	Owners    []common.Address `json:"owners"`
	Threshold uint64           `json:"threshold"`
	Nonce     uint64           `json:"nonce"`
	NextNonce uint64           `json:"nextNonce"`
}

type proposalJSON struct {
	SafeTxHash    common.Hash `json:"safeTxHash"`
	Nonce         string      `json:"nonce"`
	Kind          string      `json:"kind"`
	Description   string      `json:"description"`
	Confirmations int         `json:"confirmations"`
	Required      int         `json:"required"`
	Executable    bool        `json:"executable"`
}

func holdingsView(h map[common.Address]account.Holding) []holdingJSON {
	out := make([]holdingJSON, 0, len(h))
	for _, addr := range sortedHoldings(h) {
		out = append(out, holdingJSON{Token: h[addr].Token, Balance: token.FormatAmount(h[addr].Balance, h[addr].Token.Decimals)})
	}

	return out
}

func safeView(s account.SafeAccount) *safeJSON {
	return &safeJSON{Address: s.Address, Owners: s.Owners, Threshold: s.Threshold, Nonce: s.Nonce, NextNonce: s.NextNonce()}
}

func proposalsView(ps []proposal.Proposal) []proposalJSON {
	out := make([]proposalJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, proposalJSON{
			SafeTxHash:    p.Tx.SafeTxHash,
			Nonce:         p.Tx.Nonce.Big().String(),
			Kind:          p.Intent.Kind().String(),
			Description:   p.Intent.Describe(),
			Confirmations: p.Confirmations,
			Required:      p.Required,
			Executable:    p.Executable,
		})
	}

	return out
}

func pointView(a account.TokenboundAccount) pointJSON {
	return pointJSON{
		Point:         a.Identity,
		Parent:        a.Identity.Parent(),
		Owner:         a.Owner,
		Account:       a.Address,
		Deployed:      a.Deployed,
		LaunchedToken: a.LaunchedToken,
		Holdings:      holdingsView(a.Holdings),
	}
}

func pointFields(a account.TokenboundAccount) [][]string {
	launched := "-"
	if a.LaunchedToken != nil {
		launched = fmt.Sprintf("%s (%s)", a.LaunchedToken.Label(), a.LaunchedToken.Address.Hex())
	}

	return [][]string{
		{"Point", fmt.Sprintf("%s (%s)", a.Identity, a.Identity.ID)},
		{"Clan", a.Identity.Clan.String()},
		{"Parent", a.Identity.Parent().String()},
		{"Owner", a.Owner.Hex()},
		{"Account", a.Address.Hex()},
		{"Deployed", yesNo(a.Deployed)},
		{"Token", launched},
	}
}

// reader returns the App's Reader after loading the App.
func reader(cmd *cobra.Command, cfg Config) (*App, error) {
	app, err := load(cmd, cfg)
	if err != nil {
		return nil, err
	}
	if app.Reader == nil {
		return nil, errNoChain
	}

	return app, nil
}

func newPointCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:     "point <point>",
		Short:   "Show a point and its tokenbound account",
		Example: pointExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ident, err := parseIdentity(args[0])
			if err != nil {
				return err
			}
			app, err := reader(cmd, cfg)
			if err != nil {
				return err
			}

			tba, err := fetch(cmd, app, querycache.Key("point", ident.ID), func(ctx context.Context) (account.TokenboundAccount, error) {
				return app.Reader.TokenboundAccount(ctx, ident)
			})
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", ident, err)
			}

			p := newPrinter(cmd)
			if ok, err := p.JSON(pointView(tba)); ok {
				return err
			}
			p.fields(pointFields(tba))
			p.holdings(tba.Holdings)

			return nil
		},
	}
}

func newPointsCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "points [owner]",
		Short: "List the points held by an address, the connected account by default",
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

			points, err := fetch(cmd, app, querycache.Key("points", addr), func(ctx context.Context) ([]urbit.Identity, error) {
				return app.Reader.PointsOf(ctx, addr)
			})
			if err != nil {
				return fmt.Errorf("failed to list points of %s: %w", addr.Hex(), err)
			}

			p := newPrinter(cmd)
			if ok, err := p.JSON(points); ok {
				return err
			}
			if len(points) == 0 {
				p.line("%s holds no points", addr.Hex())
				return nil
			}
			rows := make([][]string, 0, len(points))
			for _, pt := range points {
				rows = append(rows, []string{pt.String(), pt.ID.String(), pt.Clan.String(), pt.Parent().String()})
			}
			p.table([]string{"Point", "Number", "Clan", "Parent"}, rows)

			return nil
		},
	}
}

func newAccountCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account [address]",
		Short: "Show the holdings and Safes of an address, the connected account by default",
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

			holdings, err := fetch(cmd, app, querycache.Key("holdings", addr), func(ctx context.Context) (map[common.Address]account.Holding, error) {
				return app.Reader.Holdings(ctx, addr)
			})
			if err != nil {
				return fmt.Errorf("failed to load holdings of %s: %w", addr.Hex(), err)
			}
			// Safes are optional: reading them needs the transaction service
			safes, serr := fetch(cmd, app, querycache.Key("safes", addr), func(ctx context.Context) ([]common.Address, error) {
				return app.Reader.SafesOf(ctx, addr)
			})

			p := newPrinter(cmd)
			if ok, err := p.JSON(struct {
				Address  common.Address   `json:"address"`
				Holdings []holdingJSON    `json:"holdings"`
				Safes    []common.Address `json:"safes"`
			}{addr, holdingsView(holdings), safes}); ok {
				return err
			}
			p.line("Account %s", addr.Hex())
			p.holdings(holdings)
			switch {
			case serr != nil:
				p.line("safes: %v", serr)
			case len(safes) > 0:
				p.line("Owner of %d Safe(s):", len(safes))
				for _, s := range safes {
					p.line("  %s", s.Hex())
				}
			}

			return nil
		},
	}
	cmd.AddCommand(newAccountCreateCmd(cfg))

	return cmd
}

func newSyndicateCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:     "syndicate <point>",
		Aliases: []string{"pdo"},
		Short:   "Show a Syndicate and its pending proposals",
		Long:    syndicateLong,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ident, err := parseIdentity(args[0])
			if err != nil {
				return err
			}
			app, err := reader(cmd, cfg)
			if err != nil {
				return err
			}

			syn, err := fetch(cmd, app, querycache.Key("syndicate", ident.ID), func(ctx context.Context) (account.Syndicate, error) {
				return app.Reader.Syndicate(ctx, ident)
			})
			if err != nil {
				return fmt.Errorf("failed to load syndicate %s: %w", ident, err)
			}

			p := newPrinter(cmd)
			view := pointView(syn.TokenboundAccount)
			view.Safe = safeView(syn.Safe)
			view.Proposals = proposalsView(syn.Safe.Proposals)
			if ok, err := p.JSON(view); ok {
				return err
			}
			p.fields(append(pointFields(syn.TokenboundAccount), safeFields(syn.Safe)...))
			p.holdings(syn.Holdings)
			p.proposals(syn.Safe.Proposals)

			return nil
		},
	}
}

func safeFields(s account.SafeAccount) [][]string {
	owners := make([]string, len(s.Owners))
	for i, o := range s.Owners {
		owners[i] = o.Hex()
	}

	return [][]string{
		{"Safe", s.Address.Hex()},
		{"Owners", strings.Join(owners, "\n")},
		{"Threshold", fmt.Sprintf("%d of %d", s.Threshold, len(s.Owners))},
		{"Nonce", strconv.FormatUint(s.Nonce, 10)},
		{"Next Nonce", strconv.FormatUint(s.NextNonce(), 10)},
	}
}

func newProposalsCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "proposals <safe>",
		Short: "List the pending proposals of a Safe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			app, err := reader(cmd, cfg)
			if err != nil {
				return err
			}

			sa, err := fetch(cmd, app, querycache.Key("safe", addr), func(ctx context.Context) (account.SafeAccount, error) {
				return app.Reader.SafeAccount(ctx, addr)
			})
			if err != nil {
				return fmt.Errorf("failed to load safe %s: %w", addr.Hex(), err)
			}

			p := newPrinter(cmd)
			if ok, err := p.JSON(struct {
				Safe      *safeJSON      `json:"safe"`
				Proposals []proposalJSON `json:"proposals"`
			}{safeView(sa), proposalsView(sa.Proposals)}); ok {
				return err
			}
			p.fields(safeFields(sa))
			p.proposals(sa.Proposals)

			return nil
		},
	}
}

func newDecodeCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Describe what a transaction does",
		Example: text.Examples(`
			# Decode a tokenbound account execute call
			slab decode --to 0x... --data 0x51945447...
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			to, err := parseAddress(flags.MustString(cmd.Flags().GetString("to")))
			if err != nil {
				return err
			}
			value, ok := new(big.Int).SetString(flags.MustString(cmd.Flags().GetString("value")), 10)
			if !ok {
				return errors.New("--value must be a decimal amount of wei")
			}
			data, err := hexutil.Decode(flags.MustString(cmd.Flags().GetString("data")))
			if err != nil {
				return fmt.Errorf("invalid --data: %w", err)
			}

			app, err := load(cmd, cfg)
			if err != nil {
				return err
			}
			dec := app.Decoder
			if dec == nil {
				dec = proposal.NewDecoder(app.ChainID, nil, cfg.Logger)
			}

			intent := dec.Decode(cmd.Context(), proposal.Tx{To: to, Value: value, Data: data})
			p := newPrinter(cmd)
			if ok, err := p.JSON(struct {
				Kind        string          `json:"kind"`
				Description string          `json:"description"`
				Intent      proposal.Intent `json:"intent"`
			}{intent.Kind().String(), intent.Describe(), intent}); ok {
				return err
			}
			p.fields([][]string{{"Kind", intent.Kind().String()}, {"Intent", intent.Describe()}})

			return nil
		},
	}
	cmd.Flags().String("to", "", "Target address (required)")
	cmd.Flags().String("value", "0", "Value in wei")
	cmd.Flags().String("data", "0x", "Calldata")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newTokensCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "List the known tokens of the chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load(cmd, cfg)
			if err != nil {
				return err
			}
			if app.Tokens == nil {
				return errNoChain
			}

			known := app.Tokens.Known()
			p := newPrinter(cmd)
			if ok, err := p.JSON(known); ok {
				return err
			}
			rows := make([][]string, 0, len(known))
			for _, t := range known {
				rows = append(rows, []string{t.Label(), orDash(t.Name), strconv.Itoa(int(t.Decimals)), tokenAddress(t)})
			}
			p.table([]string{"Symbol", "Name", "Decimals", "Address"}, rows)

			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <address>",
		Short: "Look up a token and remember it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			app, err := load(cmd, cfg)
			if err != nil {
				return err
			}
			if app.Tokens == nil {
				return errNoChain
			}

			t, err := app.Tokens.Resolve(cmd.Context(), addr)
			if err != nil {
				return fmt.Errorf("failed to look up token %s: %w", addr.Hex(), err)
			}
			if err = app.Tokens.Remember(t); err != nil {
				return err
			}
			if err = save(app); err != nil {
				return err
			}

			p := newPrinter(cmd)
			if ok, err := p.JSON(t); ok {
				return err
			}
			p.line("added %s (%s, %d decimals)", t.Label(), orDash(t.Name), t.Decimals)

			return nil
		},
	})

	return cmd
}

func save(app *App) error {
	if app.Store == nil {
		return nil
	}
	if err := app.Store.Save(); err != nil {
		return fmt.Errorf("failed to save datastore: %w", err)
	}

	return nil
}
