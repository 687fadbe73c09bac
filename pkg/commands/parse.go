package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tocwex/slab-sub000/proposal"
	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/urbit"
)

var errNoWallet = errors.New("this command needs a wallet")

func parseIdentity(s string) (urbit.Identity, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "~") && !urbit.IsValidPatp(s) {
		return urbit.Identity{}, fmt.Errorf("invalid point %q: not a canonical @p", s)
	}
	ident, err := urbit.ParseIdentity(s)
	if err != nil {
		return urbit.Identity{}, fmt.Errorf("invalid point %q: %w", s, err)
	}

	return ident, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}

	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash %q", s)
	}

	return common.BytesToHash(b), nil
}

// recipient accepts an address or an ENS name.
func recipient(ctx context.Context, app *App, s string) (common.Address, error) {
	if common.IsHexAddress(s) || app.Recipients == nil {
		return parseAddress(s)
	}

	return app.Recipients.ResolveRecipient(ctx, s)
}

// owner returns the address argument, or the connected account when there is none.
func owner(app *App, args []string) (common.Address, error) {
	if len(args) > 0 {
		return parseAddress(args[0])
	}
	if app.Wallet == nil {
		return common.Address{}, errNoWallet
	}

	return app.Wallet.Account()
}

// tokenOf resolves the --token flag, the native currency when empty.
func tokenOf(ctx context.Context, app *App, s string) (token.Token, error) {
	if s == "" {
		return token.Native(app.ChainID), nil
	}
	addr, err := parseAddress(s)
	if err != nil {
		return token.Token{}, err
	}
	if app.Tokens == nil {
		return token.Unknown(app.ChainID, addr), nil
	}

	return app.Tokens.Resolve(ctx, addr)
}

// parseRecipients parses "<address|name>=<amount>" pairs in units of decimals.
func parseRecipients(ctx context.Context, app *App, args []string, decimals uint8) ([]proposal.Recipient, error) {
	out := make([]proposal.Recipient, 0, len(args))
	for _, arg := range args {
		to, amount, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid recipient %q, want <address>=<amount>", arg)
		}
		addr, err := recipient(ctx, app, to)
		if err != nil {
			return nil, err
		}
		amt, err := token.ParseAmount(amount, decimals)
		if err != nil {
			return nil, err
		}
		out = append(out, proposal.Recipient{To: addr, Amount: amt})
	}

	return out, nil
}

func parseSalt(s string) ([32]byte, error) {
	var salt [32]byte
	if s == "" {
		return salt, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil || len(b) > len(salt) {
		return salt, fmt.Errorf("invalid salt %q", s)
	}
	copy(salt[len(salt)-len(b):], b)

	return salt, nil
}
