// Package token models fungible tokens held by slab accounts: the chain's native currency,
// well-known stablecoins and ERC-20 tokens discovered on chain.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/tocwex/slab-sub000/contracts"
	"github.com/tocwex/slab-sub000/datastore"
)

// NativeAddress is the placeholder address used for the chain's native currency.
var NativeAddress = common.Address{}

// Token is fungible token metadata.
type Token struct {
	ChainID  uint64          `json:"chainId"`
	Address  common.Address  `json:"address"`
	Name     string          `json:"name"`
	Symbol   string          `json:"symbol"`
	Decimals uint8           `json:"decimals"`
	Deployer *common.Address `json:"deployer,omitempty"`
	Native   bool            `json:"native,omitempty"`
}

// Native returns the native currency token of a chain.
func Native(chainID uint64) Token {
	return Token{ChainID: chainID, Address: NativeAddress, Name: "Ether", Symbol: "ETH", Decimals: 18, Native: true}
}

// Unknown returns a token carrying only its address, used when metadata cannot be fetched.
// Its amounts are in base units.
func Unknown(chainID uint64, address common.Address) Token {
	return Token{ChainID: chainID, Address: address}
}

// Resolved reports whether the token carries metadata beyond its address.
func (t Token) Resolved() bool {
	return t.Native || t.Symbol != ""
}

// Label is the short display name of the token.
func (t Token) Label() string {
	if t.Symbol != "" {
		return t.Symbol
	}

	return t.Address.Hex()
}

func (t Token) String() string {
	return t.Label()
}

// Record converts the token to its datastore form.
func (t Token) Record() datastore.TokenRecord {
	return datastore.TokenRecord{
		ChainID:  t.ChainID,
		Address:  t.Address,
		Name:     t.Name,
		Symbol:   t.Symbol,
		Decimals: t.Decimals,
		Deployer: t.Deployer,
	}
}

// FromRecord converts a datastore record to a Token.
func FromRecord(r datastore.TokenRecord) Token {
	return Token{
		ChainID:  r.ChainID,
		Address:  r.Address,
		Name:     r.Name,
		Symbol:   r.Symbol,
		Decimals: r.Decimals,
		Deployer: r.Deployer,
	}
}

var wellKnown = map[uint64][]Token{
	contracts.ChainIDMainnet: {
		{Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Name: "USD Coin", Symbol: "USDC", Decimals: 6},
		{Address: common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), Name: "Tether USD", Symbol: "USDT", Decimals: 6},
		{Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18},
		{Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Name: "Dai Stablecoin", Symbol: "DAI", Decimals: 18},
	},
	contracts.ChainIDSepolia: {
		{Address: common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"), Name: "USDC", Symbol: "USDC", Decimals: 6},
	},
}

// WellKnown returns the native token followed by the well-known ERC-20 tokens of a chain.
func WellKnown(chainID uint64) []Token {
	out := []Token{Native(chainID)}
	for _, t := range wellKnown[chainID] {
		t.ChainID = chainID
		out = append(out, t)
	}

	return out
}

// LookupWellKnown finds a well-known token by address.
func LookupWellKnown(chainID uint64, address common.Address) (Token, bool) {
	for _, t := range WellKnown(chainID) {
		if t.Address == address {
			return t, true
		}
	}

	return Token{}, false
}

// ErrInvalidAmount is returned by ParseAmount for malformed or over-precise amounts.
var ErrInvalidAmount = errors.New("invalid token amount")

// FormatAmount renders a base-unit amount as a decimal string in token units.
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}

	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ParseAmount converts a decimal string in token units into base units.
func ParseAmount(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w %q: negative", ErrInvalidAmount, s)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w %q: more than %d decimals", ErrInvalidAmount, s, decimals)
	}

	return scaled.BigInt(), nil
}

// Format renders amount in the token's units with its symbol, or in base units with the
// token address when the token is unresolved.
func (t Token) Format(amount *big.Int) string {
	if !t.Resolved() {
		return FormatAmount(amount, 0) + " base units of " + t.Address.Hex()
	}

	return FormatAmount(amount, t.Decimals) + " " + t.Label()
}
