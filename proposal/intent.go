// Package proposal classifies the calldata of Safe proposals into the closed set of actions a
// Syndicate performs, and encodes those actions for new proposals.
package proposal

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/urbit"
)

// Kind names an Intent variant.
type Kind int

const (
	KindOther Kind = iota
	KindTransfer
	KindLaunch
	KindMint
	KindDissolve
	KindTerminate
)

func (k Kind) String() string {
	switch k {
	case KindTransfer:
		return "transfer"
	case KindLaunch:
		return "launch"
	case KindMint:
		return "mint"
	case KindDissolve:
		return "dissolve"
	case KindTerminate:
		return "terminate"
	default:
		return "other"
	}
}

// Intent is what a proposal does. Implementations are Transfer, Launch, Mint, Dissolve,
// Terminate and Other.
type Intent interface {
	Kind() Kind
	// Describe renders the intent on one line.
	Describe() string

	sealed()
}

// Transfer moves native currency or an ERC-20 token out of the account.
type Transfer struct {
	Token  token.Token
	To     common.Address
	Amount *big.Int
}

// Launch deploys the Syndicate token.
type Launch struct {
	// Token carries the declared name and symbol; its address is unknown until deployment.
	Token       token.Token
	Deployer    common.Address
	Amount      *big.Int
	MaxSupply   *big.Int
	Point       *big.Int
	ProtocolFee *big.Int
}

// Recipient is one mint destination.
type Recipient struct {
	To     common.Address
	Amount *big.Int
}

// Mint issues Syndicate tokens. Total is the sum of the recipient amounts.
type Mint struct {
	Token      token.Token
	Recipients []Recipient
	Total      *big.Int
}

// Dissolve winds down the Syndicate token.
type Dissolve struct {
	Token token.Token
}

// Terminate transfers the point NFT out of the Safe, ending the Syndicate.
type Terminate struct {
	Point uint32
	To    common.Address
	Reset bool
}

// Other is calldata no known ABI matches. Signature is the hex 4-byte selector, or whatever
// shorter prefix was present.
type Other struct {
	Signature string
}

func (Transfer) Kind() Kind  { return KindTransfer }
func (Launch) Kind() Kind    { return KindLaunch }
func (Mint) Kind() Kind      { return KindMint }
func (Dissolve) Kind() Kind  { return KindDissolve }
func (Terminate) Kind() Kind { return KindTerminate }
func (Other) Kind() Kind     { return KindOther }

func (Transfer) sealed()  {}
func (Launch) sealed()    {}
func (Mint) sealed()      {}
func (Dissolve) sealed()  {}
func (Terminate) sealed() {}
func (Other) sealed()     {}

func (t Transfer) Describe() string {
	return fmt.Sprintf("send %s to %s", t.Token.Format(t.Amount), t.To.Hex())
}

func (l Launch) Describe() string {
	return fmt.Sprintf("launch %s (%s) with supply %s of max %s",
		l.Token.Name, l.Token.Symbol, token.FormatAmount(l.Amount, l.Token.Decimals), token.FormatAmount(l.MaxSupply, l.Token.Decimals))
}

func (m Mint) Describe() string {
	return fmt.Sprintf("mint %s to %d recipient(s)", m.Token.Format(m.Total), len(m.Recipients))
}

func (d Dissolve) Describe() string {
	return "dissolve " + d.Token.Label()
}

func (t Terminate) Describe() string {
	point := urbit.IdentityFromUint64(uint64(t.Point))
	if t.Reset {
		return fmt.Sprintf("transfer %s to %s and reset", point, t.To.Hex())
	}

	return fmt.Sprintf("transfer %s to %s", point, t.To.Hex())
}

func (o Other) Describe() string {
	return "unknown call " + o.Signature
}
