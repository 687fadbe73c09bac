package proposal

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tocwex/slab-sub000/contracts"
	"github.com/tocwex/slab-sub000/pkg/logger"
	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/tokenbound"
)

// TokenLookup resolves token metadata. *token.Resolver implements it.
type TokenLookup interface {
	Resolve(ctx context.Context, address common.Address) (token.Token, error)
}

// Tx is the call a Safe proposal makes.
type Tx struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

var errNoMatch = errors.New("calldata does not match")

// innerDecoder tries one ABI against the payload executed by the tokenbound account.
type innerDecoder func(ctx context.Context, d *Decoder, to common.Address, data []byte) (Intent, error)

// Tried in order; the first match wins.
var innerDecoders = []innerDecoder{
	decodeERC20Transfer,
	decodeSyndicateToken,
	decodeSyndicateDeployer,
}

// Decoder classifies proposal calldata.
type Decoder struct {
	chainID uint64
	lookup  TokenLookup
	lggr    logger.Logger
}

// NewDecoder creates a Decoder resolving token metadata through lookup. lookup may be nil, in
// which case tokens carry only their address.
func NewDecoder(chainID uint64, lookup TokenLookup, lggr logger.Logger) *Decoder {
	return &Decoder{chainID: chainID, lookup: lookup, lggr: lggr.Named("ProposalDecoder")}
}

// Decode classifies tx. It never fails: calldata no ABI matches yields Other.
func (d *Decoder) Decode(ctx context.Context, tx Tx) Intent {
	// plain value transfer made by the Safe itself
	if len(tx.Data) == 0 && tx.Value != nil && tx.Value.Sign() > 0 {
		return Transfer{Token: token.Native(d.chainID), To: tx.To, Amount: tx.Value}
	}

	exec, err := tokenbound.DecodeExecute(tx.Data)
	if err != nil {
		return d.decodeDirect(tx.Data)
	}

	if len(exec.Data) == 0 {
		return Transfer{Token: token.Native(d.chainID), To: exec.To, Amount: orZero(exec.Value)}
	}

	for _, dec := range innerDecoders {
		intent, err := safeDecode(ctx, d, dec, exec.To, exec.Data)
		if err == nil {
			return intent
		}
	}

	return Other{Signature: selector(exec.Data)}
}

func (d *Decoder) decodeDirect(data []byte) Intent {
	var out struct {
		Point  uint32
		Target common.Address
		Reset  bool
	}
	if err := decodeInto(contracts.EclipticABI, "transferPoint", data, &out); err != nil {
		return Other{Signature: selector(data)}
	}

	return Terminate{Point: out.Point, To: out.Target, Reset: out.Reset}
}

// resolve never fails; a token that cannot be resolved keeps only its address.
func (d *Decoder) resolve(ctx context.Context, address common.Address) token.Token {
	if d.lookup == nil {
		return token.Unknown(d.chainID, address)
	}

	t, err := d.lookup.Resolve(ctx, address)
	if err != nil {
		d.lggr.Debugw("token lookup failed", "token", address.Hex(), "err", err)
		return token.Unknown(d.chainID, address)
	}

	return t
}

func decodeERC20Transfer(ctx context.Context, d *Decoder, to common.Address, data []byte) (Intent, error) {
	var out struct {
		To     common.Address
		Amount *big.Int
	}
	if err := decodeInto(contracts.ERC20ABI, "transfer", data, &out); err != nil {
		return nil, err
	}

	return Transfer{Token: d.resolve(ctx, to), To: out.To, Amount: out.Amount}, nil
}

func decodeSyndicateToken(ctx context.Context, d *Decoder, to common.Address, data []byte) (Intent, error) {
	var single struct {
		Account common.Address
		Amount  *big.Int
	}
	if err := decodeInto(contracts.SyndicateTokenABI, "mint", data, &single); err == nil {
		return Mint{
			Token:      d.resolve(ctx, to),
			Recipients: []Recipient{{To: single.Account, Amount: single.Amount}},
			Total:      new(big.Int).Set(single.Amount),
		}, nil
	}

	var batch struct {
		Accounts []common.Address
		Amounts  []*big.Int
	}
	if err := decodeInto(contracts.SyndicateTokenABI, "batchMint", data, &batch); err == nil {
		if len(batch.Accounts) != len(batch.Amounts) {
			return nil, fmt.Errorf("batchMint with %d accounts and %d amounts", len(batch.Accounts), len(batch.Amounts))
		}

		total := new(big.Int)
		recipients := make([]Recipient, len(batch.Accounts))
		for i := range batch.Accounts {
			recipients[i] = Recipient{To: batch.Accounts[i], Amount: batch.Amounts[i]}
			total.Add(total, batch.Amounts[i])
		}

		return Mint{Token: d.resolve(ctx, to), Recipients: recipients, Total: total}, nil
	}

	if err := decodeInto(contracts.SyndicateTokenABI, "dissolveSyndicate", data, nil); err == nil {
		return Dissolve{Token: d.resolve(ctx, to)}, nil
	}

	return nil, errNoMatch
}

func decodeSyndicateDeployer(_ context.Context, d *Decoder, to common.Address, data []byte) (Intent, error) {
	var out struct {
		Implementation common.Address
		Salt           [32]byte
		InitialSupply  *big.Int
		MaxSupply      *big.Int
		AzimuthPoint   *big.Int
		ProtocolFee    *big.Int
		Name           string
		Symbol         string
	}
	if err := decodeInto(contracts.SyndicateDeployerABI, "deploySyndicate", data, &out); err != nil {
		return nil, err
	}

	return Launch{
		Token:       token.Token{ChainID: d.chainID, Name: out.Name, Symbol: out.Symbol, Decimals: 18},
		Deployer:    to,
		Amount:      out.InitialSupply,
		MaxSupply:   out.MaxSupply,
		Point:       out.AzimuthPoint,
		ProtocolFee: out.ProtocolFee,
	}, nil
}

// safeDecode runs dec, turning a panic from malformed input into an error.
func safeDecode(ctx context.Context, d *Decoder, dec innerDecoder, to common.Address, data []byte) (intent Intent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()

	return dec(ctx, d, to, data)
}

// decodeInto decodes data as a call of method into dst. The selector must match; a nil dst only
// checks that the arguments decode.
func decodeInto(contractABI *abi.ABI, method string, data []byte, dst any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode %s: %v", method, r)
		}
	}()

	m, ok := contractABI.Methods[method]
	if !ok {
		return fmt.Errorf("method %s not in ABI", method)
	}
	if len(data) < 4 || string(data[:4]) != string(m.ID) {
		return errNoMatch
	}

	args, err := m.Inputs.Unpack(data[4:])
	if err != nil || dst == nil {
		return err
	}

	return m.Inputs.Copy(dst, args)
}

func selector(data []byte) string {
	if len(data) > 4 {
		data = data[:4]
	}

	return hexutil.Encode(data)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}

	return v
}
