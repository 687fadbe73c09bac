package safe

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/tocwex/slab-sub000/contracts"
)

// Transaction is a Safe transaction as signed by the owners (EIP-712 SafeTx).
type Transaction struct {
	To             common.Address
	Value          *big.Int
	Data           []byte
	Operation      Operation
	SafeTxGas      *big.Int
	BaseGas        *big.Int
	GasPrice       *big.Int
	GasToken       common.Address
	RefundReceiver common.Address
	Nonce          *big.Int
}

var safeTxTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"SafeTx": {
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "data", Type: "bytes"},
		{Name: "operation", Type: "uint8"},
		{Name: "safeTxGas", Type: "uint256"},
		{Name: "baseGas", Type: "uint256"},
		{Name: "gasPrice", Type: "uint256"},
		{Name: "gasToken", Type: "address"},
		{Name: "refundReceiver", Type: "address"},
		{Name: "nonce", Type: "uint256"},
	},
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}

	return v
}

func (t Transaction) normalized() Transaction {
	t.Value = orZero(t.Value)
	t.SafeTxGas = orZero(t.SafeTxGas)
	t.BaseGas = orZero(t.BaseGas)
	t.GasPrice = orZero(t.GasPrice)
	t.Nonce = orZero(t.Nonce)
	if t.Data == nil {
		t.Data = []byte{}
	}

	return t
}

// TypedData returns the EIP-712 payload owners sign for t on the Safe at safe.
func (t Transaction) TypedData(chainID uint64, safe common.Address) apitypes.TypedData {
	t = t.normalized()

	return apitypes.TypedData{
		Types:       safeTxTypes,
		PrimaryType: "SafeTx",
		Domain: apitypes.TypedDataDomain{
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).SetUint64(chainID)),
			VerifyingContract: safe.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"to":             t.To.Hex(),
			"value":          t.Value.String(),
			"data":           t.Data,
			"operation":      fmt.Sprintf("%d", t.Operation),
			"safeTxGas":      t.SafeTxGas.String(),
			"baseGas":        t.BaseGas.String(),
			"gasPrice":       t.GasPrice.String(),
			"gasToken":       t.GasToken.Hex(),
			"refundReceiver": t.RefundReceiver.Hex(),
			"nonce":          t.Nonce.String(),
		},
	}
}

// Hash returns the safeTxHash of t.
func (t Transaction) Hash(chainID uint64, safe common.Address) (common.Hash, error) {
	hash, _, err := apitypes.TypedDataAndHash(t.TypedData(chainID, safe))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash safe transaction: %w", err)
	}

	return common.BytesToHash(hash), nil
}

// SignHash signs a safeTxHash with signHash and shifts v into the 27/28 range the Safe expects.
func SignHash(signHash func([]byte) ([]byte, error), safeTxHash common.Hash) ([]byte, error) {
	sig, err := signHash(safeTxHash.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to sign safe transaction: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("unexpected signature length %d", len(sig))
	}

	// crypto.Sign yields v in {0, 1}
	if sig[64] < 27 {
		sig[64] += 27
	}

	return sig, nil
}

// Signature is an owner's signature of a transaction.
type Signature struct {
	Owner common.Address
	Data  []byte
}

// ApprovedHashSignature is the pre-validated signature of owner. The Safe accepts it when owner
// is the executing account.
func ApprovedHashSignature(owner common.Address) Signature {
	data := make([]byte, 65)
	copy(data[12:32], owner.Bytes())
	data[64] = 1

	return Signature{Owner: owner, Data: data}
}

// ErrThresholdNotMet is returned when fewer signatures than required are available.
var ErrThresholdNotMet = errors.New("not enough confirmations to execute")

// PackSignatures orders the signatures by owner ascending, drops duplicates and concatenates them.
func PackSignatures(sigs []Signature) []byte {
	sorted := make([]Signature, len(sigs))
	copy(sorted, sigs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Owner.Bytes(), sorted[j].Owner.Bytes()) < 0
	})

	var out []byte
	for i, s := range sorted {
		if i > 0 && sorted[i-1].Owner == s.Owner {
			continue
		}
		out = append(out, s.Data...)
	}

	return out
}

// ExecTransaction returns the execTransaction calldata for t with the given signatures.
func ExecTransaction(t Transaction, sigs []Signature) ([]byte, error) {
	t = t.normalized()

	return contracts.SafeABI.Pack("execTransaction",
		t.To, t.Value, t.Data, uint8(t.Operation),
		t.SafeTxGas, t.BaseGas, t.GasPrice, t.GasToken, t.RefundReceiver,
		PackSignatures(sigs),
	)
}

// Signatures collects the signatures of m's confirmations.
func Signatures(m MultisigTransaction) []Signature {
	out := make([]Signature, 0, len(m.Confirmations))
	for _, c := range m.Confirmations {
		if len(c.Signature) == 0 {
			continue
		}
		out = append(out, Signature{Owner: c.Owner, Data: append([]byte(nil), c.Signature...)})
	}

	return out
}
