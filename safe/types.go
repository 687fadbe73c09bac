package safe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Operation is the Safe call type.
type Operation uint8

const (
	OperationCall         Operation = 0
	OperationDelegateCall Operation = 1
)

// Number is an unsigned integer the transaction service encodes either as a JSON number or as a
// decimal string. null decodes to zero.
type Number struct {
	big.Int
}

// NewNumber wraps v.
func NewNumber(v uint64) Number {
	var n Number
	n.SetUint64(v)

	return n
}

// Big returns a copy of the value.
func (n *Number) Big() *big.Int {
	return new(big.Int).Set(&n.Int)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		n.SetUint64(0)
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		data = []byte(s)
	}
	if len(data) == 0 {
		n.SetUint64(0)
		return nil
	}
	if _, ok := n.SetString(string(data), 10); !ok {
		return fmt.Errorf("invalid number %q", data)
	}
	if n.Sign() < 0 {
		return fmt.Errorf("negative number %q", data)
	}

	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

// Info is the transaction service view of a Safe.
type Info struct {
	Address         common.Address   `json:"address"`
	Nonce           Number           `json:"nonce"`
	Threshold       Number           `json:"threshold"`
	Owners          []common.Address `json:"owners"`
	MasterCopy      common.Address   `json:"masterCopy"`
	FallbackHandler *common.Address  `json:"fallbackHandler"`
	Version         string           `json:"version"`
}

// Confirmation is an owner signature of a pending transaction.
type Confirmation struct {
	Owner          common.Address `json:"owner"`
	Signature      hexutil.Bytes  `json:"signature"`
	SignatureType  string         `json:"signatureType"`
	SubmissionDate string         `json:"submissionDate"`
}

// MultisigTransaction is a transaction proposed to a Safe.
type MultisigTransaction struct {
	Safe                  common.Address  `json:"safe"`
	To                    common.Address  `json:"to"`
	Value                 Number          `json:"value"`
	Data                  *hexutil.Bytes  `json:"data"`
	Operation             Operation       `json:"operation"`
	SafeTxGas             Number          `json:"safeTxGas"`
	BaseGas               Number          `json:"baseGas"`
	GasPrice              Number          `json:"gasPrice"`
	GasToken              common.Address  `json:"gasToken"`
	RefundReceiver        common.Address  `json:"refundReceiver"`
	Nonce                 Number          `json:"nonce"`
	SafeTxHash            common.Hash     `json:"safeTxHash"`
	Proposer              *common.Address `json:"proposer"`
	Executor              *common.Address `json:"executor"`
	IsExecuted            bool            `json:"isExecuted"`
	IsSuccessful          *bool           `json:"isSuccessful"`
	TransactionHash       *common.Hash    `json:"transactionHash"`
	SubmissionDate        string          `json:"submissionDate"`
	ConfirmationsRequired int             `json:"confirmationsRequired"`
	Confirmations         []Confirmation  `json:"confirmations"`
}

// Calldata returns the transaction data, empty when the service reports null.
func (m MultisigTransaction) Calldata() []byte {
	if m.Data == nil {
		return []byte{}
	}

	return *m.Data
}

// Transaction returns the signable form of m.
func (m MultisigTransaction) Transaction() Transaction {
	return Transaction{
		To:             m.To,
		Value:          m.Value.Big(),
		Data:           m.Calldata(),
		Operation:      m.Operation,
		SafeTxGas:      m.SafeTxGas.Big(),
		BaseGas:        m.BaseGas.Big(),
		GasPrice:       m.GasPrice.Big(),
		GasToken:       m.GasToken,
		RefundReceiver: m.RefundReceiver,
		Nonce:          m.Nonce.Big(),
	}
}

// ConfirmedBy reports whether owner has signed m.
func (m MultisigTransaction) ConfirmedBy(owner common.Address) bool {
	for _, c := range m.Confirmations {
		if c.Owner == owner {
			return true
		}
	}

	return false
}

type page[T any] struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

type ownerSafes struct {
	Safes []common.Address `json:"safes"`
}

// ProposeRequest is the body of a transaction proposal.
type ProposeRequest struct {
	To                      common.Address `json:"to"`
	Value                   string         `json:"value"`
	Data                    *string        `json:"data"`
	Operation               Operation      `json:"operation"`
	SafeTxGas               string         `json:"safeTxGas"`
	BaseGas                 string         `json:"baseGas"`
	GasPrice                string         `json:"gasPrice"`
	GasToken                common.Address `json:"gasToken"`
	RefundReceiver          common.Address `json:"refundReceiver"`
	Nonce                   string         `json:"nonce"`
	ContractTransactionHash common.Hash    `json:"contractTransactionHash"`
	Sender                  common.Address `json:"sender"`
	Signature               string         `json:"signature"`
	Origin                  string         `json:"origin,omitempty"`
}

// NewProposeRequest builds the proposal body for tx signed by sender.
func NewProposeRequest(tx Transaction, safeTxHash common.Hash, sender common.Address, signature []byte) ProposeRequest {
	tx = tx.normalized()

	var data *string
	if len(tx.Data) > 0 {
		s := hexutil.Encode(tx.Data)
		data = &s
	}

	return ProposeRequest{
		To:                      tx.To,
		Value:                   tx.Value.String(),
		Data:                    data,
		Operation:               tx.Operation,
		SafeTxGas:               tx.SafeTxGas.String(),
		BaseGas:                 tx.BaseGas.String(),
		GasPrice:                tx.GasPrice.String(),
		GasToken:                tx.GasToken,
		RefundReceiver:          tx.RefundReceiver,
		Nonce:                   tx.Nonce.String(),
		ContractTransactionHash: safeTxHash,
		Sender:                  sender,
		Signature:               hexutil.Encode(signature),
		Origin:                  "slab",
	}
}

type confirmRequest struct {
	Signature string `json:"signature"`
}
