package proposal

import (
	"context"
	"fmt"
	"slices"

	"github.com/tocwex/slab-sub000/safe"
)

// Proposal is a queued Safe transaction with its classified intent.
type Proposal struct {
	Tx            safe.MultisigTransaction
	Intent        Intent
	Confirmations int
	Required      int
	// Executable is set when the proposal has enough confirmations and is next in line.
	Executable bool
}

// Proposal classifies a queued transaction of a Safe whose on-chain nonce is nonce.
func (d *Decoder) Proposal(ctx context.Context, m safe.MultisigTransaction, threshold, nonce uint64) Proposal {
	required := m.ConfirmationsRequired
	if required == 0 {
		required = int(threshold)
	}

	p := Proposal{
		Tx:            m,
		Intent:        d.Decode(ctx, Tx{To: m.To, Value: m.Value.Big(), Data: m.Calldata()}),
		Confirmations: len(m.Confirmations),
		Required:      required,
	}
	p.Executable = !m.IsExecuted && p.Confirmations >= p.Required && m.Nonce.IsUint64() && m.Nonce.Uint64() == nonce

	return p
}

// Proposals classifies the queued transactions of a Safe, ordered by nonce.
func (d *Decoder) Proposals(ctx context.Context, txs []safe.MultisigTransaction, threshold, nonce uint64) []Proposal {
	out := make([]Proposal, 0, len(txs))
	for _, m := range txs {
		out = append(out, d.Proposal(ctx, m, threshold, nonce))
	}
	slices.SortStableFunc(out, func(a, b Proposal) int {
		return a.Tx.Nonce.Cmp(&b.Tx.Nonce.Int)
	})

	return out
}

// Describe renders the proposal on one line.
func (p Proposal) Describe() string {
	return fmt.Sprintf("#%s %s (%d/%d)", p.Tx.Nonce.String(), p.Intent.Describe(), p.Confirmations, p.Required)
}
