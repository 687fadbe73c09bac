package mutation

import (
	"context"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocwex/slab-sub000/account"
	"github.com/tocwex/slab-sub000/operations"
	"github.com/tocwex/slab-sub000/querycache"
	"github.com/tocwex/slab-sub000/safe"
)

// signerOf loads the Safe at addr and the queued transaction safeTxHash, checking that the
// connected account is one of the Safe's owners.
func (m *Mutator) signerOf(ctx context.Context, addr common.Address, safeTxHash common.Hash) (common.Address, account.SafeAccount, safe.MultisigTransaction, error) {
	sender, err := m.connected(true)
	if err != nil {
		return common.Address{}, account.SafeAccount{}, safe.MultisigTransaction{}, err
	}

	sa, err := m.accounts.SafeAccount(ctx, addr)
	if err != nil {
		if isNotFound(err) {
			err = fmt.Errorf("%w: %s", ErrNotSyndicate, addr.Hex())
		}

		return common.Address{}, account.SafeAccount{}, safe.MultisigTransaction{}, err
	}
	if !sa.IsOwner(sender) {
		return common.Address{}, account.SafeAccount{}, safe.MultisigTransaction{},
			fmt.Errorf("%w: %s is not an owner of %s", ErrNotOwner, sender.Hex(), addr.Hex())
	}

	tx, err := m.deps.Safes.Transaction(ctx, safeTxHash)
	if err != nil {
		return common.Address{}, account.SafeAccount{}, safe.MultisigTransaction{},
			fmt.Errorf("failed to load proposal %s: %w", safeTxHash.Hex(), err)
	}
	if tx.Safe != (common.Address{}) && tx.Safe != addr {
		return common.Address{}, account.SafeAccount{}, safe.MultisigTransaction{},
			fmt.Errorf("proposal %s belongs to %s, not %s", safeTxHash.Hex(), tx.Safe.Hex(), addr.Hex())
	}
	if tx.IsExecuted {
		return common.Address{}, account.SafeAccount{}, safe.MultisigTransaction{},
			fmt.Errorf("%w: %s", ErrAlreadyExecuted, safeTxHash.Hex())
	}

	return sender, sa, tx, nil
}

// SignProposal adds the connected owner's signature to a queued transaction of the Safe at addr.
func (m *Mutator) SignProposal(ctx context.Context, addr common.Address, safeTxHash common.Hash) (Result, error) {
	sender, _, tx, err := m.signerOf(ctx, addr, safeTxHash)
	if err != nil {
		return Result{}, err
	}
	if tx.ConfirmedBy(sender) {
		return Result{}, fmt.Errorf("%w: %s", ErrAlreadyConfirmed, safeTxHash.Hex())
	}

	// the service only accepts a signature of the hash it stores
	hash, err := tx.Transaction().Hash(m.wallet.ChainID(), addr)
	if err != nil {
		return Result{}, err
	}
	if hash != safeTxHash {
		return Result{}, fmt.Errorf("proposal %s hashes to %s", safeTxHash.Hex(), hash.Hex())
	}
	sig, err := safe.SignHash(m.wallet.SignHash, hash)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = m.cache().Mutate(ctx, querycache.Mutation{
		Name: "sign",
		Keys: []string{account.SafeKey(addr)},
		Optimistic: func(c *querycache.Cache) {
			confirm(c, addr, safeTxHash, safe.Confirmation{Owner: sender, Signature: sig})
		},
		Run: func(ctx context.Context) error {
			report, err := operations.ExecuteOperation(m.bundle(ctx), ConfirmTransaction, m.deps, ConfirmInput{
				SafeTxHash: safeTxHash, Signature: sig,
			})
			if err != nil {
				return err
			}
			res = Result{Mode: ModeConfirmed, ReportID: report.ID, Safe: addr, SafeTxHash: safeTxHash, Nonce: tx.Nonce.Uint64()}

			return nil
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("sign failed: %w", err)
	}

	return res, nil
}

// confirm records a confirmation in the cached Safe account.
func confirm(c *querycache.Cache, addr common.Address, safeTxHash common.Hash, conf safe.Confirmation) {
	sa, ok := querycache.Peek[account.SafeAccount](c, account.SafeKey(addr))
	if !ok {
		return
	}

	sa.Proposals = slices.Clone(sa.Proposals)
	for i, p := range sa.Proposals {
		if p.Tx.SafeTxHash != safeTxHash {
			continue
		}
		p.Tx.Confirmations = append(slices.Clone(p.Tx.Confirmations), conf)
		p.Confirmations = len(p.Tx.Confirmations)
		p.Executable = p.Confirmations >= p.Required && p.Tx.Nonce.IsUint64() && p.Tx.Nonce.Uint64() == sa.Nonce
		sa.Proposals[i] = p
	}
	c.Set(account.SafeKey(addr), sa)
}

// ExecuteProposal executes a queued transaction of the Safe at addr from the connected owner.
// The executor's own approval counts toward the threshold without a separate signature.
func (m *Mutator) ExecuteProposal(ctx context.Context, addr common.Address, safeTxHash common.Hash) (Result, error) {
	sender, sa, tx, err := m.signerOf(ctx, addr, safeTxHash)
	if err != nil {
		return Result{}, err
	}
	if !tx.Nonce.IsUint64() || tx.Nonce.Uint64() != sa.Nonce {
		return Result{}, fmt.Errorf("%w: proposal nonce %s, safe nonce %d", ErrNotNext, tx.Nonce.String(), sa.Nonce)
	}

	sigs := ownerSignatures(sa, safe.Signatures(tx))
	if !slices.ContainsFunc(sigs, func(s safe.Signature) bool { return s.Owner == sender }) {
		sigs = append(sigs, safe.ApprovedHashSignature(sender))
	}
	if uint64(len(sigs)) < sa.Threshold {
		return Result{}, fmt.Errorf("%w: %d of %d", safe.ErrThresholdNotMet, len(sigs), sa.Threshold)
	}

	data, err := safe.ExecTransaction(tx.Transaction(), sigs)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = m.cache().Mutate(ctx, querycache.Mutation{
		Name: "execute",
		// the executed call may move tokens, points or launch a token
		Keys: []string{
			account.SafeKey(addr),
			querycache.Key("holdings"),
			querycache.Key("owner"),
			querycache.Key("points"),
			querycache.Key("launched"),
			querycache.Key("tba"),
		},
		Run: func(ctx context.Context) error {
			res, err = m.send(ctx, addr, nil, data)
			return err
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("execute failed: %w", err)
	}
	res.Mode, res.Safe, res.SafeTxHash, res.Nonce = ModeExecuted, addr, safeTxHash, sa.Nonce

	return res, nil
}

// ownerSignatures keeps one signature per current owner of sa.
func ownerSignatures(sa account.SafeAccount, sigs []safe.Signature) []safe.Signature {
	out := make([]safe.Signature, 0, len(sigs))
	for _, s := range sigs {
		if !sa.IsOwner(s.Owner) || slices.ContainsFunc(out, func(o safe.Signature) bool { return o.Owner == s.Owner }) {
			continue
		}
		out = append(out, s)
	}

	return out
}
