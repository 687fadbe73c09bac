package safe

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tocwex/slab-sub000/contracts"
	"github.com/tocwex/slab-sub000/datastore"
	"github.com/tocwex/slab-sub000/pkg/logger"
	"github.com/tocwex/slab-sub000/wallet"
)

var (
	// ErrInvalidThreshold is returned for a threshold of zero or above the owner count.
	ErrInvalidThreshold = errors.New("invalid safe threshold")
	// ErrNoProxyCreation is returned when a receipt carries no ProxyCreation event.
	ErrNoProxyCreation = errors.New("no ProxyCreation event in receipt")
)

// SetupData returns the initializer calldata of a new Safe.
func SetupData(owners []common.Address, threshold uint64, fallbackHandler common.Address) ([]byte, error) {
	if threshold == 0 || threshold > uint64(len(owners)) {
		return nil, fmt.Errorf("%w: %d of %d owners", ErrInvalidThreshold, threshold, len(owners))
	}

	return contracts.SafeABI.Pack("setup",
		owners,
		new(big.Int).SetUint64(threshold),
		common.Address{}, []byte{},
		fallbackHandler,
		common.Address{}, new(big.Int), common.Address{},
	)
}

// CreateProxyData returns the proxy factory calldata deploying a Safe.
func CreateProxyData(singleton common.Address, initializer []byte, saltNonce *big.Int) ([]byte, error) {
	return contracts.SafeProxyFactoryABI.Pack("createProxyWithNonce", singleton, initializer, orZero(saltNonce))
}

// ProxyFromReceipt extracts the new Safe address from the factory's ProxyCreation event.
func ProxyFromReceipt(receipt *types.Receipt, factory common.Address) (common.Address, error) {
	event := contracts.SafeProxyFactoryABI.Events["ProxyCreation"]
	for _, l := range receipt.Logs {
		if l.Address != factory || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}

		vals, err := event.Inputs.Unpack(l.Data)
		if err != nil {
			return common.Address{}, fmt.Errorf("failed to decode ProxyCreation: %w", err)
		}
		if proxy, ok := vals[0].(common.Address); ok {
			return proxy, nil
		}
	}

	return common.Address{}, ErrNoProxyCreation
}

// Deployer creates new Safes and records them in the datastore.
type Deployer struct {
	wallet     wallet.Wallet
	deployment contracts.Deployment
	store      datastore.MutableSafeStore
	lggr       logger.Logger
}

// NewDeployer creates a Deployer sending through w.
func NewDeployer(w wallet.Wallet, d contracts.Deployment, store datastore.MutableSafeStore, lggr logger.Logger) *Deployer {
	return &Deployer{wallet: w, deployment: d, store: store, lggr: lggr.Named("SafeDeployer")}
}

// Deploy creates a Safe owned by owners and returns its address.
func (d *Deployer) Deploy(ctx context.Context, owners []common.Address, threshold uint64, saltNonce *big.Int) (common.Address, error) {
	owners = slices.Clone(owners)
	slices.SortFunc(owners, func(a, b common.Address) int { return a.Cmp(b) })
	owners = slices.Compact(owners)

	initializer, err := SetupData(owners, threshold, d.deployment.SafeFallbackHandler)
	if err != nil {
		return common.Address{}, err
	}
	data, err := CreateProxyData(d.deployment.SafeSingleton, initializer, saltNonce)
	if err != nil {
		return common.Address{}, err
	}

	receipt, err := d.wallet.Send(ctx, wallet.Tx{To: d.deployment.SafeProxyFactory, Data: data})
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to deploy safe: %w", err)
	}
	proxy, err := ProxyFromReceipt(receipt, d.deployment.SafeProxyFactory)
	if err != nil {
		return common.Address{}, err
	}
	d.lggr.Infow("safe deployed", "safe", proxy.Hex(), "owners", len(owners), "threshold", threshold)

	if err = d.record(owners, threshold, proxy); err != nil {
		d.lggr.Warnw("failed to record safe", "safe", proxy.Hex(), "err", err)
	}

	return proxy, nil
}

func (d *Deployer) record(owners []common.Address, threshold uint64, proxy common.Address) error {
	chainID := d.wallet.ChainID()
	rec, err := d.store.Get(datastore.NewSafeKey(chainID, owners))
	switch {
	case errors.Is(err, datastore.ErrSafeNotFound):
		rec = datastore.SafeRecord{ChainID: chainID, Owners: owners, Threshold: threshold}
	case err != nil:
		return err
	}

	return d.store.Upsert(rec.WithAddress(proxy))
}

// Nonce reads the on-chain nonce of a Safe.
func Nonce(ctx context.Context, caller bind.ContractCaller, safe common.Address) (uint64, error) {
	c := bind.NewBoundContract(safe, *contracts.SafeABI, caller, nil, nil)

	var out []any
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, "nonce"); err != nil {
		return 0, fmt.Errorf("failed to read nonce of %s: %w", safe.Hex(), err)
	}
	n, ok := out[0].(*big.Int)
	if !ok || !n.IsUint64() {
		return 0, fmt.Errorf("unexpected nonce %v", out[0])
	}

	return n.Uint64(), nil
}

// NextNonce returns the nonce of a new proposal: after every queued transaction, and never below
// the on-chain nonce.
func NextNonce(onchain uint64, pending []MultisigTransaction) uint64 {
	next := onchain
	for _, tx := range pending {
		if n := tx.Nonce.Uint64(); n >= next {
			next = n + 1
		}
	}

	return next
}
