package account

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tocwex/slab-sub000/contracts"
	"github.com/tocwex/slab-sub000/datastore"
	"github.com/tocwex/slab-sub000/internal/evmtest"
	"github.com/tocwex/slab-sub000/pkg/logger"
	"github.com/tocwex/slab-sub000/proposal"
	"github.com/tocwex/slab-sub000/querycache"
	"github.com/tocwex/slab-sub000/safe"
	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/tokenbound"
	"github.com/tocwex/slab-sub000/urbit"
)

var (
	owner    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	cosigner = common.HexToAddress("0x2222222222222222222222222222222222222222")
	safeAddr = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	synToken = common.HexToAddress("0x00000000000000000000000000000000000005a1")
	usdc     = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	marzod   = urbit.IdentityFromUint64(256)
)

// fakeSafes serves Safe service reads from memory.
type fakeSafes struct {
	infos   map[common.Address]safe.Info
	pending map[common.Address][]safe.MultisigTransaction
	byOwner map[common.Address][]common.Address
}

func (f *fakeSafes) SafeInfo(_ context.Context, addr common.Address) (safe.Info, error) {
	info, ok := f.infos[addr]
	if !ok {
		return safe.Info{}, safe.ErrNotFound
	}

	return info, nil
}

func (f *fakeSafes) SafesByOwner(_ context.Context, o common.Address) ([]common.Address, error) {
	return f.byOwner[o], nil
}

func (f *fakeSafes) PendingTransactions(_ context.Context, addr common.Address, minNonce uint64) ([]safe.MultisigTransaction, error) {
	var out []safe.MultisigTransaction
	for _, tx := range f.pending[addr] {
		if tx.Nonce.Uint64() >= minNonce {
			out = append(out, tx)
		}
	}

	return out, nil
}

type fixture struct {
	dep      contracts.Deployment
	caller   *evmtest.FakeCaller
	safes    *fakeSafes
	store    *datastore.MemorySafeStore
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dep, err := contracts.DeploymentFor(contracts.ChainIDMainnet)
	require.NoError(t, err)
	dep.SyndicateDeployer = common.HexToAddress("0x0000000000000000000000000000000000000d00")

	tba := tokenbound.Address(tokenbound.ParamsFor(dep, marzod.ID))

	caller := evmtest.NewFakeCaller().
		SetCode(tba, []byte{0x01}).
		SetBalance(tba, big.NewInt(5)).
		Handle(dep.Ecliptic, contracts.EclipticABI, "ownerOf", func(args []any) ([]any, error) {
			if args[0].(*big.Int).Cmp(marzod.ID) == 0 {
				return []any{safeAddr}, nil
			}

			return []any{owner}, nil
		}).
		Returns(dep.Azimuth, contracts.AzimuthABI, "getOwnedPoints", []uint32{256, 65536}).
		Handle(dep.SyndicateDeployer, contracts.SyndicateDeployerABI, "syndicateTokenOf", func(args []any) ([]any, error) {
			if args[0].(*big.Int).Cmp(marzod.ID) == 0 {
				return []any{synToken}, nil
			}

			return []any{common.Address{}}, nil
		}).
		Returns(synToken, contracts.ERC20ABI, "decimals", uint8(18)).
		Returns(synToken, contracts.ERC20ABI, "symbol", "~MARZOD").
		Returns(synToken, contracts.ERC20ABI, "name", "marzod syndicate").
		Returns(synToken, contracts.ERC20ABI, "balanceOf", big.NewInt(1000))

	for _, wk := range token.WellKnown(contracts.ChainIDMainnet)[1:] {
		bal := big.NewInt(0)
		if wk.Address == usdc {
			bal = big.NewInt(2_500_000)
		}
		caller.Returns(wk.Address, contracts.ERC20ABI, "balanceOf", bal)
	}

	transfer, err := proposal.EncodeTransfer(tba, token.Native(1), cosigner, big.NewInt(1))
	require.NoError(t, err)
	data := hexutil.Bytes(transfer.Data)

	safes := &fakeSafes{
		infos: map[common.Address]safe.Info{
			safeAddr: {Address: safeAddr, Owners: []common.Address{owner, cosigner}, Threshold: safe.NewNumber(2), Nonce: safe.NewNumber(3)},
		},
		pending: map[common.Address][]safe.MultisigTransaction{
			safeAddr: {
				{Safe: safeAddr, To: tba, Data: &data, Nonce: safe.NewNumber(2)},
				{Safe: safeAddr, To: tba, Data: &data, Nonce: safe.NewNumber(3), Confirmations: []safe.Confirmation{{Owner: owner}}},
			},
		},
		byOwner: map[common.Address][]common.Address{owner: {safeAddr}},
	}

	lggr := logger.Test(t)
	store := datastore.NewMemorySafeStore()
	tokens := token.NewResolver(1, caller, datastore.NewMemoryTokenStore(), lggr)

	return &fixture{
		dep:    dep,
		caller: caller,
		safes:  safes,
		store:  store,
		resolver: NewResolver(Config{
			Deployment: dep,
			Caller:     caller,
			Safes:      safes,
			Tokens:     tokens,
			Cache:      querycache.New(querycache.Config{Delay: time.Millisecond}, lggr),
			Store:      store,
			Lggr:       lggr,
		}),
	}
}

func TestResolver_PointsOf(t *testing.T) {
	t.Parallel()

	points, err := newFixture(t).resolver.PointsOf(t.Context(), owner)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "~marzod", points[0].Patp)
	assert.Equal(t, "~dapnep-ronmyl", points[1].Patp)
}

func TestResolver_TokenboundAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	acct, err := f.resolver.TokenboundAccount(t.Context(), marzod)
	require.NoError(t, err)

	assert.Equal(t, tokenbound.Address(tokenbound.ParamsFor(f.dep, marzod.ID)), acct.Address)
	assert.True(t, acct.Deployed)
	assert.Equal(t, safeAddr, acct.Owner)
	require.NotNil(t, acct.LaunchedToken)
	assert.Equal(t, "~MARZOD", acct.LaunchedToken.Symbol)

	require.Contains(t, acct.Holdings, token.NativeAddress)
	assert.Equal(t, int64(5), acct.Holdings[token.NativeAddress].Balance.Int64())
	require.Contains(t, acct.Holdings, usdc)
	assert.Equal(t, int64(2_500_000), acct.Holdings[usdc].Balance.Int64())
	require.Contains(t, acct.Holdings, synToken)
	assert.Len(t, acct.Holdings, 3, "zero ERC-20 balances are omitted")

	calls := len(f.caller.Calls())
	_, err = f.resolver.TokenboundAccount(t.Context(), marzod)
	require.NoError(t, err)
	assert.Len(t, f.caller.Calls(), calls, "second resolution is served from the cache")

	other, err := f.resolver.TokenboundAccount(t.Context(), urbit.IdentityFromUint64(65536))
	require.NoError(t, err)
	assert.False(t, other.Deployed)
	assert.Nil(t, other.LaunchedToken)
	assert.Equal(t, owner, other.Owner)
}

func TestResolver_Syndicate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	syn, err := f.resolver.Syndicate(t.Context(), marzod)
	require.NoError(t, err)

	assert.Equal(t, safeAddr, syn.Safe.Address)
	assert.Equal(t, uint64(2), syn.Safe.Threshold)
	assert.True(t, syn.Safe.IsOwner(cosigner))
	require.Len(t, syn.Safe.Proposals, 1, "executed nonces are not pending")
	assert.Equal(t, proposal.KindTransfer, syn.Safe.Proposals[0].Intent.Kind())
	assert.Equal(t, uint64(4), syn.Safe.NextNonce())

	_, err = f.resolver.Syndicate(t.Context(), urbit.IdentityFromUint64(65536))
	require.ErrorIs(t, err, ErrNotSyndicate)
}

func TestResolver_SafeAccount_onchainNonce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.caller.Returns(safeAddr, contracts.SafeABI, "nonce", big.NewInt(4))

	sa, err := f.resolver.SafeAccount(t.Context(), safeAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), sa.Nonce, "the chain is ahead of the service")
	assert.Empty(t, sa.Proposals)
	assert.Equal(t, uint64(4), sa.NextNonce())
}

func TestResolver_SafesOf(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	local := common.HexToAddress("0x0000000000000000000000000000000000000123")
	require.NoError(t, f.store.Add(datastore.SafeRecord{
		ChainID:   1,
		Owners:    []common.Address{owner, cosigner},
		Threshold: 2,
		Addresses: []common.Address{local, safeAddr},
	}))

	safes, err := f.resolver.SafesOf(t.Context(), owner)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{safeAddr, local}, safes)
}

func TestResolver_notInitialized(t *testing.T) {
	t.Parallel()

	r := NewResolver(Config{})

	_, err := r.PointsOf(t.Context(), owner)
	require.ErrorIs(t, err, ErrNotInitialized)

	f := newFixture(t)
	readOnly := NewResolver(Config{Deployment: f.dep, Caller: f.caller, Cache: querycache.New(querycache.Config{}, logger.Nop())})
	_, err = readOnly.SafeAccount(t.Context(), safeAddr)
	require.ErrorIs(t, err, ErrNotInitialized)

	_, err = readOnly.TokenboundAddress(urbit.IdentityFromUint64(1 << 33))
	require.ErrorIs(t, err, ErrNoTokenboundID)
}
