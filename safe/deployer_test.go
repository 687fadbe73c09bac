package safe

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tocwex/slab-sub000/contracts"
	"github.com/tocwex/slab-sub000/datastore"
	"github.com/tocwex/slab-sub000/internal/evmtest"
	"github.com/tocwex/slab-sub000/pkg/logger"
	"github.com/tocwex/slab-sub000/wallet"
)

// fakeWallet answers every Send with a receipt carrying a ProxyCreation event for proxy.
type fakeWallet struct {
	chainID uint64
	proxy   common.Address
	sent    []wallet.Tx
}

func (w *fakeWallet) ChainID() uint64                  { return w.chainID }
func (w *fakeWallet) Account() (common.Address, error) { return testOwner1, nil }
func (w *fakeWallet) SignHash([]byte) ([]byte, error)  { return make([]byte, 65), nil }
func (w *fakeWallet) Send(_ context.Context, tx wallet.Tx) (*types.Receipt, error) {
	w.sent = append(w.sent, tx)

	return &types.Receipt{Status: types.ReceiptStatusSuccessful, Logs: []*types.Log{proxyCreationLog(tx.To, w.proxy)}}, nil
}

func proxyCreationLog(factory, proxy common.Address) *types.Log {
	event := contracts.SafeProxyFactoryABI.Events["ProxyCreation"]
	data, _ := event.Inputs.Pack(proxy, common.HexToAddress("0x3E5c63644E683549055b9Be8653de26E0B4CD36E"))

	return &types.Log{Address: factory, Topics: []common.Hash{event.ID}, Data: data}
}

func TestSetupData(t *testing.T) {
	t.Parallel()

	owners := []common.Address{testOwner1, testOwner2}

	data, err := SetupData(owners, 2, common.Address{})
	require.NoError(t, err)
	assert.Equal(t, common.FromHex("0xb63e800d"), data[:4])

	_, err = SetupData(owners, 3, common.Address{})
	require.ErrorIs(t, err, ErrInvalidThreshold)
	_, err = SetupData(owners, 0, common.Address{})
	require.ErrorIs(t, err, ErrInvalidThreshold)

	call, err := CreateProxyData(common.HexToAddress("0x01"), data, nil)
	require.NoError(t, err)
	assert.Equal(t, common.FromHex("0x1688f0b9"), call[:4])
}

func TestProxyFromReceipt(t *testing.T) {
	t.Parallel()

	factory := common.HexToAddress("0xa6B71E26C5e0845f74c812102Ca7114b6a896AB2")

	got, err := ProxyFromReceipt(&types.Receipt{Logs: []*types.Log{
		{Address: testOwner2, Topics: []common.Hash{{}}},
		proxyCreationLog(factory, testSafe),
	}}, factory)
	require.NoError(t, err)
	assert.Equal(t, testSafe, got)

	_, err = ProxyFromReceipt(&types.Receipt{Logs: []*types.Log{proxyCreationLog(testOwner2, testSafe)}}, factory)
	require.ErrorIs(t, err, ErrNoProxyCreation)
}

func TestDeployer_Deploy(t *testing.T) {
	t.Parallel()

	d, err := contracts.DeploymentFor(contracts.ChainIDSepolia)
	require.NoError(t, err)

	w := &fakeWallet{chainID: contracts.ChainIDSepolia, proxy: testSafe}
	store := datastore.NewMemorySafeStore()
	deployer := NewDeployer(w, d, store, logger.Test(t))

	got, err := deployer.Deploy(t.Context(), []common.Address{testOwner2, testOwner1, testOwner2}, 2, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, testSafe, got)

	require.Len(t, w.sent, 1)
	assert.Equal(t, d.SafeProxyFactory, w.sent[0].To)

	rec, err := store.Get(datastore.NewSafeKey(contracts.ChainIDSepolia, []common.Address{testOwner1, testOwner2}))
	require.NoError(t, err)
	assert.Equal(t, []common.Address{testSafe}, rec.Addresses)
	_, err = store.Get(datastore.NewSafeKey(contracts.ChainIDMainnet, []common.Address{testOwner1, testOwner2}))
	require.ErrorIs(t, err, datastore.ErrSafeNotFound)

	_, err = deployer.Deploy(t.Context(), []common.Address{testOwner1}, 2, nil)
	require.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestNonce(t *testing.T) {
	t.Parallel()

	caller := evmtest.NewFakeCaller().Returns(testSafe, contracts.SafeABI, "nonce", big.NewInt(9))

	n, err := Nonce(t.Context(), caller, testSafe)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), n)

	assert.Equal(t, uint64(9), NextNonce(9, nil))
	assert.Equal(t, uint64(9), NextNonce(9, []MultisigTransaction{{Nonce: NewNumber(3)}}))
	assert.Equal(t, uint64(12), NextNonce(9, []MultisigTransaction{{Nonce: NewNumber(11)}, {Nonce: NewNumber(10)}}))
}
