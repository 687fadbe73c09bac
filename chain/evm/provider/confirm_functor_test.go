package provider

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ConfirmFuncGeth_ConfirmFunc(t *testing.T) {
	t.Parallel()

	adminKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	admin := crypto.PubkeyToAddress(adminKey.PublicKey)
	recipient := common.HexToAddress("0x00000000000000000000000000000000000beef")

	genesis := types.GenesisAlloc{
		admin: {Balance: prefundAmountWei},
	}

	newTransfer := func(t *testing.T, client *SimClient) *types.Transaction {
		t.Helper()

		nonce, err := client.PendingNonceAt(t.Context(), admin)
		require.NoError(t, err)
		gasPrice, err := client.SuggestGasPrice(t.Context())
		require.NoError(t, err)

		tx := types.NewTransaction(nonce, recipient, big.NewInt(10000000000000000), 21000, gasPrice, nil)
		signed, err := types.SignTx(tx, types.NewCancunSigner(SimChainID), adminKey)
		require.NoError(t, err)

		return signed
	}

	tests := []struct {
		name    string
		giveTx  func(*testing.T, *SimClient) *types.Transaction
		wantErr string
	}{
		{
			name: "successful confirmation",
			giveTx: func(t *testing.T, client *SimClient) *types.Transaction {
				t.Helper()

				tx := newTransfer(t, client)
				require.NoError(t, client.SendTransaction(t.Context(), tx))
				client.Commit()

				return tx
			},
		},
		{
			name: "failed with nil tx",
			giveTx: func(t *testing.T, client *SimClient) *types.Transaction {
				t.Helper()
				return nil
			},
			wantErr: "tx was nil",
		},
		{
			name: "never sent times out",
			giveTx: func(t *testing.T, client *SimClient) *types.Transaction {
				t.Helper()
				return newTransfer(t, client)
			},
			wantErr: "context deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			backend := simulated.NewBackend(genesis, simulated.WithBlockGasLimit(50000000))
			backend.Commit()
			t.Cleanup(func() { _ = backend.Close() })

			client := NewSimClient(t, backend)
			tx := tt.giveTx(t, client)

			confirm, err := ConfirmFuncGeth(time.Second, WithTickInterval(50*time.Millisecond)).
				Generate(t.Context(), SimChainID.Uint64(), client, admin)
			require.NoError(t, err)

			_, err = confirm(tx)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

type receiptBackend struct {
	calls    int
	foundOn  int
	otherErr error
}

func (b *receiptBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.calls++
	if b.foundOn > 0 && b.calls >= b.foundOn {
		return &types.Receipt{TxHash: txHash, BlockNumber: big.NewInt(7), Status: types.ReceiptStatusSuccessful}, nil
	}
	if b.otherErr != nil {
		return nil, b.otherErr
	}

	return nil, ethereum.NotFound
}

func (b *receiptBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func TestWaitMinedWithInterval(t *testing.T) {
	t.Parallel()

	t.Run("polls until found", func(t *testing.T) {
		t.Parallel()

		b := &receiptBackend{foundOn: 3}
		receipt, err := WaitMinedWithInterval(t.Context(), time.Millisecond, b, common.Hash{1})
		require.NoError(t, err)
		assert.Equal(t, uint64(7), receipt.BlockNumber.Uint64())
		assert.Equal(t, 3, b.calls)
	})

	t.Run("reports the last non not-found error on timeout", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()

		b := &receiptBackend{otherErr: errors.New("rpc down")}
		_, err := WaitMinedWithInterval(ctx, time.Millisecond, b, common.Hash{1})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.ErrorContains(t, err, "rpc down")
	})
}
