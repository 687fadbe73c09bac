package provider

import (
	"encoding/hex"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChainIDBig = big.NewInt(11155111)

func Test_TransactorFromRaw(t *testing.T) {
	t.Parallel()

	privKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexPrivKey := hex.EncodeToString(crypto.FromECDSA(privKey))
	wantAddr := crypto.PubkeyToAddress(privKey.PublicKey)

	tests := []struct {
		name        string
		givePrivKey string
		giveChainID *big.Int
		giveOpts    []GeneratorOption
		wantGas     uint64
		wantErr     string
	}{
		{
			name:        "valid key without gas limit",
			givePrivKey: hexPrivKey,
			giveChainID: testChainIDBig,
		},
		{
			name:        "0x prefixed key",
			givePrivKey: "0x" + hexPrivKey,
			giveChainID: testChainIDBig,
		},
		{
			name:        "custom gas limit",
			givePrivKey: hexPrivKey,
			giveChainID: testChainIDBig,
			giveOpts:    []GeneratorOption{WithGasLimit(123456)},
			wantGas:     123456,
		},
		{
			name:        "invalid private key",
			givePrivKey: "invalid",
			giveChainID: testChainIDBig,
			wantErr:     "failed to convert private key to ECDSA",
		},
		{
			name:        "nil chain ID",
			givePrivKey: hexPrivKey,
			giveChainID: nil,
			wantErr:     "no chain id specified",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := TransactorFromRaw(tt.givePrivKey, tt.giveOpts...)
			got, err := gen.Generate(tt.giveChainID)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, wantAddr, got.From)
			assert.Equal(t, tt.wantGas, got.GasLimit)

			addr, err := gen.Address()
			require.NoError(t, err)
			assert.Equal(t, wantAddr, addr)
		})
	}
}

func Test_SignHash_Recovers(t *testing.T) {
	t.Parallel()

	gen := TransactorRandom()
	addr, err := gen.Address()
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("slab"))
	sig, err := gen.SignHash(digest)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, addr, crypto.PubkeyToAddress(*pub))

	// the random key is stable across calls
	again, err := gen.Address()
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}

func Test_TransactorFromKeystore(t *testing.T) {
	t.Parallel()

	privKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(privKey.PublicKey),
		PrivateKey: privKey,
	}
	blob, err := keystore.EncryptKey(key, "hunter2", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := TransactorFromKeystore(path, "hunter2").Generate(testChainIDBig)
	require.NoError(t, err)
	assert.Equal(t, key.Address, got.From)

	_, err = TransactorFromKeystore(path, "wrong").Generate(testChainIDBig)
	require.ErrorContains(t, err, "failed to decrypt keystore")

	_, err = TransactorFromKeystore(filepath.Join(t.TempDir(), "missing.json"), "").Address()
	require.ErrorContains(t, err, "failed to read keystore")
}
