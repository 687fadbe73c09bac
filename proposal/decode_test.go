package proposal

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tocwex/slab-sub000/pkg/logger"
	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/tokenbound"
)

var (
	tba       = common.HexToAddress("0x00000000000000000000000000000000000007ba")
	recipient = common.HexToAddress("0x0000000000000000000000000000000000000abc")
	usdc      = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	synToken  = common.HexToAddress("0x00000000000000000000000000000000000005a1")
	deployer  = common.HexToAddress("0x0000000000000000000000000000000000000d00")
	ecliptic  = common.HexToAddress("0x33EeCbf908478C10614626A9D304bfe18B78DD73")
	oneEther  = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// mapLookup resolves tokens from a fixed table and fails for anything else.
type mapLookup map[common.Address]token.Token

func (m mapLookup) Resolve(_ context.Context, addr common.Address) (token.Token, error) {
	if t, ok := m[addr]; ok {
		return t, nil
	}

	return token.Token{}, errors.New("unknown token")
}

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()

	return NewDecoder(1, mapLookup{
		usdc:     {ChainID: 1, Address: usdc, Symbol: "USDC", Decimals: 6},
		synToken: {ChainID: 1, Address: synToken, Symbol: "~SAMPEL", Decimals: 18},
	}, logger.Test(t))
}

func TestDecode_nativeTransfer(t *testing.T) {
	t.Parallel()

	call, err := EncodeTransfer(tba, token.Native(1), common.Address{}, oneEther)
	require.NoError(t, err)

	intent := newTestDecoder(t).Decode(t.Context(), call.Tx())
	require.IsType(t, Transfer{}, intent)

	transfer := intent.(Transfer)
	assert.True(t, transfer.Token.Native)
	assert.Equal(t, common.Address{}, transfer.To)
	assert.Equal(t, 0, oneEther.Cmp(transfer.Amount))
	assert.Equal(t, "send 1 ETH to 0x0000000000000000000000000000000000000000", intent.Describe())
}

func TestDecode_erc20Transfer(t *testing.T) {
	t.Parallel()

	call, err := EncodeTransfer(tba, token.Token{Address: usdc, Decimals: 6}, recipient, big.NewInt(500_000))
	require.NoError(t, err)
	assert.Equal(t, tba, call.To)

	intent := newTestDecoder(t).Decode(t.Context(), call.Tx())
	require.Equal(t, KindTransfer, intent.Kind())

	transfer := intent.(Transfer)
	assert.Equal(t, "USDC", transfer.Token.Symbol)
	assert.Equal(t, recipient, transfer.To)
	assert.Equal(t, int64(500_000), transfer.Amount.Int64())
	assert.Equal(t, "send 0.5 USDC to "+recipient.Hex(), intent.Describe())
}

func TestDecode_unresolvableTokenKeepsAddress(t *testing.T) {
	t.Parallel()

	unknown := common.HexToAddress("0x0000000000000000000000000000000000000fff")
	call, err := EncodeTransfer(tba, token.Token{Address: unknown}, recipient, big.NewInt(5))
	require.NoError(t, err)

	transfer := newTestDecoder(t).Decode(t.Context(), call.Tx()).(Transfer)
	assert.Equal(t, unknown, transfer.Token.Address)
	assert.Empty(t, transfer.Token.Symbol)

	assert.Equal(t, "send 5 base units of "+unknown.Hex()+" to "+recipient.Hex(), transfer.Describe())

	transfer = NewDecoder(1, nil, logger.Nop()).Decode(t.Context(), call.Tx()).(Transfer)
	assert.Equal(t, unknown, transfer.Token.Address)
	assert.Equal(t, "send 5 base units of "+unknown.Hex()+" to "+recipient.Hex(), transfer.Describe())
}

func TestDecode_mint(t *testing.T) {
	t.Parallel()

	single, err := EncodeMint(tba, synToken, recipient, big.NewInt(10))
	require.NoError(t, err)

	batch, err := EncodeBatchMint(tba, synToken, []Recipient{
		{To: recipient, Amount: big.NewInt(3)},
		{To: tba, Amount: big.NewInt(4)},
		{To: deployer, Amount: big.NewInt(5)},
	})
	require.NoError(t, err)

	tests := []struct {
		name       string
		call       Call
		wantTotal  int64
		recipients int
	}{
		{name: "mint", call: single, wantTotal: 10, recipients: 1},
		{name: "batch mint", call: batch, wantTotal: 12, recipients: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			intent := newTestDecoder(t).Decode(t.Context(), tt.call.Tx())
			require.IsType(t, Mint{}, intent)

			mint := intent.(Mint)
			assert.Equal(t, "~SAMPEL", mint.Token.Symbol)
			require.Len(t, mint.Recipients, tt.recipients)
			assert.Equal(t, tt.wantTotal, mint.Total.Int64())

			sum := new(big.Int)
			for _, r := range mint.Recipients {
				sum.Add(sum, r.Amount)
			}
			assert.Equal(t, 0, sum.Cmp(mint.Total), "recipient amounts sum to the total")
		})
	}
}

func TestDecode_dissolve(t *testing.T) {
	t.Parallel()

	call, err := EncodeDissolve(tba, synToken)
	require.NoError(t, err)

	intent := newTestDecoder(t).Decode(t.Context(), call.Tx())
	require.Equal(t, Dissolve{Token: token.Token{ChainID: 1, Address: synToken, Symbol: "~SAMPEL", Decimals: 18}}, intent)
	assert.Equal(t, "dissolve ~SAMPEL", intent.Describe())
}

func TestDecode_launch(t *testing.T) {
	t.Parallel()

	supply := new(big.Int).Mul(big.NewInt(1_000_000), oneEther)
	call, err := EncodeLaunch(tba, deployer, LaunchParams{
		InitialSupply: supply,
		MaxSupply:     new(big.Int).Mul(supply, big.NewInt(2)),
		Point:         big.NewInt(256),
		ProtocolFee:   big.NewInt(100),
		Name:          "Foo",
		Symbol:        "FOO",
	})
	require.NoError(t, err)

	intent := newTestDecoder(t).Decode(t.Context(), call.Tx())
	require.IsType(t, Launch{}, intent)

	launch := intent.(Launch)
	assert.Equal(t, "FOO", launch.Token.Symbol)
	assert.Equal(t, "Foo", launch.Token.Name)
	assert.Equal(t, 0, supply.Cmp(launch.Amount))
	assert.Equal(t, deployer, launch.Deployer)
	assert.Equal(t, int64(256), launch.Point.Int64())
	assert.Equal(t, "launch Foo (FOO) with supply 1000000 of max 2000000", intent.Describe())
}

func TestDecode_terminate(t *testing.T) {
	t.Parallel()

	for _, reset := range []bool{true, false} {
		call, err := EncodeTerminate(ecliptic, 256, recipient, reset)
		require.NoError(t, err)
		assert.Equal(t, ecliptic, call.To)

		intent := newTestDecoder(t).Decode(t.Context(), call.Tx())
		require.Equal(t, Terminate{Point: 256, To: recipient, Reset: reset}, intent)
		assert.Contains(t, intent.Describe(), "~marzod")
	}
}

func TestDecode_other(t *testing.T) {
	t.Parallel()

	inner, err := tokenbound.Execute(tokenbound.Execution{To: recipient, Data: common.FromHex("0xdeadbeef0102")})
	require.NoError(t, err)

	d := newTestDecoder(t)

	tests := []struct {
		name string
		data []byte
		want Intent
	}{
		{name: "empty", data: nil, want: Other{Signature: "0x"}},
		{name: "short", data: []byte{0x01, 0x02}, want: Other{Signature: "0x0102"}},
		{name: "unknown selector", data: common.FromHex("0xcafebabe00"), want: Other{Signature: "0xcafebabe"}},
		{name: "unknown inner call", data: inner, want: Other{Signature: "0xdeadbeef"}},
		{name: "truncated transfer", data: common.FromHex("0xa9059cbb0000"), want: Other{Signature: "0xa9059cbb"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, d.Decode(t.Context(), Tx{To: tba, Data: tt.data}))
		})
	}
}

func TestDecode_neverPanics(t *testing.T) {
	t.Parallel()

	d := newTestDecoder(t)
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // deterministic fuzz input

	prefixes := [][]byte{
		common.FromHex("0x51945447"), // execute
		common.FromHex("0xa9059cbb"), // transfer
		common.FromHex("0x40c10f19"), // mint
		nil,
	}
	for i := range 500 {
		data := append([]byte(nil), prefixes[i%len(prefixes)]...)
		junk := make([]byte, rng.Intn(300))
		_, _ = rng.Read(junk)
		data = append(data, junk...)

		assert.NotPanics(t, func() {
			intent := d.Decode(t.Context(), Tx{To: tba, Data: data})
			require.NotNil(t, intent)
		})
	}
}

func TestDecode_plainSafeTransfer(t *testing.T) {
	t.Parallel()

	intent := newTestDecoder(t).Decode(t.Context(), Tx{To: recipient, Value: big.NewInt(7)})
	assert.Equal(t, Transfer{Token: token.Native(1), To: recipient, Amount: big.NewInt(7)}, intent)
}
