package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tocwex/slab-sub000/account"
	"github.com/tocwex/slab-sub000/datastore"
	"github.com/tocwex/slab-sub000/mutation"
	"github.com/tocwex/slab-sub000/operations"
	"github.com/tocwex/slab-sub000/pkg/logger"
	"github.com/tocwex/slab-sub000/proposal"
	"github.com/tocwex/slab-sub000/querycache"
	"github.com/tocwex/slab-sub000/safe"
	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/urbit"
	"github.com/tocwex/slab-sub000/wallet"
)

var (
	connected = common.HexToAddress("0x1111111111111111111111111111111111111111")
	cosigner  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	vitalik   = common.HexToAddress("0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045")
	tbaAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	safeAddr  = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	synAddr   = common.HexToAddress("0x00000000000000000000000000000000000005a1")
	txHash    = common.HexToHash("0xabc")
	safeTx    = common.HexToHash("0x5afe")

	synToken = token.Token{ChainID: 1, Address: synAddr, Name: "Syndicate", Symbol: "SYN", Decimals: 6}
)

type testWallet struct{}

func (testWallet) ChainID() uint64 { return 1 }

func (testWallet) Account() (common.Address, error) { return connected, nil }

func (testWallet) SignHash([]byte) ([]byte, error) { return nil, errors.New("not used") }

func (testWallet) Send(context.Context, wallet.Tx) (*types.Receipt, error) {
	return nil, errors.New("not used")
}

type testReader struct {
	points map[common.Address][]urbit.Identity
	safes  []common.Address
}

func (r testReader) PointsOf(_ context.Context, owner common.Address) ([]urbit.Identity, error) {
	return r.points[owner], nil
}

func (testReader) TokenboundAccount(_ context.Context, ident urbit.Identity) (account.TokenboundAccount, error) {
	tba := account.TokenboundAccount{
		Identity: ident,
		Address:  tbaAddr,
		Deployed: true,
		Owner:    connected,
		Holdings: map[common.Address]account.Holding{
			token.NativeAddress: {Token: token.Native(1), Balance: big.NewInt(1_500_000_000_000_000_000)},
		},
	}
	if ident.ID.Uint64() == 512 {
		tba.Owner = safeAddr
		tba.LaunchedToken = &synToken
		tba.Holdings[synAddr] = account.Holding{Token: synToken, Balance: big.NewInt(42_000_000)}
	}

	return tba, nil
}

func (r testReader) Syndicate(ctx context.Context, ident urbit.Identity) (account.Syndicate, error) {
	if ident.ID.Uint64() != 512 {
		return account.Syndicate{}, mutation.ErrNotSyndicate
	}
	tba, _ := r.TokenboundAccount(ctx, ident)
	sa, _ := r.SafeAccount(ctx, safeAddr)

	return account.Syndicate{TokenboundAccount: tba, Safe: sa}, nil
}

func (testReader) SafeAccount(_ context.Context, addr common.Address) (account.SafeAccount, error) {
	if addr != safeAddr {
		return account.SafeAccount{}, safe.ErrNotFound
	}

	return account.SafeAccount{
		Address:   safeAddr,
		Owners:    []common.Address{connected, cosigner},
		Threshold: 2,
		Nonce:     3,
		Proposals: []proposal.Proposal{{
			Tx:            safe.MultisigTransaction{Safe: safeAddr, SafeTxHash: safeTx, Nonce: safe.NewNumber(3)},
			Intent:        proposal.Dissolve{Token: synToken},
			Confirmations: 1,
			Required:      2,
		}},
	}, nil
}

func (r testReader) SafesOf(context.Context, common.Address) ([]common.Address, error) {
	return r.safes, nil
}

func (testReader) Holdings(context.Context, common.Address, ...*token.Token) (map[common.Address]account.Holding, error) {
	return map[common.Address]account.Holding{
		synAddr: {Token: synToken, Balance: big.NewInt(1_000_000)},
	}, nil
}

type call struct {
	method string
	args   []any
}

type testWriter struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (w *testWriter) record(method string, args ...any) (mutation.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls = append(w.calls, call{method: method, args: args})
	if w.err != nil {
		return mutation.Result{}, w.err
	}

	return mutation.Result{Mode: mutation.ModeDirect, TxHash: txHash, ReportID: "report-1"}, nil
}

func (w *testWriter) last(t *testing.T) call {
	t.Helper()

	w.mu.Lock()
	defer w.mu.Unlock()
	require.NotEmpty(t, w.calls)

	return w.calls[len(w.calls)-1]
}

func (w *testWriter) CreateAccount(_ context.Context, ident urbit.Identity) (mutation.Result, error) {
	return w.record("CreateAccount", ident.ID.Uint64())
}

func (w *testWriter) CreateSafe(_ context.Context, owners []common.Address, threshold uint64, salt *big.Int) (mutation.Result, error) {
	return w.record("CreateSafe", owners, threshold, salt)
}

func (w *testWriter) SendTokens(_ context.Context, ident urbit.Identity, t token.Token, to common.Address, amount *big.Int) (mutation.Result, error) {
	return w.record("SendTokens", ident.ID.Uint64(), t.Symbol, to, amount.String())
}

func (w *testWriter) LaunchToken(_ context.Context, ident urbit.Identity, in mutation.LaunchInput) (mutation.Result, error) {
	return w.record("LaunchToken", ident.ID.Uint64(), in)
}

func (w *testWriter) Mint(_ context.Context, ident urbit.Identity, recipients []proposal.Recipient) (mutation.Result, error) {
	return w.record("Mint", ident.ID.Uint64(), recipients)
}

func (w *testWriter) Dissolve(_ context.Context, ident urbit.Identity) (mutation.Result, error) {
	return w.record("Dissolve", ident.ID.Uint64())
}

func (w *testWriter) Terminate(_ context.Context, ident urbit.Identity, to common.Address, reset bool) (mutation.Result, error) {
	return w.record("Terminate", ident.ID.Uint64(), to, reset)
}

func (w *testWriter) SignProposal(_ context.Context, addr common.Address, hash common.Hash) (mutation.Result, error) {
	return w.record("SignProposal", addr, hash)
}

func (w *testWriter) ExecuteProposal(_ context.Context, addr common.Address, hash common.Hash) (mutation.Result, error) {
	return w.record("ExecuteProposal", addr, hash)
}

type testTokens struct {
	remembered []token.Token
}

func (*testTokens) Resolve(_ context.Context, addr common.Address) (token.Token, error) {
	if addr == synAddr {
		return synToken, nil
	}

	return token.Unknown(1, addr), nil
}

func (k *testTokens) Remember(t token.Token) error {
	k.remembered = append(k.remembered, t)
	return nil
}

func (k *testTokens) Known() []token.Token {
	return append([]token.Token{token.Native(1)}, k.remembered...)
}

type testENS struct{}

func (testENS) ResolveRecipient(_ context.Context, s string) (common.Address, error) {
	if s == "vitalik.eth" {
		return vitalik, nil
	}

	return common.Address{}, errors.New("unknown name " + s)
}

type testStore struct{ saves int }

func (s *testStore) Save() error {
	s.saves++
	return nil
}

func (s *testStore) Seal() datastore.DataStore {
	ds := datastore.NewMemoryDataStore()
	_ = ds.Tokens().Add(datastore.TokenRecord{ChainID: 1, Address: synAddr, Name: "Syndicate", Symbol: "SYN", Decimals: 6})

	return ds.Seal()
}

type fixture struct {
	app    *App
	writer *testWriter
	tokens *testTokens
	store  *testStore
	opts   []LoadOptions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{writer: &testWriter{}, tokens: &testTokens{}, store: &testStore{}}
	f.app = &App{
		ChainID:    1,
		Wallet:     testWallet{},
		Reader:     testReader{points: map[common.Address][]urbit.Identity{connected: {urbit.IdentityFromUint64(256), urbit.IdentityFromUint64(512)}}, safes: []common.Address{safeAddr}},
		Writer:     f.writer,
		Tokens:     f.tokens,
		Recipients: testENS{},
		Cache:      querycache.New(querycache.Config{TTL: time.Minute, Delay: time.Millisecond}, logger.Test(t)),
		History:    operations.NewMemoryReporter(),
		Operations: mutation.Registry(),
		Store:      f.store,
	}

	return f
}

// run executes the root command with args and returns its output.
func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root, err := NewRootCommand(Config{
		Logger: logger.Test(t),
		Load: func(_ context.Context, opts LoadOptions) (*App, error) {
			f.opts = append(f.opts, opts)
			return f.app, nil
		},
		Settings: func(path string) (string, error) { return "config from " + path + "\n", nil },
	})
	require.NoError(t, err)

	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err = root.ExecuteContext(t.Context())

	return out.String(), err
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	_, err := NewRootCommand(Config{})
	require.EqualError(t, err, "commands.Config: missing required fields: Logger, Load")

	_, err = NewRootCommand(Config{Logger: logger.Nop()})
	require.EqualError(t, err, "commands.Config: missing required fields: Load")
}

func TestNewRootCommand_Structure(t *testing.T) {
	t.Parallel()

	root, err := NewRootCommand(Config{
		Logger: logger.Nop(),
		Load:   func(context.Context, LoadOptions) (*App, error) { return nil, errors.New("not loaded") },
	})
	require.NoError(t, err)

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{
		"point", "points", "account", "syndicate", "proposals", "decode", "send", "sign", "execute",
		"launch", "mint", "dissolve", "terminate", "safe", "tokens", "operations", "history", "config", "datastore",
	})

	pdo, _, err := root.Find([]string{"pdo", "~zod"})
	require.NoError(t, err)
	assert.Equal(t, "syndicate", pdo.Name())

	create, _, err := root.Find([]string{"account", "create", "~zod"})
	require.NoError(t, err)
	assert.Equal(t, "create", create.Name())
	assert.Equal(t, "account", create.Parent().Name())

	for _, name := range []string{"config", "json"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
}

func TestPoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out, err := f.run(t, "point", "256")
	require.NoError(t, err)

	assert.Contains(t, out, "~marzod")
	assert.Contains(t, out, "star")
	assert.Contains(t, out, tbaAddr.Hex())
	assert.Contains(t, out, "1.5")
	assert.Contains(t, out, "ETH")
	assert.Equal(t, []LoadOptions{{ConfigPath: "slab.yaml"}}, f.opts)
}

func TestPoint_JSON(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out, err := f.run(t, "point", "~marzod", "--json", "-c", "/etc/slab.yaml")
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	assert.Equal(t, true, raw["deployed"])
	assert.Equal(t, "~marzod", raw["point"].(map[string]any)["patp"])
	assert.Equal(t, "/etc/slab.yaml", f.opts[0].ConfigPath)
}

func TestPoint_invalid(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.run(t, "point", "~notapoint")
	require.ErrorContains(t, err, `invalid point "~notapoint"`)
	assert.Empty(t, f.opts, "nothing is loaded for bad arguments")

	_, err = f.run(t, "point", "~doznec")
	require.ErrorContains(t, err, `invalid point "~doznec": not a canonical @p`)

	_, err = f.run(t, "point", "12x")
	require.ErrorContains(t, err, `invalid point "12x"`)
}

func TestPoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out, err := f.run(t, "points")
	require.NoError(t, err)
	assert.Contains(t, out, "~marzod")
	assert.Contains(t, out, "~binzod")

	out, err = f.run(t, "points", cosigner.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "holds no points")
}

func TestAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out, err := f.run(t, "account")
	require.NoError(t, err)
	assert.Contains(t, out, connected.Hex())
	assert.Contains(t, out, "SYN")
	assert.Contains(t, out, safeAddr.Hex())
}

func TestSyndicate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out, err := f.run(t, "pdo", "512")
	require.NoError(t, err)

	assert.Contains(t, out, safeAddr.Hex())
	assert.Contains(t, out, "2 of 2")
	assert.Contains(t, out, "dissolve SYN")
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, safeTx.Hex())

	_, err = f.run(t, "syndicate", "256")
	require.ErrorIs(t, err, mutation.ErrNotSyndicate)
}

func TestProposals_JSON(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out, err := f.run(t, "proposals", safeAddr.Hex(), "--json")
	require.NoError(t, err)

	var got struct {
		Safe      safeJSON       `json:"safe"`
		Proposals []proposalJSON `json:"proposals"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, uint64(4), got.Safe.NextNonce)
	require.Len(t, got.Proposals, 1)
	assert.Equal(t, "dissolve", got.Proposals[0].Kind)
	assert.False(t, got.Proposals[0].Executable)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out, err := f.run(t, "decode", "--to", vitalik.Hex(), "--value", "1000000000000000000")
	require.NoError(t, err)
	assert.Contains(t, out, "transfer")
	assert.Contains(t, out, "send 1 ETH to "+vitalik.Hex())

	out, err = f.run(t, "decode", "--to", vitalik.Hex(), "--data", "0xdeadbeef01")
	require.NoError(t, err)
	assert.Contains(t, out, "unknown call 0xdeadbeef")

	_, err = f.run(t, "decode", "--to", vitalik.Hex(), "--value", "1.5")
	require.ErrorContains(t, err, "--value must be a decimal amount of wei")
}

func TestSend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    call
		wantErr string
	}{
		{
			name: "native to ENS name",
			args: []string{"send", "~marzod", "vitalik.eth", "0.5"},
			want: call{method: "SendTokens", args: []any{uint64(256), "ETH", vitalik, "500000000000000000"}},
		},
		{
			name: "erc20 uses token decimals",
			args: []string{"send", "256", cosigner.Hex(), "2.5", "--token", synAddr.Hex()},
			want: call{method: "SendTokens", args: []any{uint64(256), "SYN", cosigner, "2500000"}},
		},
		{
			name:    "too many decimals",
			args:    []string{"send", "256", cosigner.Hex(), "0.0000001", "--token", synAddr.Hex()},
			wantErr: "more than 6 decimals",
		},
		{
			name:    "unknown name",
			args:    []string{"send", "256", "nobody.eth", "1"},
			wantErr: "unknown name nobody.eth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			out, err := f.run(t, tt.args...)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				assert.Empty(t, f.writer.calls)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.writer.last(t))
			assert.Contains(t, out, "direct")
			assert.Contains(t, out, txHash.Hex())
			assert.Contains(t, out, "report-1")
		})
	}
}

func TestWrites(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want call
	}{
		{
			name: "sign",
			args: []string{"sign", safeAddr.Hex(), safeTx.Hex()},
			want: call{method: "SignProposal", args: []any{safeAddr, safeTx}},
		},
		{
			name: "execute",
			args: []string{"execute", safeAddr.Hex(), safeTx.Hex()},
			want: call{method: "ExecuteProposal", args: []any{safeAddr, safeTx}},
		},
		{
			name: "dissolve",
			args: []string{"dissolve", "512"},
			want: call{method: "Dissolve", args: []any{uint64(512)}},
		},
		{
			name: "terminate",
			args: []string{"terminate", "512", "vitalik.eth", "--reset"},
			want: call{method: "Terminate", args: []any{uint64(512), vitalik, true}},
		},
		{
			name: "account create",
			args: []string{"account", "create", "~marzod"},
			want: call{method: "CreateAccount", args: []any{uint64(256)}},
		},
		{
			name: "mint in launched token units",
			args: []string{"mint", "512", cosigner.Hex() + "=1.5", "vitalik.eth=2"},
			want: call{method: "Mint", args: []any{uint64(512), []proposal.Recipient{
				{To: cosigner, Amount: big.NewInt(1_500_000)},
				{To: vitalik, Amount: big.NewInt(2_000_000)},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			_, err := f.run(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.writer.last(t))
		})
	}
}

func TestWrites_rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "bad hash", args: []string{"sign", safeAddr.Hex(), "0x1234"}, wantErr: `invalid hash "0x1234"`},
		{name: "bad safe", args: []string{"execute", "0x12", safeTx.Hex()}, wantErr: `invalid address "0x12"`},
		{name: "mint without amount", args: []string{"mint", "512", cosigner.Hex()}, wantErr: "want <address>=<amount>"},
		{name: "mint without token", args: []string{"mint", "256", cosigner.Hex() + "=1"}, wantErr: mutation.ErrNoLaunchedToken.Error()},
		{name: "launch max below supply", args: []string{"launch", "256", "--name", "A", "--symbol", "A", "--supply", "10", "--max-supply", "1"}, wantErr: "--max-supply is below --supply"},
		{name: "launch missing flags", args: []string{"launch", "256"}, wantErr: `required flag(s)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			_, err := f.run(t, tt.args...)
			require.ErrorContains(t, err, tt.wantErr)
			assert.Empty(t, f.writer.calls)
		})
	}
}

func TestLaunch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.run(t, "launch", "~marzod", "--name", "Marzod", "--symbol", "MZD", "--supply", "1000", "--max-supply", "21000", "--fee", "250", "--salt", "0x01")
	require.NoError(t, err)

	got := f.writer.last(t)
	require.Equal(t, "LaunchToken", got.method)
	in, ok := got.args[1].(mutation.LaunchInput)
	require.True(t, ok)
	assert.Equal(t, "Marzod", in.Name)
	assert.Equal(t, "MZD", in.Symbol)
	assert.Equal(t, "1000000000000000000000", in.InitialSupply.String())
	assert.Equal(t, "21000000000000000000000", in.MaxSupply.String())
	assert.Equal(t, int64(250), in.ProtocolFee.Int64())
	assert.Equal(t, byte(1), in.Salt[31])
	assert.Equal(t, common.Address{}, in.Implementation)
}

func TestLaunch_optionalFlags(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.run(t, "launch", "~marzod", "--name", "Marzod", "--symbol", "MZD", "--supply", "0", "--max-supply", "1")
	require.NoError(t, err)

	in, ok := f.writer.last(t).args[1].(mutation.LaunchInput)
	require.True(t, ok)
	assert.Nil(t, in.ProtocolFee, "sent as 0")
	assert.Equal(t, common.Address{}, in.Implementation)
	assert.Equal(t, [32]byte{}, in.Salt)

	help, err := f.run(t, "launch", "--help")
	require.NoError(t, err)
	assert.Contains(t, help, "0 when empty")
	assert.Contains(t, help, "the zero address when empty")
	assert.NotContains(t, help, "default when empty")
}

func TestWrite_error(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.writer.err = mutation.ErrNotOwner
	_, err := f.run(t, "dissolve", "768")
	require.ErrorIs(t, err, mutation.ErrNotOwner)
}

func TestSafe(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.run(t, "safe", "create", "--owner", cosigner.Hex(), "--owner", "vitalik.eth", "--threshold", "2", "--salt", "7")
	require.NoError(t, err)
	assert.Equal(t, call{method: "CreateSafe", args: []any{[]common.Address{cosigner, vitalik}, uint64(2), big.NewInt(7)}}, f.writer.last(t))
	assert.Equal(t, 1, f.store.saves)

	_, err = f.run(t, "safe", "create", "--owner", cosigner.Hex()+","+vitalik.Hex())
	require.NoError(t, err)
	assert.Equal(t, call{method: "CreateSafe", args: []any{[]common.Address{cosigner, vitalik}, uint64(1), (*big.Int)(nil)}}, f.writer.last(t))

	_, err = f.run(t, "safe", "create", "--threshold", "-1")
	require.Error(t, err)

	out, err := f.run(t, "safe", "list")
	require.NoError(t, err)
	assert.Contains(t, out, safeAddr.Hex())
}

func TestTokens(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out, err := f.run(t, "tokens", "add", synAddr.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "added SYN")
	assert.Equal(t, []token.Token{synToken}, f.tokens.remembered)
	assert.Equal(t, 1, f.store.saves)

	out, err = f.run(t, "tokens")
	require.NoError(t, err)
	assert.Contains(t, out, "ETH")
	assert.Contains(t, out, synAddr.Hex())
}

func TestOperations(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out, err := f.run(t, "operations")
	require.NoError(t, err)
	for _, id := range []string{"send-transaction", "deploy-safe", "propose-safe-transaction", "confirm-safe-transaction"} {
		assert.Contains(t, out, id)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	def := mutation.SendTransaction.Def()
	ok := operations.NewReport(def, "in", "out", nil)
	failed := operations.NewReport(def, "in", "", errors.New("execution reverted"))
	require.NoError(t, f.app.History.AddReport(ok.ToGenericReport()))
	require.NoError(t, f.app.History.AddReport(failed.ToGenericReport()))

	out, err := f.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, ok.ID)
	assert.Contains(t, out, "execution reverted")
	assert.Less(t, bytes.Index([]byte(out), []byte(failed.ID)), bytes.Index([]byte(out), []byte(ok.ID)), "most recent first")

	out, err = f.run(t, "history", "-n", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, ok.ID)

	out, err = f.run(t, "history", "show", ok.ID)
	require.NoError(t, err)
	var got operations.Report[any, any]
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, ok.ID, got.ID)
	assert.Equal(t, "out", got.Output)

	_, err = f.run(t, "history", "show", "missing")
	require.ErrorIs(t, err, operations.ErrReportNotFound)
}

func TestConfigCmd(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out, err := f.run(t, "config", "-c", "custom.yaml")
	require.NoError(t, err)
	assert.Equal(t, "config from custom.yaml\n", out)
}

func TestDatastoreCmd(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out, err := f.run(t, "datastore")
	require.NoError(t, err)
	assert.Contains(t, out, "tokens:")
	assert.Contains(t, out, "symbol: SYN")
	assert.Contains(t, out, "safes:")
}

func TestLoadError(t *testing.T) {
	t.Parallel()

	root, err := NewRootCommand(Config{
		Logger: logger.Test(t),
		Load:   func(context.Context, LoadOptions) (*App, error) { return nil, errors.New("dial failed") },
	})
	require.NoError(t, err)
	root.SetOut(new(bytes.Buffer))
	root.SetArgs([]string{"point", "256"})

	require.EqualError(t, root.ExecuteContext(t.Context()), "dial failed")
}
