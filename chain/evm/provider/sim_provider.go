package provider

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/tocwex/slab-sub000/chain/evm"
)

var (
	// SimChainID is the chain ID of every simulated chain.
	SimChainID = params.AllDevChainProtocolChanges.ChainID
	// prefundAmountWei is the balance of every generated account: 1,000,000 Ether.
	prefundAmountWei = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(params.Ether))
)

// SimClient wraps a simulated backend. It implements evm.OnchainClient and exposes Commit.
type SimClient struct {
	mu sync.Mutex

	simulated.Client
	sim *simulated.Backend
}

// NewSimClient creates a new SimClient from a simulated backend.
func NewSimClient(t *testing.T, sim *simulated.Backend) *SimClient {
	t.Helper()

	require.NotNil(t, sim, "simulated backend must not be nil")

	return &SimClient{sim: sim, Client: sim.Client()}
}

// Commit mines a block with the pending transactions.
func (b *SimClient) Commit() common.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.sim.Commit()
}

// SimChainProviderConfig holds the configuration to initialize the SimChainProvider.
type SimChainProviderConfig struct {
	// Optional: NumAdditionalAccounts is the number of prefunded accounts generated besides the
	// signer of the chain.
	NumAdditionalAccounts uint
	// Optional: Alloc adds accounts (e.g. contract code) to the genesis state.
	Alloc types.GenesisAlloc
}

// SimChainProvider manages a simulated EVM chain backed by go-ethereum's in memory backend.
// It is meant for tests only.
type SimChainProvider struct {
	t      *testing.T
	config SimChainProviderConfig

	chain  *evm.Chain
	client *SimClient
	users  []SignerGenerator
}

// NewSimChainProvider creates a new SimChainProvider.
func NewSimChainProvider(t *testing.T, config SimChainProviderConfig) *SimChainProvider {
	t.Helper()

	return &SimChainProvider{t: t, config: config}
}

// Initialize sets up the simulated chain with a prefunded signer and the additional accounts.
// The confirm function commits a block before waiting for the receipt.
func (p *SimChainProvider) Initialize(ctx context.Context) (*evm.Chain, error) {
	if p.chain != nil {
		return p.chain, nil
	}

	key, err := crypto.GenerateKey()
	require.NoError(p.t, err, "failed to generate signer key")
	signer := TransactorFromECDSA(key)

	signerOpts, err := signer.Generate(SimChainID)
	require.NoError(p.t, err)

	genesis := types.GenesisAlloc{
		signerOpts.From: {Balance: prefundAmountWei},
	}
	for addr, acc := range p.config.Alloc {
		genesis[addr] = acc
	}

	for range p.config.NumAdditionalAccounts {
		userKey, gerr := crypto.GenerateKey()
		require.NoError(p.t, gerr)

		genesis[crypto.PubkeyToAddress(userKey.PublicKey)] = types.Account{Balance: prefundAmountWei}
		p.users = append(p.users, TransactorFromECDSA(userKey))
	}

	backend := simulated.NewBackend(genesis, simulated.WithBlockGasLimit(50000000))
	backend.Commit()

	p.client = NewSimClient(p.t, backend)
	p.t.Cleanup(func() { _ = backend.Close() })

	p.chain = &evm.Chain{
		ChainID:  SimChainID.Uint64(),
		Client:   p.client,
		Signer:   signerOpts,
		SignHash: signer.SignHash,
		Confirm: func(tx *types.Transaction) (uint64, error) {
			if tx == nil {
				return 0, fmt.Errorf("tx was nil, nothing to confirm for chain %d", SimChainID)
			}

			p.client.Commit()

			waitCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()

			receipt, werr := bind.WaitMined(waitCtx, p.client, tx)
			if werr != nil {
				return 0, fmt.Errorf("tx %s failed to confirm: %w", tx.Hash().Hex(), werr)
			}
			if receipt.Status == types.ReceiptStatusFailed {
				reason, rerr := getErrorReasonFromTx(waitCtx, p.client, signerOpts.From, tx, receipt)
				if rerr == nil && reason != "" {
					return 0, fmt.Errorf("%w: tx %s: %s", ErrReverted, tx.Hash().Hex(), reason)
				}

				return 0, fmt.Errorf("%w: tx %s", ErrReverted, tx.Hash().Hex())
			}

			return receipt.BlockNumber.Uint64(), nil
		},
	}

	return p.chain, nil
}

// Client returns the simulated client. Initialize must be called first.
func (p *SimChainProvider) Client() *SimClient {
	return p.client
}

// Users returns the signers of the additional prefunded accounts.
func (p *SimChainProvider) Users() []SignerGenerator {
	return p.users
}

// Name returns the name of the SimChainProvider.
func (*SimChainProvider) Name() string {
	return "Simulated EVM Chain Provider"
}
