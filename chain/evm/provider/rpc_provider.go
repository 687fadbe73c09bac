package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocwex/slab-sub000/chain/evm"
	"github.com/tocwex/slab-sub000/pkg/logger"
)

// RPCChainProviderConfig holds the configuration to initialize the RPCChainProvider.
type RPCChainProviderConfig struct {
	// Optional: Signer signs transactions and Safe hashes. Without it the chain is read-only.
	Signer SignerGenerator
	// Required: RPCs to dial, primary first.
	RPCs []evm.RPC
	// Required: ConfirmFunctor generates the confirmation function of the chain.
	ConfirmFunctor ConfirmFunctor
	// Optional: ClientOpts configure the MultiClient.
	ClientOpts []func(client *evm.MultiClient)
	// Optional: Logger defaults to a production logger.
	Logger logger.Logger
}

func (c RPCChainProviderConfig) validate() error {
	if c.ConfirmFunctor == nil {
		return errors.New("confirm functor is required")
	}
	if len(c.RPCs) == 0 {
		return errors.New("at least one RPC is required")
	}

	return nil
}

// RPCChainProvider initializes an evm.Chain backed by a MultiClient.
type RPCChainProvider struct {
	chainID uint64
	config  RPCChainProviderConfig

	chain *evm.Chain
}

// NewRPCChainProvider creates a new RPCChainProvider for chainID.
func NewRPCChainProvider(chainID uint64, config RPCChainProviderConfig) *RPCChainProvider {
	return &RPCChainProvider{chainID: chainID, config: config}
}

// Initialize dials the RPCs and builds the chain. Repeated calls return the same chain.
func (p *RPCChainProvider) Initialize(ctx context.Context) (*evm.Chain, error) {
	if p.chain != nil {
		return p.chain, nil
	}

	if p.config.Logger == nil {
		lggr, err := logger.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create default logger: %w", err)
		}
		p.config.Logger = lggr
	}

	if err := p.config.validate(); err != nil {
		return nil, fmt.Errorf("failed to validate provider config: %w", err)
	}

	client, err := evm.NewMultiClient(p.config.Logger, evm.RPCConfig{
		ChainID: p.chainID,
		RPCs:    p.config.RPCs,
	}, p.config.ClientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-client: %w", err)
	}

	c := &evm.Chain{ChainID: p.chainID, Client: client}

	var from common.Address
	if p.config.Signer != nil {
		c.Signer, err = p.config.Signer.Generate(c.BigChainID())
		if err != nil {
			return nil, fmt.Errorf("failed to generate signer: %w", err)
		}
		c.SignHash = p.config.Signer.SignHash
		from = c.Signer.From
	}

	c.Confirm, err = p.config.ConfirmFunctor.Generate(ctx, p.chainID, client, from)
	if err != nil {
		return nil, fmt.Errorf("failed to generate confirm function: %w", err)
	}

	p.chain = c

	return c, nil
}

// Name returns the name of the RPCChainProvider.
func (*RPCChainProvider) Name() string {
	return "EVM RPC Chain Provider"
}

// ChainID returns the chain ID the provider connects to.
func (p *RPCChainProvider) ChainID() uint64 {
	return p.chainID
}
