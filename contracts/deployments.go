package contracts

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	ChainIDMainnet uint64 = 1
	ChainIDSepolia uint64 = 11155111
)

// ErrUnknownChain is returned when no deployment is registered for a chain ID.
var ErrUnknownChain = errors.New("no contract deployment registered for chain")

// Deployment lists the contract addresses slab needs on one chain.
type Deployment struct {
	ChainID uint64

	// Azimuth identity registry.
	Azimuth  common.Address
	Ecliptic common.Address

	// ERC-6551 tokenbound accounts.
	ERC6551Registry   common.Address
	TokenboundAccount common.Address
	// TokenboundSalt is the salt every slab account is derived with.
	TokenboundSalt [32]byte

	// Syndicate token factory. Zero when not deployed on the chain.
	SyndicateDeployer common.Address

	// Gnosis Safe v1.3.0.
	SafeSingleton       common.Address
	SafeProxyFactory    common.Address
	SafeFallbackHandler common.Address

	ENSRegistry common.Address
}

var (
	// Shared across chains via deterministic deployments.
	erc6551Registry     = common.HexToAddress("0x000000006551c19487814612e58FE06813775758")
	tokenboundV3Account = common.HexToAddress("0x41C8f39463A868d3A88af00cd0fe7102F30E44eC")
	safeL2Singleton     = common.HexToAddress("0x3E5c63644E683549055b9Be8653de26E0B4CD36E")
	safeProxyFactory    = common.HexToAddress("0xa6B71E26C5e0845f74c812102Ca7114b6a896AB2")
	safeFallbackHandler = common.HexToAddress("0xf48f2B2d2a534e402487b3ee7C18c33Aec0Fe5e4")
	ensRegistry         = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

	deployments = map[uint64]Deployment{
		ChainIDMainnet: {
			ChainID:             ChainIDMainnet,
			Azimuth:             common.HexToAddress("0x223c067F8CF28ae173EE5CafEa60cA44C335fecB"),
			Ecliptic:            common.HexToAddress("0x33EeCbf908478C10614626A9D304bfe18B78DD73"),
			ERC6551Registry:     erc6551Registry,
			TokenboundAccount:   tokenboundV3Account,
			SafeSingleton:       safeL2Singleton,
			SafeProxyFactory:    safeProxyFactory,
			SafeFallbackHandler: safeFallbackHandler,
			ENSRegistry:         ensRegistry,
		},
		ChainIDSepolia: {
			// Azimuth test deployments vary; supply them through contracts overrides.
			ChainID:             ChainIDSepolia,
			ERC6551Registry:     erc6551Registry,
			TokenboundAccount:   tokenboundV3Account,
			SafeSingleton:       safeL2Singleton,
			SafeProxyFactory:    safeProxyFactory,
			SafeFallbackHandler: safeFallbackHandler,
			ENSRegistry:         ensRegistry,
		},
	}
)

// DeploymentFor returns the registered deployment for a chain.
func DeploymentFor(chainID uint64) (Deployment, error) {
	d, ok := deployments[chainID]
	if !ok {
		return Deployment{}, fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}

	return d, nil
}

// Overrides replaces individual addresses of a deployment, typically from configuration.
// Empty strings leave the registered value untouched.
type Overrides struct {
	Azimuth           string `mapstructure:"azimuth" yaml:"azimuth"`
	Ecliptic          string `mapstructure:"ecliptic" yaml:"ecliptic"`
	ERC6551Registry   string `mapstructure:"erc6551_registry" yaml:"erc6551_registry"`
	TokenboundAccount string `mapstructure:"tokenbound_account" yaml:"tokenbound_account"`
	SyndicateDeployer string `mapstructure:"syndicate_deployer" yaml:"syndicate_deployer"`
	SafeSingleton     string `mapstructure:"safe_singleton" yaml:"safe_singleton"`
	SafeProxyFactory  string `mapstructure:"safe_proxy_factory" yaml:"safe_proxy_factory"`
	ENSRegistry       string `mapstructure:"ens_registry" yaml:"ens_registry"`
}

// Apply returns a copy of d with the overrides applied.
func (o Overrides) Apply(d Deployment) (Deployment, error) {
	fields := []struct {
		name string
		val  string
		dst  *common.Address
	}{
		{"azimuth", o.Azimuth, &d.Azimuth},
		{"ecliptic", o.Ecliptic, &d.Ecliptic},
		{"erc6551_registry", o.ERC6551Registry, &d.ERC6551Registry},
		{"tokenbound_account", o.TokenboundAccount, &d.TokenboundAccount},
		{"syndicate_deployer", o.SyndicateDeployer, &d.SyndicateDeployer},
		{"safe_singleton", o.SafeSingleton, &d.SafeSingleton},
		{"safe_proxy_factory", o.SafeProxyFactory, &d.SafeProxyFactory},
		{"ens_registry", o.ENSRegistry, &d.ENSRegistry},
	}
	for _, f := range fields {
		if f.val == "" {
			continue
		}
		if !common.IsHexAddress(f.val) {
			return Deployment{}, fmt.Errorf("invalid %s address %q", f.name, f.val)
		}
		*f.dst = common.HexToAddress(f.val)
	}

	return d, nil
}
