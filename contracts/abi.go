// Package contracts holds the ABIs and deployment addresses of every contract slab talks to.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// TokenboundAccountABIJSON is the ERC-6551 v3 account surface used by slab.
const TokenboundAccountABIJSON = `[
	{"type":"function","name":"execute","stateMutability":"payable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"operation","type":"uint8"}],"outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"token","stateMutability":"view","inputs":[],"outputs":[{"name":"chainId","type":"uint256"},{"name":"tokenContract","type":"address"},{"name":"tokenId","type":"uint256"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"state","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// ERC6551RegistryABIJSON is the canonical ERC-6551 registry.
const ERC6551RegistryABIJSON = `[
	{"type":"function","name":"createAccount","stateMutability":"nonpayable","inputs":[{"name":"implementation","type":"address"},{"name":"salt","type":"bytes32"},{"name":"chainId","type":"uint256"},{"name":"tokenContract","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"account","stateMutability":"view","inputs":[{"name":"implementation","type":"address"},{"name":"salt","type":"bytes32"},{"name":"chainId","type":"uint256"},{"name":"tokenContract","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"ERC6551AccountCreated","anonymous":false,"inputs":[{"name":"account","type":"address","indexed":false},{"name":"implementation","type":"address","indexed":true},{"name":"salt","type":"bytes32","indexed":false},{"name":"chainId","type":"uint256","indexed":false},{"name":"tokenContract","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]}
]`

// ERC20ABIJSON is the standard EIP-20 surface.
const ERC20ABIJSON = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

// SyndicateTokenABIJSON is the token launched by a Syndicate. It is an ERC-20 whose owner (the
// Syndicate's tokenbound account) can mint and dissolve.
const SyndicateTokenABIJSON = `[
	{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"batchMint","stateMutability":"nonpayable","inputs":[{"name":"accounts","type":"address[]"},{"name":"amounts","type":"uint256[]"}],"outputs":[]},
	{"type":"function","name":"dissolveSyndicate","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"deployer","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"maxSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"azimuthPoint","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// SyndicateDeployerABIJSON is the factory that launches Syndicate tokens.
const SyndicateDeployerABIJSON = `[
	{"type":"function","name":"deploySyndicate","stateMutability":"nonpayable","inputs":[{"name":"implementation","type":"address"},{"name":"salt","type":"bytes32"},{"name":"initialSupply","type":"uint256"},{"name":"maxSupply","type":"uint256"},{"name":"azimuthPoint","type":"uint256"},{"name":"protocolFee","type":"uint256"},{"name":"name","type":"string"},{"name":"symbol","type":"string"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"syndicateTokenOf","stateMutability":"view","inputs":[{"name":"azimuthPoint","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

// EclipticABIJSON is the Azimuth ERC-721 surface (the identity registry).
const EclipticABIJSON = `[
	{"type":"function","name":"transferPoint","stateMutability":"nonpayable","inputs":[{"name":"_point","type":"uint32"},{"name":"_target","type":"address"},{"name":"_reset","type":"bool"}],"outputs":[]},
	{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"_tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable","inputs":[{"name":"_from","type":"address"},{"name":"_to","type":"address"},{"name":"_tokenId","type":"uint256"}],"outputs":[]}
]`

// AzimuthABIJSON is the Azimuth state contract.
const AzimuthABIJSON = `[
	{"type":"function","name":"getOwnedPoints","stateMutability":"view","inputs":[{"name":"_whose","type":"address"}],"outputs":[{"name":"ownedPoints","type":"uint32[]"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// SafeABIJSON is the Gnosis Safe v1.3.0 surface used by slab.
const SafeABIJSON = `[
	{"type":"function","name":"setup","stateMutability":"nonpayable","inputs":[{"name":"_owners","type":"address[]"},{"name":"_threshold","type":"uint256"},{"name":"to","type":"address"},{"name":"data","type":"bytes"},{"name":"fallbackHandler","type":"address"},{"name":"paymentToken","type":"address"},{"name":"payment","type":"uint256"},{"name":"paymentReceiver","type":"address"}],"outputs":[]},
	{"type":"function","name":"execTransaction","stateMutability":"payable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"operation","type":"uint8"},{"name":"safeTxGas","type":"uint256"},{"name":"baseGas","type":"uint256"},{"name":"gasPrice","type":"uint256"},{"name":"gasToken","type":"address"},{"name":"refundReceiver","type":"address"},{"name":"signatures","type":"bytes"}],"outputs":[{"name":"success","type":"bool"}]},
	{"type":"function","name":"getOwners","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"getThreshold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"nonce","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// SafeProxyFactoryABIJSON is the Gnosis Safe v1.3.0 proxy factory.
const SafeProxyFactoryABIJSON = `[
	{"type":"function","name":"createProxyWithNonce","stateMutability":"nonpayable","inputs":[{"name":"_singleton","type":"address"},{"name":"initializer","type":"bytes"},{"name":"saltNonce","type":"uint256"}],"outputs":[{"name":"proxy","type":"address"}]},
	{"type":"event","name":"ProxyCreation","anonymous":false,"inputs":[{"name":"proxy","type":"address","indexed":false},{"name":"singleton","type":"address","indexed":false}]}
]`

// ENSRegistryABIJSON and ENSResolverABIJSON cover forward resolution only.
const ENSRegistryABIJSON = `[
	{"type":"function","name":"resolver","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]}
]`

const ENSResolverABIJSON = `[
	{"type":"function","name":"addr","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]}
]`

var (
	TokenboundAccountABI = mustParse(TokenboundAccountABIJSON)
	ERC6551RegistryABI   = mustParse(ERC6551RegistryABIJSON)
	ERC20ABI             = mustParse(ERC20ABIJSON)
	SyndicateTokenABI    = mustParse(SyndicateTokenABIJSON)
	SyndicateDeployerABI = mustParse(SyndicateDeployerABIJSON)
	EclipticABI          = mustParse(EclipticABIJSON)
	AzimuthABI           = mustParse(AzimuthABIJSON)
	SafeABI              = mustParse(SafeABIJSON)
	SafeProxyFactoryABI  = mustParse(SafeProxyFactoryABIJSON)
	ENSRegistryABI       = mustParse(ENSRegistryABIJSON)
	ENSResolverABI       = mustParse(ENSResolverABIJSON)
)

func mustParse(s string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}

	return &parsed
}
