// Package account resolves the on-chain and Safe service state of points, their tokenbound
// accounts and the Syndicate Safes owning them. Every read goes through the query cache.
package account

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tocwex/slab-sub000/proposal"
	"github.com/tocwex/slab-sub000/querycache"
	"github.com/tocwex/slab-sub000/safe"
	"github.com/tocwex/slab-sub000/token"
	"github.com/tocwex/slab-sub000/urbit"
)

var (
	// ErrNotInitialized is returned when a required client was not configured.
	ErrNotInitialized = errors.New("account resolver not initialized")
	// ErrNotSyndicate is returned when a point is not owned by a Safe.
	ErrNotSyndicate = errors.New("point is not owned by a syndicate safe")
	// ErrNoTokenboundID is returned for identities that are not Azimuth NFTs.
	ErrNoTokenboundID = errors.New("identity has no azimuth token")
)

// Caller reads contract state and native balances. evm.OnchainClient satisfies it.
type Caller interface {
	bind.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// SafeService is the part of the Safe transaction service the resolver reads.
type SafeService interface {
	SafeInfo(ctx context.Context, safe common.Address) (safe.Info, error)
	SafesByOwner(ctx context.Context, owner common.Address) ([]common.Address, error)
	PendingTransactions(ctx context.Context, safe common.Address, minNonce uint64) ([]safe.MultisigTransaction, error)
}

// Holding is the balance of one token.
type Holding struct {
	Token   token.Token
	Balance *big.Int
}

// TokenboundAccount is the ERC-6551 account of a point.
type TokenboundAccount struct {
	Identity urbit.Identity
	Address  common.Address
	Deployed bool
	// Owner is the current owner of the point NFT.
	Owner         common.Address
	Holdings      map[common.Address]Holding
	LaunchedToken *token.Token
}

// SafeAccount is a multisig wallet as reported by the transaction service.
type SafeAccount struct {
	Address   common.Address
	Owners    []common.Address
	Threshold uint64
	Nonce     uint64
	Proposals []proposal.Proposal
}

// IsOwner reports whether addr is one of the Safe's owners.
func (s SafeAccount) IsOwner(addr common.Address) bool {
	for _, o := range s.Owners {
		if o == addr {
			return true
		}
	}

	return false
}

// NextNonce is the nonce a new proposal gets.
func (s SafeAccount) NextNonce() uint64 {
	txs := make([]safe.MultisigTransaction, len(s.Proposals))
	for i, p := range s.Proposals {
		txs[i] = p.Tx
	}

	return safe.NextNonce(s.Nonce, txs)
}

// Syndicate is a point held by a Safe, together with its tokenbound account.
type Syndicate struct {
	TokenboundAccount

	Safe SafeAccount
}

// Cache keys. Mutations invalidate them by prefix.
func PointsKey(owner common.Address) string  { return querycache.Key("points", owner) }
func OwnerKey(point *big.Int) string         { return querycache.Key("owner", point) }
func TokenboundKey(point *big.Int) string    { return querycache.Key("tba", point) }
func LaunchedKey(point *big.Int) string      { return querycache.Key("launched", point) }
func HoldingsKey(addr common.Address) string { return querycache.Key("holdings", addr) }
func SafeKey(addr common.Address) string     { return querycache.Key("safe", addr) }
func SafesOfKey(owner common.Address) string { return querycache.Key("safes", owner) }
func DeployedKey(addr common.Address) string { return querycache.Key("deployed", addr) }
