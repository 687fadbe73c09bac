package datastore

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrTokenNotFound = errors.New("no token record can be found for the provided key")
	ErrTokenExists   = errors.New("a token record with the supplied key already exists")
)

// TokenRecord is cached ERC-20 metadata.
type TokenRecord struct {
	ChainID  uint64          `json:"chainId" yaml:"chainId"`
	Address  common.Address  `json:"address" yaml:"address"`
	Name     string          `json:"name" yaml:"name"`
	Symbol   string          `json:"symbol" yaml:"symbol"`
	Decimals uint8           `json:"decimals" yaml:"decimals"`
	Deployer *common.Address `json:"deployer,omitempty" yaml:"deployer,omitempty"`
}

// Key returns the TokenKey of the record.
func (r TokenRecord) Key() TokenKey {
	return NewTokenKey(r.ChainID, r.Address)
}

// Clone returns a copy of the record.
func (r TokenRecord) Clone() TokenRecord {
	c := r
	if r.Deployer != nil {
		d := *r.Deployer
		c.Deployer = &d
	}

	return c
}

// TokenKey identifies a token by chain and contract address.
type TokenKey struct {
	chainID uint64
	address common.Address
}

// NewTokenKey creates a new TokenKey.
func NewTokenKey(chainID uint64, address common.Address) TokenKey {
	return TokenKey{chainID: chainID, address: address}
}

func (k TokenKey) ChainID() uint64 { return k.chainID }

func (k TokenKey) Address() common.Address { return k.address }

// Equals returns true if both keys name the same token.
func (k TokenKey) Equals(other TokenKey) bool {
	return k.chainID == other.chainID && k.address == other.address
}

func (k TokenKey) String() string {
	return fmt.Sprintf("%d:%s", k.chainID, k.address.Hex())
}
