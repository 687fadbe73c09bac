package datastore

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrSafeNotFound = errors.New("no safe record can be found for the provided key")
	ErrSafeExists   = errors.New("a safe record with the supplied key already exists")
)

// SafeRecord lists the Safes slab created for one owner set on one chain.
type SafeRecord struct {
	ChainID   uint64           `json:"chainId" yaml:"chainId"`
	Owners    []common.Address `json:"owners" yaml:"owners"`
	Threshold uint64           `json:"threshold" yaml:"threshold"`
	Addresses []common.Address `json:"addresses" yaml:"addresses"`
}

// Key returns the SafeKey of the record.
func (r SafeRecord) Key() SafeKey {
	return NewSafeKey(r.ChainID, r.Owners)
}

// Clone returns a copy of the record.
func (r SafeRecord) Clone() SafeRecord {
	return SafeRecord{
		ChainID:   r.ChainID,
		Owners:    slices.Clone(r.Owners),
		Threshold: r.Threshold,
		Addresses: slices.Clone(r.Addresses),
	}
}

// WithAddress returns a copy of the record with address appended, unless already present.
func (r SafeRecord) WithAddress(address common.Address) SafeRecord {
	c := r.Clone()
	if !slices.Contains(c.Addresses, address) {
		c.Addresses = append(c.Addresses, address)
	}

	return c
}

// SafeKey identifies an owner set on a chain. Owner order does not matter.
type SafeKey struct {
	chainID uint64
	owners  string
}

// NewSafeKey creates a new SafeKey from an unordered owner list.
func NewSafeKey(chainID uint64, owners []common.Address) SafeKey {
	return SafeKey{chainID: chainID, owners: ownerSetID(owners)}
}

func (k SafeKey) ChainID() uint64 { return k.chainID }

// Equals returns true if both keys name the same owner set on the same chain.
func (k SafeKey) Equals(other SafeKey) bool {
	return k.chainID == other.chainID && k.owners == other.owners
}

func (k SafeKey) String() string {
	return fmt.Sprintf("%d:%s", k.chainID, k.owners)
}

func ownerSetID(owners []common.Address) string {
	sorted := slices.Clone(owners)
	slices.SortFunc(sorted, func(a, b common.Address) int {
		return bytes.Compare(a.Bytes(), b.Bytes())
	})
	sorted = slices.Compact(sorted)

	parts := make([]string, len(sorted))
	for i, o := range sorted {
		parts[i] = strings.ToLower(o.Hex())
	}

	return strings.Join(parts, ",")
}
