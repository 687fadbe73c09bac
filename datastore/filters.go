package datastore

import (
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

// The filters below are composable and can be combined, e.g.
//
//	safes := ds.Safes().Filter(SafeByChainID(1), SafeByOwner(me))
var (
	_ FilterFunc[TokenKey, TokenRecord] = TokenByChainID(0)
	_ FilterFunc[SafeKey, SafeRecord]   = SafeByChainID(0)
	_ FilterFunc[SafeKey, SafeRecord]   = SafeByOwner(common.Address{})
)

func recordFilter[K Comparable[K], R UniqueRecord[K, R]](predicate func(R) bool) FilterFunc[K, R] {
	return func(records []R) []R {
		filtered := make([]R, 0, len(records))
		for _, record := range records {
			if predicate(record) {
				filtered = append(filtered, record)
			}
		}

		return filtered
	}
}

// TokenByChainID only includes tokens on the provided chain.
func TokenByChainID(chainID uint64) FilterFunc[TokenKey, TokenRecord] {
	return recordFilter[TokenKey](func(r TokenRecord) bool {
		return r.ChainID == chainID
	})
}

// TokenBySymbol only includes tokens with the provided symbol.
func TokenBySymbol(symbol string) FilterFunc[TokenKey, TokenRecord] {
	return recordFilter[TokenKey](func(r TokenRecord) bool {
		return r.Symbol == symbol
	})
}

// SafeByChainID only includes Safes on the provided chain.
func SafeByChainID(chainID uint64) FilterFunc[SafeKey, SafeRecord] {
	return recordFilter[SafeKey](func(r SafeRecord) bool {
		return r.ChainID == chainID
	})
}

// SafeByOwner only includes owner sets containing owner.
func SafeByOwner(owner common.Address) FilterFunc[SafeKey, SafeRecord] {
	return recordFilter[SafeKey](func(r SafeRecord) bool {
		return slices.Contains(r.Owners, owner)
	})
}
