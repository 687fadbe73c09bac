// Package datastore persists the small amount of local state slab keeps between runs: ERC-20
// token metadata it has already fetched and the Safe addresses it has created, keyed by chain and
// owner set.
package datastore

// Cloneable provides a Clone() method which returns a deep copy of the type.
type Cloneable[R any] interface {
	// Clone returns a copy of the record. Modifying the copy must not affect the original.
	Clone() R
}

// Comparable provides an Equals() method which returns true if the two instances are equal.
type Comparable[T any] interface {
	Equals(T) bool
}

// PrimaryKeyHolder is implemented by types that can provide their own unique key.
type PrimaryKeyHolder[K Comparable[K]] interface {
	Key() K
}

// UniqueRecord represents a data entry that is both Cloneable and uniquely identifiable by its primary key.
type UniqueRecord[K Comparable[K], R PrimaryKeyHolder[K]] interface {
	Cloneable[R]
	PrimaryKeyHolder[K]
}

// FilterFunc is a function that filters a slice of records.
type FilterFunc[K Comparable[K], R UniqueRecord[K, R]] func([]R) []R

// Store is an immutable view over a set of records.
type Store[K Comparable[K], R UniqueRecord[K, R]] interface {
	// Fetch returns copies of every record in the store.
	Fetch() ([]R, error)

	// Get returns the record with the given key, or an error if no such record exists.
	Get(K) (R, error)

	// Filter returns the records that pass every filter, applied in order.
	Filter(filters ...FilterFunc[K, R]) []R
}

// MutableStore is a Store that can be modified.
type MutableStore[K Comparable[K], R UniqueRecord[K, R]] interface {
	Store[K, R]

	// Add inserts a new record. It fails if a record with the same key exists.
	Add(record R) error

	// Upsert behaves like Add when there is no record with the same key, otherwise it behaves
	// like Update.
	Upsert(record R) error

	// Update replaces the record with the same key. It fails if no such record exists.
	Update(record R) error

	// Delete removes the record with the given key.
	Delete(key K) error
}

// TokenStore is a read-only view over known ERC-20 tokens.
type TokenStore interface {
	Store[TokenKey, TokenRecord]
}

// MutableTokenStore is a TokenStore that can be modified.
type MutableTokenStore interface {
	MutableStore[TokenKey, TokenRecord]
}

// SafeStore is a read-only view over created Safe addresses.
type SafeStore interface {
	Store[SafeKey, SafeRecord]
}

// MutableSafeStore is a SafeStore that can be modified.
type MutableSafeStore interface {
	MutableStore[SafeKey, SafeRecord]
}

// DataStore groups the stores slab persists.
type DataStore interface {
	Tokens() TokenStore
	Safes() SafeStore
}

// MutableDataStore is a DataStore whose stores can be modified.
type MutableDataStore interface {
	Tokens() MutableTokenStore
	Safes() MutableSafeStore

	// Merge upserts every record of other into this data store.
	Merge(other DataStore) error

	// Seal returns a read-only view of the data store.
	Seal() DataStore
}
