package datastore

import (
	"errors"
	"sync"
)

var (
	ErrRecordNotFound = errors.New("no record can be found for the provided key")
	ErrRecordExists   = errors.New("a record with the supplied key already exists")
)

// MemoryStore is an in-memory implementation of MutableStore guarded by a RWMutex.
type MemoryStore[K Comparable[K], R UniqueRecord[K, R]] struct {
	mu      sync.RWMutex
	Records []R `json:"records" yaml:"records"`

	errNotFound error
	errExists   error
}

// MemoryTokenStore stores TokenRecords.
type MemoryTokenStore = MemoryStore[TokenKey, TokenRecord]

// MemorySafeStore stores SafeRecords.
type MemorySafeStore = MemoryStore[SafeKey, SafeRecord]

var (
	_ MutableTokenStore = &MemoryTokenStore{}
	_ MutableSafeStore  = &MemorySafeStore{}
)

// NewMemoryTokenStore creates an empty MemoryTokenStore.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{Records: []TokenRecord{}, errNotFound: ErrTokenNotFound, errExists: ErrTokenExists}
}

// NewMemorySafeStore creates an empty MemorySafeStore.
func NewMemorySafeStore() *MemorySafeStore {
	return &MemorySafeStore{Records: []SafeRecord{}, errNotFound: ErrSafeNotFound, errExists: ErrSafeExists}
}

// Get returns a copy of the record for the provided key.
func (s *MemoryStore[K, R]) Get(key K) (R, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(key)
	if idx == -1 {
		var zero R
		return zero, s.notFound()
	}

	return s.Records[idx].Clone(), nil
}

// Fetch returns a copy of every record in the store.
func (s *MemoryStore[K, R]) Fetch() ([]R, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]R, 0, len(s.Records))
	for _, record := range s.Records {
		records = append(records, record.Clone())
	}

	return records, nil
}

// Filter returns copies of the records that pass every filter.
// If no filters are provided, all records are returned.
func (s *MemoryStore[K, R]) Filter(filters ...FilterFunc[K, R]) []R {
	s.mu.RLock()
	records := make([]R, 0, len(s.Records))
	for _, record := range s.Records {
		records = append(records, record.Clone())
	}
	s.mu.RUnlock()

	for _, filter := range filters {
		records = filter(records)
	}

	return records
}

func (s *MemoryStore[K, R]) notFound() error {
	if s.errNotFound != nil {
		return s.errNotFound
	}

	return ErrRecordNotFound
}

// indexOf returns the index of the record with the provided key, or -1 if no such record exists.
func (s *MemoryStore[K, R]) indexOf(key K) int {
	for i, record := range s.Records {
		if record.Key().Equals(key) {
			return i
		}
	}

	return -1
}

// Add inserts a new record into the store.
func (s *MemoryStore[K, R]) Add(record R) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(record.Key()) != -1 {
		if s.errExists != nil {
			return s.errExists
		}

		return ErrRecordExists
	}
	s.Records = append(s.Records, record.Clone())

	return nil
}

// Upsert inserts the record or replaces the one with the same key.
func (s *MemoryStore[K, R]) Upsert(record R) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx == -1 {
		s.Records = append(s.Records, record.Clone())
		return nil
	}
	s.Records[idx] = record.Clone()

	return nil
}

// Update replaces the record with the same key.
func (s *MemoryStore[K, R]) Update(record R) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx == -1 {
		return s.notFound()
	}
	s.Records[idx] = record.Clone()

	return nil
}

// Delete removes the record with the provided key.
func (s *MemoryStore[K, R]) Delete(key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return s.notFound()
	}
	s.Records = append(s.Records[:idx], s.Records[idx+1:]...)

	return nil
}
