package datastore

var _ MutableDataStore = &MemoryDataStore{}

type MemoryDataStore struct {
	TokenStore *MemoryTokenStore `json:"tokens" yaml:"tokens"`
	SafeStore  *MemorySafeStore  `json:"safes" yaml:"safes"`
}

// NewMemoryDataStore creates a new, empty MemoryDataStore.
func NewMemoryDataStore() *MemoryDataStore {
	return &MemoryDataStore{
		TokenStore: NewMemoryTokenStore(),
		SafeStore:  NewMemorySafeStore(),
	}
}

// Tokens returns the token store.
func (s *MemoryDataStore) Tokens() MutableTokenStore {
	return s.TokenStore
}

// Safes returns the Safe address store.
func (s *MemoryDataStore) Safes() MutableSafeStore {
	return s.SafeStore
}

// Seal returns a read-only view backed by the same stores.
func (s *MemoryDataStore) Seal() DataStore {
	return &sealedMemoryDataStore{
		TokenStore: s.TokenStore,
		SafeStore:  s.SafeStore,
	}
}

// Merge upserts every record of other into s. Safe records with the same owner set have their
// address lists combined.
func (s *MemoryDataStore) Merge(other DataStore) error {
	tokens, err := other.Tokens().Fetch()
	if err != nil {
		return err
	}
	for _, t := range tokens {
		if err = s.TokenStore.Upsert(t); err != nil {
			return err
		}
	}

	safes, err := other.Safes().Fetch()
	if err != nil {
		return err
	}
	for _, incoming := range safes {
		merged := incoming
		if existing, getErr := s.SafeStore.Get(incoming.Key()); getErr == nil {
			merged = existing
			for _, addr := range incoming.Addresses {
				merged = merged.WithAddress(addr)
			}
			merged.Threshold = incoming.Threshold
		}
		if err = s.SafeStore.Upsert(merged); err != nil {
			return err
		}
	}

	return nil
}

type sealedMemoryDataStore struct {
	TokenStore *MemoryTokenStore
	SafeStore  *MemorySafeStore
}

func (s *sealedMemoryDataStore) Tokens() TokenStore { return s.TokenStore }

func (s *sealedMemoryDataStore) Safes() SafeStore { return s.SafeStore }
