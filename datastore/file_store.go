package datastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore is a MemoryDataStore persisted as a JSON document on disk.
type FileStore struct {
	*MemoryDataStore

	path string
	mu   sync.Mutex
}

// OpenFileStore loads the data store at path. A missing file yields an empty store which is
// created on the first Save.
func OpenFileStore(path string) (*FileStore, error) {
	ds, err := readFile(path)
	if err != nil {
		return nil, err
	}

	return &FileStore{MemoryDataStore: ds, path: path}, nil
}

func readFile(path string) (*MemoryDataStore, error) {
	ds := NewMemoryDataStore()

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ds, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read datastore %s: %w", path, err)
	}
	if len(b) == 0 {
		return ds, nil
	}
	if err = json.Unmarshal(b, ds); err != nil {
		return nil, fmt.Errorf("failed to decode datastore %s: %w", path, err)
	}

	return ds, nil
}

// Path returns the file backing the store.
func (f *FileStore) Path() string {
	return f.path
}

// Save writes the store to disk, replacing the previous file atomically. Records another process
// saved since the store was opened are merged in first; on conflict the in-memory record wins.
func (f *FileStore) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	disk, err := readFile(f.path)
	if err != nil {
		return err
	}
	if err = disk.Merge(f.Seal()); err != nil {
		return fmt.Errorf("failed to merge datastore: %w", err)
	}
	if err = f.Merge(disk.Seal()); err != nil {
		return fmt.Errorf("failed to merge datastore: %w", err)
	}

	b, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode datastore: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create datastore directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".slab-datastore-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write datastore: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to write datastore: %w", err)
	}

	return os.Rename(tmp.Name(), f.path)
}

// ExportYAML writes a read-only snapshot of ds as YAML.
func ExportYAML(w io.Writer, ds DataStore) error {
	tokens, err := ds.Tokens().Fetch()
	if err != nil {
		return err
	}
	safes, err := ds.Safes().Fetch()
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()

	return enc.Encode(struct {
		Tokens []TokenRecord `yaml:"tokens"`
		Safes  []SafeRecord  `yaml:"safes"`
	}{Tokens: tokens, Safes: safes})
}
