package blob

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ErrNotFound indicates no blob is stored under the key.
var ErrNotFound = errors.New("blob not found")

// ErrKeyMismatch indicates data does not hash to the key it was stored under.
var ErrKeyMismatch = errors.New("blob key mismatch")

// Key returns the content key of data.
func Key(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Store is a thread-safe in-memory blob store. Stored slices must not be
// modified by callers.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	bytes int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// Put stores data and returns its key. Storing the same content twice is a no-op.
func (s *Store) Put(data []byte) string {
	key := Key(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		s.blobs[key] = slices.Clone(data)
		s.bytes += int64(len(data))
	}
	return key
}

// PutKeyed stores data under key after verifying the digest.
func (s *Store) PutKeyed(key string, data []byte) error {
	if Key(data) != key {
		return fmt.Errorf("%s: %w", key, ErrKeyMismatch)
	}
	s.Put(data)
	return nil
}

// Get returns the blob stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return data, nil
}

// Has reports whether key is stored.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[key]
	return ok
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := slices.Collect(maps.Keys(s.blobs))
	slices.Sort(keys)
	return keys
}

// Len returns the number of stored blobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Size returns the total number of stored bytes.
func (s *Store) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytes
}

// Merge copies every blob of other into s.
func (s *Store) Merge(other *Store) {
	if other == nil || other == s {
		return
	}
	other.mu.RLock()
	snapshot := maps.Clone(other.blobs)
	other.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range snapshot {
		if _, ok := s.blobs[k]; !ok {
			s.blobs[k] = v
			s.bytes += int64(len(v))
		}
	}
}
