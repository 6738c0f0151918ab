// Package memory provides a thread-safe in-memory storage.Store, used in
// tests and as the storage double for the wallet services.
package memory

import (
	"fmt"
	"sync"

	"github.com/zihandong029/firstwallet/storage"
)

// Store is a thread-safe in-memory implementation of storage.Store.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ storage.Store = (*Store)(nil)

// New creates a new empty in-memory Store.
func New() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

func (s *Store) Put(bucket, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[bucket]; !ok {
		s.data[bucket] = make(map[string][]byte)
	}
	s.data[bucket][key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Get(bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[bucket]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrNotFound)
	}
	value, ok := b[key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrNotFound)
	}
	return append([]byte(nil), value...), nil
}

func (s *Store) Delete(bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.data[bucket]; ok {
		delete(b, key)
	}
	return nil
}

func (s *Store) List(bucket string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data[bucket] {
		keys = append(keys, k)
	}
	return keys, nil
}
