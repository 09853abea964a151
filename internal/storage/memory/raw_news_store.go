// Package memory holds in-memory stores with the same semantics as the
// PostgreSQL repositories. They back unit tests and local dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/wonny/newsquant/internal/contracts"
)

// RawNewsStore is an in-memory ingest.Store
type RawNewsStore struct {
	mu    sync.Mutex
	items map[string]contracts.RawItem // keyed by url
	err   error
}

// NewRawNewsStore creates a new in-memory raw news store
func NewRawNewsStore() *RawNewsStore {
	return &RawNewsStore{items: make(map[string]contracts.RawItem)}
}

// FailWith makes every following call return err
func (s *RawNewsStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// InsertNew stores unknown URLs and returns them
func (s *RawNewsStore) InsertNew(_ context.Context, items []contracts.RawItem) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	var inserted []string
	for _, item := range items {
		if item.URL == "" {
			return nil, contracts.ErrInvalidInput
		}
		if _, exists := s.items[item.URL]; exists {
			continue
		}
		s.items[item.URL] = item
		inserted = append(inserted, item.URL)
	}
	return inserted, nil
}

// Len returns the number of stored items
func (s *RawNewsStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
