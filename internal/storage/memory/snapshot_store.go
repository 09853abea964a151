package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
)

// SnapshotStore is an in-memory snapshot.Store
type SnapshotStore struct {
	mu        sync.Mutex
	accounts  []contracts.AccountSnapshot
	positions []contracts.PositionSnapshot
	nextID    int64
	err       error
}

// NewSnapshotStore creates a new in-memory snapshot store
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{nextID: 1}
}

// FailWith makes every insert fail with err
func (s *SnapshotStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// InsertAccount stores one account snapshot
func (s *SnapshotStore) InsertAccount(_ context.Context, a *contracts.AccountSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	a.ID = s.nextID
	s.nextID++
	s.accounts = append(s.accounts, *a)
	return nil
}

// InsertPositions stores a position set
func (s *SnapshotStore) InsertPositions(_ context.Context, positions []contracts.PositionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, p := range positions {
		p.ID = s.nextID
		s.nextID++
		s.positions = append(s.positions, p)
	}
	return nil
}

// LatestAccount returns the newest account snapshot, nil when none exists
func (s *SnapshotStore) LatestAccount(context.Context) (*contracts.AccountSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.accounts) == 0 {
		return nil, nil
	}
	latest := s.accounts[0]
	for _, a := range s.accounts[1:] {
		if !a.CreatedAt.Before(latest.CreatedAt) {
			latest = a
		}
	}
	return &latest, nil
}

// PositionsSince returns rows created at or after since, newest first
func (s *SnapshotStore) PositionsSince(_ context.Context, since time.Time, limit int) ([]contracts.PositionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]contracts.PositionSnapshot, 0)
	for _, p := range s.positions {
		if !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
