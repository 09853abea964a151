package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
)

// SignalStore is an in-memory signals.Store
type SignalStore struct {
	mu     sync.RWMutex
	data   []contracts.Signal
	nextID int64
}

// NewSignalStore creates a new in-memory signal store
func NewSignalStore() *SignalStore {
	return &SignalStore{nextID: 1}
}

// InsertSignals appends copies of signals
func (s *SignalStore) InsertSignals(_ context.Context, signals []contracts.Signal, createdAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sig := range signals {
		c := sig
		c.ID = s.nextID
		c.CreatedAt = createdAt
		c.RiskTags = append([]string{}, sig.RiskTags...)
		s.nextID++
		s.data = append(s.data, c)
	}
	return len(signals), nil
}

// SelectTop1 mirrors the SQL ordering: score DESC, created_at ASC, id ASC
func (s *SignalStore) SelectTop1(_ context.Context, dayStart time.Time) (*contracts.Signal, error) {
	candidates := s.since(dayStart)

	n := 0
	for _, sig := range candidates {
		if sig.IsCandidate() {
			candidates[n] = sig
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	top := candidates[0]
	return &top, nil
}

// ListSince returns signals created at or after since, best first
func (s *SignalStore) ListSince(_ context.Context, since time.Time, limit int) ([]contracts.Signal, error) {
	out := s.since(since)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every stored signal in insertion order
func (s *SignalStore) All() []contracts.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contracts.Signal(nil), s.data...)
}

func (s *SignalStore) since(start time.Time) []contracts.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.Signal, 0, len(s.data))
	for _, sig := range s.data {
		if !sig.CreatedAt.Before(start) {
			out = append(out, sig)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Sentiment != out[j].Sentiment {
			return out[i].Sentiment > out[j].Sentiment
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
