package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
)

// AlertStore is an in-memory brief.AlertStore
type AlertStore struct {
	mu     sync.Mutex
	alerts []contracts.NewsAlert
	nextID int64
	err    error
}

// NewAlertStore creates a new in-memory alert store
func NewAlertStore() *AlertStore {
	return &AlertStore{nextID: 1}
}

// FailWith makes inserts fail with err
func (s *AlertStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// InsertAlerts stores alerts
func (s *AlertStore) InsertAlerts(_ context.Context, alerts []contracts.NewsAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, a := range alerts {
		a.ID = s.nextID
		s.nextID++
		s.alerts = append(s.alerts, a)
	}
	return nil
}

// AlertsSince returns alerts created at or after since, newest first
func (s *AlertStore) AlertsSince(_ context.Context, since time.Time, limit int) ([]contracts.NewsAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]contracts.NewsAlert, 0)
	for _, a := range s.alerts {
		if !a.CreatedAt.Before(since) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
