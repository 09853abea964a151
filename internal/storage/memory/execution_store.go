package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
)

// ExecutionStore is an in-memory execution.AuditStore.
// WithinDailyCap is serialized the way the advisory lock serializes it in PostgreSQL.
type ExecutionStore struct {
	capMu sync.Mutex

	mu        sync.RWMutex
	data      []contracts.Execution
	nextID    int64
	appendErr error
	countErr  error
}

// NewExecutionStore creates a new in-memory execution store
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{nextID: 1}
}

// FailAppends makes appended rows fail with err
func (s *ExecutionStore) FailAppends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

// FailCounts makes CountSince fail with err
func (s *ExecutionStore) FailCounts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countErr = err
}

// CountSince counts rows created at or after since
func (s *ExecutionStore) CountSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.countSinceLocked(since), nil
}

func (s *ExecutionStore) countSinceLocked(since time.Time) int {
	n := 0
	for _, e := range s.data {
		if !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n
}

// WithinDailyCap runs fn under the cap lock when today's count is below maxDaily
func (s *ExecutionStore) WithinDailyCap(
	_ context.Context,
	dayStart time.Time,
	maxDaily int,
	fn func(appendRow func(context.Context, *contracts.Execution) error) error,
) error {
	s.capMu.Lock()
	defer s.capMu.Unlock()

	s.mu.RLock()
	count := s.countSinceLocked(dayStart)
	s.mu.RUnlock()
	if count >= maxDaily {
		return fmt.Errorf("%w: %d of %d", contracts.ErrDailyCapReached, count, maxDaily)
	}

	return fn(s.Insert)
}

// Insert appends one row and assigns its ID
func (s *ExecutionStore) Insert(_ context.Context, e *contracts.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	e.ID = s.nextID
	s.nextID++
	s.data = append(s.data, *e)
	return nil
}

// ListSince returns rows created at or after since, newest first
func (s *ExecutionStore) ListSince(_ context.Context, since time.Time, limit int) ([]contracts.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.Execution, 0)
	for _, e := range s.data {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every row in insertion order
func (s *ExecutionStore) All() []contracts.Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contracts.Execution(nil), s.data...)
}
