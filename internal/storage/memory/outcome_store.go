package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
)

// OutcomeStore is an in-memory evaluator.Store reading executions from an ExecutionStore
type OutcomeStore struct {
	executions *ExecutionStore

	mu       sync.Mutex
	outcomes map[int64]contracts.Outcome // keyed by execution id
	nextID   int64
	err      error
}

// NewOutcomeStore creates a new in-memory outcome store
func NewOutcomeStore(executions *ExecutionStore) *OutcomeStore {
	return &OutcomeStore{
		executions: executions,
		outcomes:   make(map[int64]contracts.Outcome),
		nextID:     1,
	}
}

// FailInserts makes InsertOutcome fail with err
func (s *OutcomeStore) FailInserts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// PendingExecutions returns executions without an outcome, oldest first
func (s *OutcomeStore) PendingExecutions(_ context.Context, createdBefore time.Time, limit int) ([]contracts.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]contracts.Execution, 0)
	for _, e := range s.executions.All() {
		if e.CreatedAt.After(createdBefore) {
			continue
		}
		if _, done := s.outcomes[e.ID]; done {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InsertOutcome stores o unless the execution already has one
func (s *OutcomeStore) InsertOutcome(_ context.Context, o *contracts.Outcome) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, exists := s.outcomes[o.ExecutionID]; exists {
		return false, nil
	}
	o.ID = s.nextID
	s.nextID++
	s.outcomes[o.ExecutionID] = *o
	return true, nil
}

// Get returns the outcome recorded for an execution
func (s *OutcomeStore) Get(executionID int64) (contracts.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[executionID]
	return o, ok
}

// Len returns the number of stored outcomes
func (s *OutcomeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outcomes)
}
