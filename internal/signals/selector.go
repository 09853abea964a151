package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// Store persists signals and answers the Top1 query
type Store interface {
	InsertSignals(ctx context.Context, signals []contracts.Signal, createdAt time.Time) (int, error)
	SelectTop1(ctx context.Context, dayStart time.Time) (*contracts.Signal, error)
}

// Selector stores a run's signals and picks the day's single candidate
type Selector struct {
	store  Store
	logger *logger.Logger
}

// NewSelector creates a new selector
func NewSelector(store Store, log *logger.Logger) *Selector {
	return &Selector{store: store, logger: log.WithComponent("selector")}
}

// Persist stores every signal with the run timestamp
func (s *Selector) Persist(ctx context.Context, signals []contracts.Signal, clock contracts.RunClock) (int, error) {
	n, err := s.store.InsertSignals(ctx, signals, clock.Now)
	if err != nil {
		return 0, fmt.Errorf("persist signals: %w", err)
	}
	s.logger.WithContext(ctx).WithField("inserted", n).Info("Signals stored")
	return n, nil
}

// Select returns today's Top1 or nil. No candidate is a normal outcome.
func (s *Selector) Select(ctx context.Context, clock contracts.RunClock) (*contracts.Signal, error) {
	top, err := s.store.SelectTop1(ctx, clock.DayStart)
	if err != nil {
		return nil, fmt.Errorf("select top1: %w", err)
	}

	log := s.logger.WithContext(ctx)
	if top == nil {
		log.WithField("day_start", clock.DayStart.Format(time.RFC3339)).
			Info("No candidate today (no ticker or every signal carries risk tags)")
		return nil, nil
	}

	log.WithFields(map[string]interface{}{
		"signal_id": top.ID,
		"ticker":    top.TickerOrEmpty(),
		"sentiment": top.Sentiment,
		"summary":   top.Summary,
	}).Info("Top1 selected")

	return top, nil
}
