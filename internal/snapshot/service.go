package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// Store persists snapshots
type Store interface {
	InsertAccount(ctx context.Context, a *contracts.AccountSnapshot) error
	InsertPositions(ctx context.Context, positions []contracts.PositionSnapshot) error
}

// Result summarizes one snapshot run
type Result struct {
	AccountSaved bool `json:"account_saved"`
	Positions    int  `json:"positions"`
}

// Service records account values and positions. It never touches trading state.
type Service struct {
	reader contracts.AccountReader
	store  Store
	logger *logger.Logger
}

// NewService creates a new snapshot service
func NewService(reader contracts.AccountReader, store Store, log *logger.Logger) *Service {
	return &Service{
		reader: reader,
		store:  store,
		logger: log.WithComponent("snapshot"),
	}
}

// Take records the account and the position set stamped with now.
// Each half is attempted independently; the error joins whatever failed.
func (s *Service) Take(ctx context.Context, now time.Time) (Result, error) {
	var result Result
	now = now.UTC()

	accountErr := s.takeAccount(ctx, now)
	if accountErr == nil {
		result.AccountSaved = true
	} else {
		s.logger.WithError(accountErr).Warn("Account snapshot failed")
	}

	n, positionsErr := s.takePositions(ctx, now)
	if positionsErr == nil {
		result.Positions = n
	} else {
		s.logger.WithError(positionsErr).Warn("Position snapshot failed")
	}

	s.logger.WithFields(map[string]interface{}{
		"account_saved": result.AccountSaved,
		"positions":     result.Positions,
	}).Info("Snapshot finished")

	return result, errors.Join(accountErr, positionsErr)
}

func (s *Service) takeAccount(ctx context.Context, now time.Time) error {
	acct, err := s.reader.Account(ctx)
	if err != nil {
		return fmt.Errorf("read account: %w", err)
	}
	acct.CreatedAt = now
	return s.store.InsertAccount(ctx, acct)
}

func (s *Service) takePositions(ctx context.Context, now time.Time) (int, error) {
	positions, err := s.reader.Positions(ctx)
	if err != nil {
		return 0, fmt.Errorf("read positions: %w", err)
	}
	for i := range positions {
		positions[i].CreatedAt = now
		if positions[i].MarketValue == nil && positions[i].MarketPrice != nil {
			mv := *positions[i].MarketPrice * positions[i].Position
			positions[i].MarketValue = &mv
		}
	}
	if err := s.store.InsertPositions(ctx, positions); err != nil {
		return 0, err
	}
	return len(positions), nil
}
