package contracts

import (
	"context"
	"time"
)

// Collector fetches headlines from one source.
// It returns an empty slice on any failure and never returns an error.
type Collector interface {
	Name() string
	Collect(ctx context.Context) []RawItem
}

// AnalysisClient sends one batch of titles to the text-analysis service.
// The returned elements are loosely typed and must go through normalization.
type AnalysisClient interface {
	AnalyzeBatch(ctx context.Context, titles []string) ([]map[string]any, error)
}

// Broker is a scoped brokerage session.
// Mode reports the account mode the session would reach; only "paper" may trade.
type Broker interface {
	Mode() string
	Connect(ctx context.Context) error
	Quote(ctx context.Context, ticker string) (float64, error)
	SubmitMarketBuy(ctx context.Context, ticker string, qty float64) (orderID string, err error)
	OrderStatus(ctx context.Context, orderID string) (string, error)
	Disconnect()
}

// AccountReader reads account values and positions for snapshots
type AccountReader interface {
	Account(ctx context.Context) (*AccountSnapshot, error)
	Positions(ctx context.Context) ([]PositionSnapshot, error)
}

// MarketCalendar returns ordered trading session dates in [from, to]
type MarketCalendar interface {
	Sessions(ctx context.Context, from, to time.Time) ([]time.Time, error)
}

// PriceSource returns daily closes keyed by session date ("2006-01-02") in [from, to]
type PriceSource interface {
	DailyCloses(ctx context.Context, ticker string, from, to time.Time) (map[string]float64, error)
}
