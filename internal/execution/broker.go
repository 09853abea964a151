package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/config"
)

// ErrNotConnected is returned by MockBroker calls made outside a session
var ErrNotConnected = errors.New("broker session not connected")

// MockBroker is an in-process contracts.Broker
// ⭐ 운영에서는 internal/external/alpaca Broker 사용
type MockBroker struct {
	mu sync.Mutex

	mode      string
	prices    map[string]float64
	status    string
	positions []contracts.PositionSnapshot
	account   contracts.AccountSnapshot

	// Injected failures
	ConnectErr error
	QuoteErr   error
	SubmitErr  error
	StatusErr  error
	AccountErr error
	PanicOn    string // "quote" or "submit"

	connected   bool
	Connects    int
	Disconnects int
	Submitted   []MockOrder
}

// MockOrder records a submitted market buy
type MockOrder struct {
	ID     string
	Ticker string
	Qty    float64
}

// NewMockBroker creates a paper-mode mock broker
func NewMockBroker() *MockBroker {
	cash := 100_000.0
	return &MockBroker{
		mode:   config.PaperTradingMode,
		prices: make(map[string]float64),
		status: "accepted",
		account: contracts.AccountSnapshot{
			NetLiquidation: &cash,
			TotalCash:      &cash,
			BuyingPower:    &cash,
		},
	}
}

// SetMode overrides the account mode the session reports
func (b *MockBroker) SetMode(mode string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = mode
}

// SetPrice sets the quote for ticker
func (b *MockBroker) SetPrice(ticker string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[ticker] = price
}

// SetOrderStatus sets the status returned after submission
func (b *MockBroker) SetOrderStatus(status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
}

// SetPositions sets the positions returned by Positions
func (b *MockBroker) SetPositions(positions []contracts.PositionSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions = positions
}

// Mode returns the configured account mode
func (b *MockBroker) Mode() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

// Connect opens the session
func (b *MockBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Connects++
	if b.ConnectErr != nil {
		return b.ConnectErr
	}
	b.connected = true
	return ctx.Err()
}

// Quote returns the configured price, 0 when unknown
func (b *MockBroker) Quote(ctx context.Context, ticker string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PanicOn == "quote" {
		panic("mock broker: quote panic")
	}
	if !b.connected {
		return 0, ErrNotConnected
	}
	if b.QuoteErr != nil {
		return 0, b.QuoteErr
	}
	return b.prices[ticker], ctx.Err()
}

// SubmitMarketBuy records the order
func (b *MockBroker) SubmitMarketBuy(ctx context.Context, ticker string, qty float64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PanicOn == "submit" {
		panic("mock broker: submit panic")
	}
	if !b.connected {
		return "", ErrNotConnected
	}
	if b.SubmitErr != nil {
		return "", b.SubmitErr
	}
	id := fmt.Sprintf("MOCK-%d", len(b.Submitted)+1)
	b.Submitted = append(b.Submitted, MockOrder{ID: id, Ticker: ticker, Qty: qty})
	return id, ctx.Err()
}

// OrderStatus returns the configured status
func (b *MockBroker) OrderStatus(_ context.Context, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.StatusErr != nil {
		return "", b.StatusErr
	}
	return b.status, nil
}

// Disconnect closes the session
func (b *MockBroker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Disconnects++
	b.connected = false
}

// Account returns the mock account values
func (b *MockBroker) Account(context.Context) (*contracts.AccountSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.AccountErr != nil {
		return nil, b.AccountErr
	}
	acct := b.account
	return &acct, nil
}

// Positions returns the mock positions
func (b *MockBroker) Positions(context.Context) ([]contracts.PositionSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]contracts.PositionSnapshot(nil), b.positions...), nil
}
