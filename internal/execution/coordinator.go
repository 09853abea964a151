package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/config"
	"github.com/wonny/newsquant/pkg/logger"
)

// qtyEpsilon is the smallest quantity treated as a real order
const qtyEpsilon = 1e-6

var (
	// ErrTradingModeForbidden is returned when the session would reach a non-paper account
	ErrTradingModeForbidden = errors.New("trading mode forbidden")

	// ErrInvalidQuote is returned for a missing or non-positive quote
	ErrInvalidQuote = errors.New("invalid quote")

	// ErrDegenerateQty is returned when amount/price rounds to nothing
	ErrDegenerateQty = errors.New("degenerate quantity")
)

// State of one execution attempt
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StatePricing    State = "pricing"
	StateDryFilled  State = "dry_filled"
	StateLiveFilled State = "live_filled"
	StateFailed     State = "failed"
	StateAudited    State = "audited"
	StateDone       State = "done"
)

// AuditStore is the execution audit table
type AuditStore interface {
	ExecutionCounter
	WithinDailyCap(ctx context.Context, dayStart time.Time, maxDaily int,
		fn func(appendRow func(context.Context, *contracts.Execution) error) error) error
}

// CoordinatorConfig holds the execution knobs
type CoordinatorConfig struct {
	DryRun         bool
	Mode           string
	AmountUSD      float64
	MaxDailyTrades int
	StatusGrace    time.Duration
	CallTimeout    time.Duration
}

// CoordinatorConfigFrom maps application config
func CoordinatorConfigFrom(cfg config.TradingConfig) CoordinatorConfig {
	return CoordinatorConfig{
		DryRun:         cfg.DryRun,
		Mode:           cfg.Mode,
		AmountUSD:      cfg.AmountUSD,
		MaxDailyTrades: cfg.MaxDailyTrades,
		StatusGrace:    cfg.StatusGrace,
		CallTimeout:    cfg.CallTimeout,
	}
}

// Coordinator drives one broker session per attempt and always writes
// exactly one audit row for it. Failed trades are never retried.
// ⭐ SSOT: 주문 실행은 여기서만
type Coordinator struct {
	broker contracts.Broker
	store  AuditStore
	cfg    CoordinatorConfig
	logger *logger.Logger

	now          func() time.Time
	OnTransition func(from, to State)
}

// NewCoordinator creates a new coordinator
func NewCoordinator(broker contracts.Broker, store AuditStore, cfg CoordinatorConfig, log *logger.Logger) *Coordinator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	return &Coordinator{
		broker: broker,
		store:  store,
		cfg:    cfg,
		logger: log.WithComponent("coordinator"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// attempt is the mutable state of one run through the state machine
type attempt struct {
	ticker string
	state  State
	price  *float64
	qty    *float64
	status *string
	err    error
	notify func(from, to State)
}

func (a *attempt) to(next State) {
	prev := a.state
	a.state = next
	if a.notify != nil {
		a.notify(prev, next)
	}
}

func (a *attempt) fail(err error) {
	a.err = err
	a.price, a.qty, a.status = nil, nil, nil
	a.to(StateFailed)
}

// Execute runs one attempt for ticker. It returns the audit row, which carries
// Error when the attempt failed. An error is returned only when no attempt was
// made (daily cap reached) or the audit row could not be written.
func (c *Coordinator) Execute(ctx context.Context, ticker string, dayStart time.Time) (*contracts.Execution, error) {
	var (
		record *contracts.Execution
		a      *attempt
	)

	err := c.store.WithinDailyCap(ctx, dayStart, c.cfg.MaxDailyTrades,
		func(appendRow func(context.Context, *contracts.Execution) error) (err error) {
			a = &attempt{ticker: ticker, state: StateIdle, notify: c.OnTransition}

			// Audited: runs on every exit path, including panics
			defer func() {
				if r := recover(); r != nil {
					a.fail(fmt.Errorf("panic during execution: %v", r))
				}
				record = c.record(a)
				if werr := appendRow(context.WithoutCancel(ctx), record); werr != nil {
					err = fmt.Errorf("write audit row: %w", werr)
					return
				}
				a.to(StateAudited)
			}()

			c.drive(ctx, a)
			return nil
		})

	log := c.logger.WithContext(ctx)
	if errors.Is(err, contracts.ErrDailyCapReached) {
		log.WithError(err).Warn("🚫 Daily cap reached at audit time: no attempt made")
		return nil, err
	}
	if a != nil {
		a.to(StateDone)
	}
	if err != nil {
		log.WithError(err).Error("Execution audit failed")
		return record, err
	}

	logResult(log, record)
	return record, nil
}

// drive walks Connecting → Pricing → {DryFilled | LiveFilled | Failed}
func (c *Coordinator) drive(ctx context.Context, a *attempt) {
	a.to(StateConnecting)
	if c.cfg.Mode != config.PaperTradingMode || c.broker.Mode() != config.PaperTradingMode {
		a.fail(fmt.Errorf("%w: configured=%q broker=%q", ErrTradingModeForbidden, c.cfg.Mode, c.broker.Mode()))
		return
	}

	defer c.broker.Disconnect()
	if err := c.withTimeout(ctx, func(ctx context.Context) error { return c.broker.Connect(ctx) }); err != nil {
		a.fail(fmt.Errorf("connect: %w", err))
		return
	}

	a.to(StatePricing)
	var price float64
	err := c.withTimeout(ctx, func(ctx context.Context) error {
		p, err := c.broker.Quote(ctx, a.ticker)
		price = p
		return err
	})
	if err != nil {
		a.fail(fmt.Errorf("quote %s: %w", a.ticker, err))
		return
	}
	if !(price > 0) || math.IsInf(price, 0) {
		a.fail(fmt.Errorf("%w: %s price=%v", ErrInvalidQuote, a.ticker, price))
		return
	}

	qty := c.cfg.AmountUSD / price
	if !(qty > qtyEpsilon) {
		a.fail(fmt.Errorf("%w: amount=%.2f price=%.4f qty=%g", ErrDegenerateQty, c.cfg.AmountUSD, price, qty))
		return
	}

	if c.cfg.DryRun {
		a.price, a.qty = &price, &qty
		a.to(StateDryFilled)
		return
	}

	var orderID string
	err = c.withTimeout(ctx, func(ctx context.Context) error {
		id, err := c.broker.SubmitMarketBuy(ctx, a.ticker, qty)
		orderID = id
		return err
	})
	if err != nil {
		a.fail(fmt.Errorf("submit market buy %s: %w", a.ticker, err))
		return
	}

	status := c.readStatus(ctx, orderID)
	a.price, a.qty, a.status = &price, &qty, &status
	a.to(StateLiveFilled)
}

// readStatus waits the grace period then reads whatever status is available
func (c *Coordinator) readStatus(ctx context.Context, orderID string) string {
	if c.cfg.StatusGrace > 0 {
		select {
		case <-ctx.Done():
			return contracts.OrderStatusUnknown
		case <-time.After(c.cfg.StatusGrace):
		}
	}

	var status string
	err := c.withTimeout(ctx, func(ctx context.Context) error {
		s, err := c.broker.OrderStatus(ctx, orderID)
		status = s
		return err
	})
	if err != nil || status == "" {
		c.logger.WithContext(ctx).WithField("order_id", orderID).WithError(err).Warn("Order status unavailable, recording unknown")
		return contracts.OrderStatusUnknown
	}
	return status
}

func (c *Coordinator) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	return fn(callCtx)
}

func (c *Coordinator) record(a *attempt) *contracts.Execution {
	e := &contracts.Execution{
		Ticker:      a.ticker,
		AmountUSD:   c.cfg.AmountUSD,
		Price:       a.price,
		Qty:         a.qty,
		DryRun:      c.cfg.DryRun,
		OrderStatus: a.status,
		CreatedAt:   c.now(),
	}
	if a.err != nil {
		msg := a.err.Error()
		e.Error = &msg
	}
	return e
}

func logResult(log *logger.Logger, e *contracts.Execution) {
	fields := map[string]interface{}{
		"execution_id": e.ID,
		"ticker":       e.Ticker,
		"amount_usd":   e.AmountUSD,
		"dry_run":      e.DryRun,
	}
	if e.Price != nil {
		fields["price"] = *e.Price
	}
	if e.Qty != nil {
		fields["qty"] = *e.Qty
	}
	if e.OrderStatus != nil {
		fields["order_status"] = *e.OrderStatus
	}
	if e.Error != nil {
		fields["error"] = *e.Error
		log.WithFields(fields).Error("Execution failed: no trade today")
		return
	}
	log.WithFields(fields).Info("Execution recorded")
}

// TerminalState recovers the terminal state an audit row was written from
func TerminalState(e *contracts.Execution) State {
	switch {
	case e == nil:
		return StateIdle
	case e.Failed():
		return StateFailed
	case e.DryRun:
		return StateDryFilled
	default:
		return StateLiveFilled
	}
}
