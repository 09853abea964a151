package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// =============================================================================
// Pure decision
// =============================================================================

// GateInput is everything the gate decision depends on
type GateInput struct {
	Sentiment      float64
	MinSentiment   float64
	TradesToday    int
	MaxDailyTrades int
}

// GateReason explains a gate decision
type GateReason string

const (
	GateReasonApproved        GateReason = "approved"
	GateReasonBelowThreshold  GateReason = "below_threshold"
	GateReasonDailyCapReached GateReason = "daily_cap_reached"
	GateReasonNoCandidate     GateReason = "no_candidate"
)

// GateDecision is the outcome of the gate
type GateDecision struct {
	Approved bool       `json:"approved"`
	Reason   GateReason `json:"reason"`
	Input    GateInput  `json:"input"`
}

// Decide approves exactly one attempt when the sentiment clears the threshold
// and today's execution count is below the cap. The threshold is checked first.
func Decide(in GateInput) GateDecision {
	d := GateDecision{Input: in}
	switch {
	case in.Sentiment < in.MinSentiment:
		d.Reason = GateReasonBelowThreshold
	case in.TradesToday >= in.MaxDailyTrades:
		d.Reason = GateReasonDailyCapReached
	default:
		d.Approved = true
		d.Reason = GateReasonApproved
	}
	return d
}

// =============================================================================
// RiskGate
// =============================================================================

// ExecutionCounter counts audit rows since a timestamp
type ExecutionCounter interface {
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// RiskGateConfig holds the gate thresholds
type RiskGateConfig struct {
	MinSentiment   float64
	MaxDailyTrades int
}

// RiskGate applies Decide with today's count read from the audit table
// ⭐ SSOT: 주문 전 리스크 체크는 여기서만
type RiskGate struct {
	counter ExecutionCounter
	cfg     RiskGateConfig
	logger  *logger.Logger
}

// NewRiskGate creates a new risk gate
func NewRiskGate(counter ExecutionCounter, cfg RiskGateConfig, log *logger.Logger) *RiskGate {
	return &RiskGate{
		counter: counter,
		cfg:     cfg,
		logger:  log.WithComponent("risk_gate"),
	}
}

// MaxDailyTrades returns the configured cap
func (g *RiskGate) MaxDailyTrades() int {
	return g.cfg.MaxDailyTrades
}

// Check evaluates candidate against the thresholds. A count failure is
// returned as an error so the caller does not trade.
func (g *RiskGate) Check(ctx context.Context, candidate *contracts.Signal, dayStart time.Time) (GateDecision, error) {
	if candidate == nil || candidate.Ticker == nil {
		return GateDecision{Reason: GateReasonNoCandidate}, nil
	}

	tradesToday, err := g.counter.CountSince(ctx, dayStart)
	if err != nil {
		return GateDecision{}, fmt.Errorf("count executions today: %w", err)
	}

	decision := Decide(GateInput{
		Sentiment:      candidate.Sentiment,
		MinSentiment:   g.cfg.MinSentiment,
		TradesToday:    tradesToday,
		MaxDailyTrades: g.cfg.MaxDailyTrades,
	})

	fields := map[string]interface{}{
		"ticker":           *candidate.Ticker,
		"sentiment":        candidate.Sentiment,
		"min_sentiment":    g.cfg.MinSentiment,
		"trades_today":     tradesToday,
		"max_daily_trades": g.cfg.MaxDailyTrades,
		"reason":           decision.Reason,
	}
	log := g.logger.WithContext(ctx).WithFields(fields)
	if decision.Approved {
		log.Info("✅ Gate approved")
	} else {
		log.Warn("🚫 Gate rejected: no trade today")
	}

	return decision, nil
}
