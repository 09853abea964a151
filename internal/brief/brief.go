package brief

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// Query limits
const (
	alertLimit       = 200
	positionLimit    = 500
	executionLimit   = 50
	alertsPerKeyword = 30

	// positions recorded within this window form the latest set
	positionWindow = time.Hour
)

// AlertReader reads keyword hits
type AlertReader interface {
	AlertsSince(ctx context.Context, since time.Time, limit int) ([]contracts.NewsAlert, error)
}

// SnapshotReader reads account and position snapshots
type SnapshotReader interface {
	LatestAccount(ctx context.Context) (*contracts.AccountSnapshot, error)
	PositionsSince(ctx context.Context, since time.Time, limit int) ([]contracts.PositionSnapshot, error)
}

// ExecutionReader reads the audit trail
type ExecutionReader interface {
	ListSince(ctx context.Context, since time.Time, limit int) ([]contracts.Execution, error)
}

// Data is everything one brief shows
type Data struct {
	Account    *contracts.AccountSnapshot
	Positions  []contracts.PositionSnapshot
	Executions []contracts.Execution
	Alerts     []contracts.NewsAlert
}

// Service builds, writes and sends the daily brief
type Service struct {
	alerts     AlertReader
	snapshots  SnapshotReader
	executions ExecutionReader
	notifiers  []Notifier
	dir        string
	logger     *logger.Logger
}

// NewService creates a new brief service
func NewService(alerts AlertReader, snapshots SnapshotReader, executions ExecutionReader, dir string, log *logger.Logger, notifiers ...Notifier) *Service {
	return &Service{
		alerts:     alerts,
		snapshots:  snapshots,
		executions: executions,
		notifiers:  notifiers,
		dir:        dir,
		logger:     log.WithComponent("brief"),
	}
}

// Load gathers today's data relative to clock
func (s *Service) Load(ctx context.Context, clock contracts.RunClock) (Data, error) {
	var (
		d   Data
		err error
	)

	if d.Alerts, err = s.alerts.AlertsSince(ctx, clock.DayStart, alertLimit); err != nil {
		return d, fmt.Errorf("load alerts: %w", err)
	}
	if d.Account, err = s.snapshots.LatestAccount(ctx); err != nil {
		return d, fmt.Errorf("load account: %w", err)
	}
	if d.Positions, err = s.snapshots.PositionsSince(ctx, clock.Now.Add(-positionWindow), positionLimit); err != nil {
		return d, fmt.Errorf("load positions: %w", err)
	}
	if d.Executions, err = s.executions.ListSince(ctx, clock.DayStart, executionLimit); err != nil {
		return d, fmt.Errorf("load executions: %w", err)
	}
	return d, nil
}

// Run writes <dir>/<day>-brief.md and sends it to every notifier.
// Notifier failures are logged and do not fail the run.
func (s *Service) Run(ctx context.Context, clock contracts.RunClock) (string, error) {
	data, err := s.Load(ctx, clock)
	if err != nil {
		return "", err
	}

	md := Render(clock.Now, data)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create brief dir: %w", err)
	}
	path := filepath.Join(s.dir, clock.Now.UTC().Format("2006-01-02")+"-brief.md")
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write brief: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"path":       path,
		"executions": len(data.Executions),
		"alerts":     len(data.Alerts),
	}).Info("Daily brief written")

	subject := "Daily Brief " + clock.Now.UTC().Format("2006-01-02")
	for _, n := range s.notifiers {
		if err := n.Send(ctx, subject, md); err != nil {
			s.logger.WithError(err).WithField("notifier", n.Name()).Warn("Brief delivery failed")
		}
	}
	return path, nil
}

// Render formats the brief as markdown
func Render(now time.Time, d Data) string {
	now = now.UTC()
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Daily Brief %s (UTC)\n\n", now.Format("2006-01-02"))
	fmt.Fprintf(&sb, "Generated at: %s\n", now.Format(time.RFC3339))

	sb.WriteString("\n## Account Snapshot (latest)\n\n")
	if a := d.Account; a == nil {
		sb.WriteString("- (no account snapshot)\n")
	} else {
		fmt.Fprintf(&sb, "- NetLiquidation: %s\n", num(a.NetLiquidation))
		fmt.Fprintf(&sb, "- TotalCash: %s\n", num(a.TotalCash))
		fmt.Fprintf(&sb, "- BuyingPower: %s\n", num(a.BuyingPower))
		fmt.Fprintf(&sb, "- InitMarginReq: %s\n", num(a.InitMarginReq))
		fmt.Fprintf(&sb, "- MaintMarginReq: %s\n", num(a.MaintMarginReq))
		fmt.Fprintf(&sb, "- at: %s\n", a.CreatedAt.UTC().Format(time.RFC3339))
	}

	sb.WriteString("\n## Positions (latest set)\n\n")
	if len(d.Positions) == 0 {
		sb.WriteString("- (no position snapshot)\n")
	} else {
		seen := make(map[string]struct{}, len(d.Positions))
		for _, p := range d.Positions {
			if _, dup := seen[p.Ticker]; dup {
				continue
			}
			seen[p.Ticker] = struct{}{}
			fmt.Fprintf(&sb, "- %s: pos=%s avg_cost=%s mkt_price=%s mkt_value=%s at=%s\n",
				p.Ticker, strconv.FormatFloat(p.Position, 'f', -1, 64),
				num(p.AvgCost), num(p.MarketPrice), num(p.MarketValue), p.CreatedAt.UTC().Format(time.RFC3339))
		}
	}

	sb.WriteString("\n## Executions (today)\n\n")
	if len(d.Executions) == 0 {
		sb.WriteString("- (no executions)\n")
	} else {
		for _, e := range d.Executions {
			fmt.Fprintf(&sb, "- %s | %s | amount=%s | dry_run=%t | price=%s | qty=%s | status=%s | error=%s\n",
				e.CreatedAt.UTC().Format(time.RFC3339), e.Ticker, strconv.FormatFloat(e.AmountUSD, 'f', -1, 64),
				e.DryRun, num(e.Price), num(e.Qty), str(e.OrderStatus), str(e.Error))
		}
	}

	sb.WriteString("\n## News Alerts (today, keyword hits)\n")
	if len(d.Alerts) == 0 {
		sb.WriteString("\n- (no alerts)\n")
	} else {
		byKeyword := make(map[string][]contracts.NewsAlert)
		for _, a := range d.Alerts {
			byKeyword[a.Keyword] = append(byKeyword[a.Keyword], a)
		}
		keywords := make([]string, 0, len(byKeyword))
		for k := range byKeyword {
			keywords = append(keywords, k)
		}
		sort.Strings(keywords)

		for _, k := range keywords {
			fmt.Fprintf(&sb, "\n### %s\n\n", k)
			hits := byKeyword[k]
			if len(hits) > alertsPerKeyword {
				hits = hits[:alertsPerKeyword]
			}
			for _, a := range hits {
				sb.WriteString(alertLine(a, true))
			}
		}
	}

	return sb.String()
}

func num(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func str(v *string) string {
	if v == nil {
		return "n/a"
	}
	return *v
}
