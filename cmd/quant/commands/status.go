package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/evaluator"
	"github.com/wonny/newsquant/internal/execution"
	"github.com/wonny/newsquant/internal/performance"
	"github.com/wonny/newsquant/internal/snapshot"
)

var statusOutcomes int

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "오늘 실행 현황과 최근 성과 요약",
	Long: `오늘(UTC) 실행 건수와 일일 한도, 최신 계좌 스냅샷, 최근 성과를 표시합니다.

Example:
  go run ./cmd/quant status
  go run ./cmd/quant status --outcomes 20`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusOutcomes, "outcomes", 10, "number of recent outcomes to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	clock := contracts.NewRunClock(time.Now())
	fmt.Printf("=== newsquant status (%s UTC) ===\n\n", clock.DayStart.Format("2006-01-02"))

	executions := execution.NewRepository(a.db.Pool)
	count, err := executions.CountSince(ctx, clock.DayStart)
	if err != nil {
		return fmt.Errorf("❌ count executions: %w", err)
	}
	mark := "✅"
	if count >= a.cfg.Trading.MaxDailyTrades {
		mark = "⛔"
	}
	fmt.Printf("%s Executions today: %d/%d (dry_run=%v, mode=%s)\n",
		mark, count, a.cfg.Trading.MaxDailyTrades, a.cfg.Trading.DryRun, a.cfg.Trading.Mode)

	today, err := executions.ListSince(ctx, clock.DayStart, a.cfg.Trading.MaxDailyTrades+10)
	if err != nil {
		return fmt.Errorf("❌ list executions: %w", err)
	}
	for _, e := range today {
		printExecution(e)
	}

	acct, err := snapshot.NewRepository(a.db.Pool).LatestAccount(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("❌ latest snapshot: %w", err)
	case acct == nil:
		fmt.Println("\nAccount: no snapshot yet")
	default:
		fmt.Printf("\nAccount (%s):\n", acct.CreatedAt.Format(time.RFC3339))
		fmt.Printf("   Net liquidation: %s  Cash: %s  Buying power: %s\n",
			money(acct.NetLiquidation), money(acct.TotalCash), money(acct.BuyingPower))
	}

	outcomes, err := evaluator.NewRepository(a.db.Pool).ListRecent(ctx, statusOutcomes)
	if err != nil {
		return fmt.Errorf("❌ list outcomes: %w", err)
	}
	fmt.Printf("\n📊 Recent outcomes (%d):\n", len(outcomes))
	for _, o := range outcomes {
		fmt.Printf("   #%-5d %-6s entry=%s t3=%+.2f%% t7=%+.2f%% excess_t7=%+.2f%%\n",
			o.ExecutionID, o.Ticker, o.EntrySessionDate.Format("2006-01-02"),
			o.T3Return*100, o.T7Return*100, o.ExcessT7()*100)
	}
	if len(outcomes) > 0 {
		r := performance.Summarize(outcomes)
		fmt.Printf("   Mean excess T+7: %+.2f%%  Beat SPY: %.0f%%  Win rate: %.0f%%  Max drawdown: %.2f%%\n",
			r.MeanExcessT7*100, r.BeatRateT7*100, r.WinRate*100, r.MaxDrawdown*100)
	}
	return nil
}

func money(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *v)
}
