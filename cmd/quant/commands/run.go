package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/execution"
	"github.com/wonny/newsquant/internal/pipeline"
)

var runDryRun bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "일일 파이프라인 1회 실행 (collect → execute)",
	Long: `뉴스 수집부터 주문 실행까지 일일 파이프라인을 1회 실행합니다.

Stages:
  COLLECT  RSS/Reddit 헤드라인 수집
  INGEST   URL/외부 ID 기준 중복 제거 후 저장
  ANALYZE  LLM 배치 분석 → 티커 시그널
  SELECT   오늘(UTC) 최상위 후보 1건 선택
  GATE     감성 임계값 + 일일 실행 한도 확인
  EXECUTE  페이퍼 계좌 시장가 매수 (항상 감사 로그 기록)

주문 실패는 재시도하지 않습니다. 실패한 시도도 한도에 포함됩니다.

Example:
  go run ./cmd/quant run
  go run ./cmd/quant run --dry-run`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "force dry-run (no order is submitted)")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if runDryRun {
		a.cfg.Trading.DryRun = true
	}

	orch, err := a.orchestrator()
	if err != nil {
		return err
	}

	now := time.Now()
	fmt.Printf("=== newsquant daily run (dry_run=%v) ===\n", a.cfg.Trading.DryRun)
	result, err := orch.Run(ctx, pipeline.RunConfig{
		RunID: pipeline.GenerateRunID(now),
		Now:   now,
	})
	printRunResult(result)
	if err != nil {
		return fmt.Errorf("❌ run failed: %w", err)
	}
	return nil
}

func printRunResult(r *pipeline.RunResult) {
	if r == nil {
		return
	}
	fmt.Printf("Run: %s (day start %s)\n\n", r.RunID, r.Clock.DayStart.Format("2006-01-02"))

	fmt.Println("📊 Stages:")
	for _, s := range r.Stages {
		mark := "✅"
		if !s.Success {
			mark = "❌"
		}
		fmt.Printf("   %s %-8s in=%-4d out=%-4d %dms", mark, s.Stage, s.InputCount, s.OutputCount, s.DurationMs)
		if s.Error != "" {
			fmt.Printf("  %s", s.Error)
		}
		fmt.Println()
	}

	fmt.Println()
	if r.Candidate != nil {
		fmt.Printf("Candidate: %s (sentiment %.2f) %s\n", r.Candidate.TickerOrEmpty(), r.Candidate.Sentiment, r.Candidate.Summary)
	} else {
		fmt.Println("Candidate: none")
	}
	if r.Decision != nil {
		fmt.Printf("Gate: approved=%v reason=%s (today %d/%d)\n",
			r.Decision.Approved, r.Decision.Reason, r.Decision.Input.TradesToday, r.Decision.Input.MaxDailyTrades)
	}
	if r.Execution != nil {
		printExecution(*r.Execution)
	}

	switch {
	case r.Error != nil:
		fmt.Printf("\n❌ Failed after %v\n", r.Duration.Round(time.Millisecond))
	case r.Traded():
		fmt.Printf("\n✅ Traded in %v\n", r.Duration.Round(time.Millisecond))
	default:
		fmt.Printf("\n✅ No trade today (%v)\n", r.Duration.Round(time.Millisecond))
	}
}

func printExecution(e contracts.Execution) {
	fmt.Printf("Execution #%d: %s $%.2f dry_run=%v state=%s\n",
		e.ID, e.Ticker, e.AmountUSD, e.DryRun, execution.TerminalState(&e))
	if e.Price != nil && e.Qty != nil {
		fmt.Printf("   price=%.4f qty=%.6f\n", *e.Price, *e.Qty)
	}
	if e.OrderStatus != nil {
		fmt.Printf("   order_status=%s\n", *e.OrderStatus)
	}
	if e.Error != nil {
		fmt.Printf("   error=%s\n", *e.Error)
	}
}
