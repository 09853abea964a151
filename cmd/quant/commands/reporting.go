package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/newsquant/internal/contracts"
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "과거 실행의 T+3/T+7 성과 평가",
	Long: `버퍼 기간이 지난 실행 건의 T+3/T+7 수익률을 벤치마크(SPY) 대비로 계산합니다.

- 실패한 실행(error 기록)은 평가하지 않습니다
- 이미 계산된 실행은 건너뜁니다 (execution_id 기준 1회)
- 세션/가격이 부족한 건은 다음 실행으로 미룹니다

Example:
  go run ./cmd/quant evaluate`,
	RunE: runEvaluate,
}

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "계좌/포지션 스냅샷 저장",
	Long: `브로커 계좌 가치와 보유 포지션을 조회해 저장합니다.
거래 상태는 변경하지 않습니다.

Example:
  go run ./cmd/quant snapshot`,
	RunE: runSnapshot,
}

// briefCmd represents the brief command
var briefCmd = &cobra.Command{
	Use:   "brief",
	Short: "일일 마크다운 브리프 생성 및 전송",
	Long: `오늘(UTC)의 뉴스 알림, 계좌 스냅샷, 실행 내역으로 마크다운 브리프를 작성합니다.
설정된 알림 채널(Telegram/Email)로 전송합니다.

Example:
  go run ./cmd/quant brief`,
	RunE: runBrief,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(briefCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println("=== Outcome Evaluation ===")
	summary, err := a.evaluator().Run(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("❌ evaluation failed: %w", err)
	}

	fmt.Println("📊 Summary:")
	fmt.Printf("   Pending:          %d\n", summary.Pending)
	fmt.Printf("   Inserted:         %d\n", summary.Inserted)
	fmt.Printf("   Already computed: %d\n", summary.AlreadyComputed)
	fmt.Printf("   Skipped:          %d\n", summary.Skipped)
	fmt.Println("\n✅ Evaluation complete")
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println("=== Account Snapshot ===")
	result, err := a.snapshotService().Take(ctx, time.Now())
	fmt.Printf("   Account saved: %v\n", result.AccountSaved)
	fmt.Printf("   Positions:     %d\n", result.Positions)
	if err != nil {
		return fmt.Errorf("❌ snapshot incomplete: %w", err)
	}
	fmt.Println("✅ Snapshot saved")
	return nil
}

func runBrief(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	path, err := a.briefService().Run(ctx, contracts.NewRunClock(time.Now()))
	if err != nil {
		return fmt.Errorf("❌ brief failed: %w", err)
	}
	fmt.Printf("✅ Brief written: %s\n", path)
	return nil
}
