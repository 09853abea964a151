package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/newsquant/internal/scheduler"
	"github.com/wonny/newsquant/internal/scheduler/jobs"
)

var schedulerWithAPI bool

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리 (start, list, run)",
	Long: `일일 파이프라인과 리포팅 작업을 cron으로 실행합니다 (UTC).

Jobs:
  daily_run     평일 14:00  파이프라인 1회 실행 (재시도 없음)
  snapshot      매일 21:30  계좌/포지션 스냅샷
  evaluation    매일 22:00  T+3/T+7 성과 평가
  daily_brief   매일 22:30  일일 브리프 작성/전송

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler start --with-api
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run evaluation`,
}

var schedulerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "스케줄러 데몬 시작",
	RunE:  runSchedulerStart,
}

var schedulerListCmd = &cobra.Command{
	Use:   "list",
	Short: "등록된 작업과 스케줄 표시",
	RunE:  runSchedulerList,
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run [job]",
	Short: "작업 즉시 1회 실행",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulerRun,
}

func init() {
	schedulerStartCmd.Flags().BoolVar(&schedulerWithAPI, "with-api", false, "serve the HTTP API in the same process")
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	rootCmd.AddCommand(schedulerCmd)
}

// buildScheduler registers every job
func (a *app) buildScheduler() (*scheduler.Scheduler, error) {
	orch, err := a.orchestrator()
	if err != nil {
		return nil, err
	}

	s := scheduler.New(scheduler.DefaultConfig(), a.log)
	for _, job := range []scheduler.Job{
		jobs.NewDailyRunJob(orch, a.log),
		jobs.NewSnapshotJob(a.snapshotService(), a.log),
		jobs.NewEvaluationJob(a.evaluator(), a.log),
		jobs.NewBriefJob(a.briefService(), a.log),
	} {
		if err := s.AddJob(job); err != nil {
			return nil, fmt.Errorf("register job %s: %w", job.Name(), err)
		}
	}
	return s, nil
}

func runSchedulerStart(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	s, err := a.buildScheduler()
	if err != nil {
		return err
	}

	s.Start()
	fmt.Println("✅ Scheduler started (Ctrl+C to stop)")
	printJobs(s)

	g, gctx := errgroup.WithContext(ctx)
	if schedulerWithAPI {
		g.Go(func() error { return a.serveAPI(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err = g.Wait()

	s.Stop()
	fmt.Println("✅ Scheduler stopped")
	return err
}

func runSchedulerList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	s, err := a.buildScheduler()
	if err != nil {
		return err
	}
	printJobs(s)
	return nil
}

func runSchedulerRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	s, err := a.buildScheduler()
	if err != nil {
		return err
	}

	fmt.Printf("Running %s...\n", args[0])
	result, err := s.RunNow(ctx, args[0])
	fmt.Printf("   Attempts: %d\n", result.Attempts)
	fmt.Printf("   Duration: %v\n", result.Duration.Round(time.Millisecond))
	if err != nil {
		return fmt.Errorf("❌ %s failed: %w", args[0], err)
	}
	fmt.Printf("✅ %s succeeded\n", args[0])
	return nil
}

func printJobs(s *scheduler.Scheduler) {
	stats := s.GetJobStats()
	fmt.Println("📊 Jobs:")
	for _, name := range s.GetAllJobs() {
		st := stats[name]
		next := "-"
		if t := s.NextRun(name); !t.IsZero() {
			next = t.UTC().Format(time.RFC3339)
		}
		fmt.Printf("   %-12s %-16s retries=%d next=%s\n", name, st.Schedule, st.MaxRetries, next)
	}
}
