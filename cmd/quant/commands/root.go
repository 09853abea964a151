package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/wonny/newsquant/pkg/config"
	"github.com/wonny/newsquant/pkg/logger"
)

// ErrPanic is returned by Execute when a command panicked
var ErrPanic = errors.New("unhandled panic")

// panicOutput receives the structured panic log
var panicOutput io.Writer = os.Stderr

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "newsquant - 뉴스 시그널 기반 일일 1회 페이퍼 트레이딩",
	Long: `newsquant Unified CLI

뉴스/소셜 헤드라인을 수집하고 LLM으로 티커 시그널을 추출한 뒤,
리스크 게이트를 통과한 최상위 시그널 1건만 페이퍼 계좌로 주문합니다.
모든 실행 시도는 감사 로그(executions)에 기록되고,
T+3/T+7 수익률이 SPY 대비로 평가됩니다.

Pipeline:
  collect → ingest → analyze → select → gate → execute → evaluate

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant run --dry-run
  go run ./cmd/quant scheduler start
  go run ./cmd/quant api
  go run ./cmd/quant evaluate
  go run ./cmd/quant status`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := config.LoadEnvFile(configFile); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("env") || os.Getenv("ENV") == "" {
			return os.Setenv("ENV", env)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// A panic below any command is logged with its stack and returned as ErrPanic.
func Execute() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logPanic(panicOutput, r)
		}
	}()
	return rootCmd.Execute()
}

func logPanic(w io.Writer, r interface{}) error {
	cfg := &config.Config{Env: os.Getenv("ENV"), LogLevel: "error", LogFormat: "json"}
	logger.NewWithWriter(cfg, w).WithFields(map[string]interface{}{
		"panic": fmt.Sprint(r),
		"stack": string(debug.Stack()),
	}).Error("Unhandled panic, exiting")
	return fmt.Errorf("%w: %v", ErrPanic, r)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file to load (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
