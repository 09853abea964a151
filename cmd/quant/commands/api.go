package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/newsquant/internal/api"
	"github.com/wonny/newsquant/internal/api/handlers"
	"github.com/wonny/newsquant/internal/signals"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "읽기 전용 HTTP API 서버 시작",
	Long: `시그널/실행/성과를 조회하는 읽기 전용 HTTP API 서버를 시작합니다.

Endpoints:
  GET /health               DB 연결 포함 상태 확인
  GET /metrics              Prometheus 메트릭
  GET /ws/events            파이프라인 이벤트 스트림 (WebSocket)
  GET /api/signals/today    오늘(UTC) 시그널과 최상위 후보
  GET /api/executions       실행 감사 로그 (ticker, since, until, dry_run, failed, limit)
  GET /api/outcomes         T+3/T+7 성과 (ticker, since, limit)

Example:
  go run ./cmd/quant api
  PORT=9000 go run ./cmd/quant api`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return a.serveAPI(ctx)
}

// serveAPI runs the API server until ctx is canceled. Bus events are streamed to websocket clients.
func (a *app) serveAPI(ctx context.Context) error {
	hub := handlers.NewEventHub(a.log)
	a.bus.Subscribe("websocket", hub)

	routes := api.Routes{
		Signals: handlers.NewSignalHandler(signals.NewRepository(a.db.Pool), a.log),
		Trades:  handlers.NewTradeHandler(api.NewReadStore(a.db.Pool), a.log),
		Events:  hub,
		Ping:    a.db.Ping,
	}
	if a.cfg.MetricsEnabled {
		routes.Metrics = a.metrics.Handler()
	}

	server := api.New(a.cfg, a.log, api.NewRouter(routes, a.log))
	server.OnShutdown(hub.Close)

	fmt.Printf("✅ API server listening on %s\n", server.Addr())
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("❌ API server failed: %w", err)
	}
	fmt.Println("✅ API server stopped")
	return nil
}
