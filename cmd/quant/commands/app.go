package commands

import (
	"context"
	"fmt"

	"github.com/wonny/newsquant/internal/analyzer"
	"github.com/wonny/newsquant/internal/brief"
	"github.com/wonny/newsquant/internal/collector"
	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/evaluator"
	"github.com/wonny/newsquant/internal/execution"
	"github.com/wonny/newsquant/internal/external/alpaca"
	"github.com/wonny/newsquant/internal/external/deepseek"
	"github.com/wonny/newsquant/internal/ingest"
	"github.com/wonny/newsquant/internal/marketcal"
	"github.com/wonny/newsquant/internal/observability"
	"github.com/wonny/newsquant/internal/pipeline"
	"github.com/wonny/newsquant/internal/signals"
	"github.com/wonny/newsquant/internal/snapshot"
	"github.com/wonny/newsquant/pkg/config"
	"github.com/wonny/newsquant/pkg/database"
	"github.com/wonny/newsquant/pkg/httputil"
	"github.com/wonny/newsquant/pkg/logger"
	"github.com/wonny/newsquant/pkg/redis"
)

// app holds the process-wide dependencies of one command invocation
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	redis   *redis.Client
	metrics *observability.Metrics
	bus     *pipeline.Bus
}

// newApp loads config, connects storage (applying migrations) and starts the event bus
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Redis is optional: a failed connection degrades to no cache and no shared limits
	rdb, err := redis.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rdb = redis.Disabled()
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		redis:   rdb,
		metrics: observability.NewMetrics(),
		bus:     pipeline.NewBus(pipeline.DefaultBusBuffer, log),
	}
	a.bus.Subscribe("log", pipeline.NewLogObserver(log))
	if cfg.MetricsEnabled {
		a.bus.Subscribe("metrics", a.metrics)
	}
	return a, nil
}

// close drains the bus and releases connections
func (a *app) close() {
	a.bus.Close()
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
	a.db.Close()
}

func (a *app) limiter() *redis.RateLimiter {
	return redis.NewRateLimiter(a.redis, "newsquant")
}

// broker creates a brokerage session factory; each call returns a fresh client
func (a *app) broker() *alpaca.Client {
	return alpaca.NewClient(a.cfg.Broker, a.cfg.Trading.CallTimeout, a.log).
		WithRateLimiter(a.limiter())
}

// orchestrator wires the daily run
func (a *app) orchestrator() (*pipeline.Orchestrator, error) {
	cfg := a.cfg

	sources, err := collector.SourcesFromConfig(cfg.Collectors)
	if err != nil {
		return nil, fmt.Errorf("load collector sources: %w", err)
	}
	httpClient := httputil.New(a.log, cfg.Collectors.Timeout)
	multi := collector.NewFromSources(sources, httpClient, cfg.Collectors.UserAgent, a.log)

	client := deepseek.NewClient(cfg.Analysis, a.log).WithRateLimiter(a.limiter())
	an := analyzer.New(client, analyzer.ConfigFrom(cfg.Analysis), a.log)

	executions := execution.NewRepository(a.db.Pool)
	gate := execution.NewRiskGate(executions, execution.RiskGateConfig{
		MinSentiment:   cfg.Trading.MinSentiment,
		MaxDailyTrades: cfg.Trading.MaxDailyTrades,
	}, a.log)
	coord := execution.NewCoordinator(a.broker(), executions, execution.CoordinatorConfigFrom(cfg.Trading), a.log)

	orch := pipeline.NewOrchestrator(
		multi,
		ingest.NewDeduplicator(ingest.NewRepository(a.db.Pool), a.log),
		an,
		signals.NewSelector(signals.NewRepository(a.db.Pool), a.log),
		gate,
		coord,
		a.log,
	).WithObserver(a.bus)

	if len(sources.Keywords) > 0 {
		orch.WithAlerts(brief.NewAlerter(brief.NewRepository(a.db.Pool), sources.Keywords, cfg.Brief.NewsDir, a.log))
	}
	return orch, nil
}

// calendar returns the configured session source, cached in redis
func (a *app) calendar(broker *alpaca.Client) contracts.MarketCalendar {
	var source contracts.MarketCalendar = marketcal.NYSE{}
	if a.cfg.Evaluation.Calendar == "broker" {
		source = broker
	}
	return evaluator.NewCachedCalendar(source, redis.NewCache(a.redis, "newsquant"), a.log)
}

// evaluator wires the outcome evaluator
func (a *app) evaluator() *evaluator.Evaluator {
	broker := a.broker()
	prices := evaluator.NewCachedPrices(broker, redis.NewCache(a.redis, "newsquant"), a.log)
	return evaluator.New(
		evaluator.NewRepository(a.db.Pool),
		a.calendar(broker),
		prices,
		evaluator.ConfigFrom(a.cfg.Evaluation),
		a.log,
	).WithObserver(a.bus)
}

// snapshotService wires the account snapshot
func (a *app) snapshotService() *snapshot.Service {
	return snapshot.NewService(a.broker(), snapshot.NewRepository(a.db.Pool), a.log)
}

// briefService wires the daily brief
func (a *app) briefService() *brief.Service {
	return brief.NewService(
		brief.NewRepository(a.db.Pool),
		snapshot.NewRepository(a.db.Pool),
		execution.NewRepository(a.db.Pool),
		a.cfg.Brief.BriefDir,
		a.log,
		brief.NotifiersFromConfig(a.cfg.Notify, a.log)...,
	)
}
