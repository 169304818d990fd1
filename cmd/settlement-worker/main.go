package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	kpub "github.com/radieske/sports-bet-ledger/internal/bet-service/producer"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/service"
	"github.com/radieske/sports-bet-ledger/internal/betting"
	"github.com/radieske/sports-bet-ledger/internal/matches"
	"github.com/radieske/sports-bet-ledger/internal/settlement-worker/job"
	spub "github.com/radieske/sports-bet-ledger/internal/settlement-worker/producer"
	"github.com/radieske/sports-bet-ledger/internal/settlement-worker/results"
	"github.com/radieske/sports-bet-ledger/internal/shared/config"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/internal/shared/lease"
	"github.com/radieske/sports-bet-ledger/internal/shared/logger"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
	"github.com/radieske/sports-bet-ledger/internal/shared/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if _, err := db.Migrate(pg.DB); err != nil {
		log.Fatal("migrations", zap.Error(err))
	}

	// Eventos: wager_settled vem do sweep, match_settled do job
	wagerPubl := kpub.NewKafkaPublisher(
		kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerPlaced),
		kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerSettled),
		kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerCashedOut),
	)
	defer wagerPubl.Close()
	matchPubl := spub.NewKafkaPublisher(kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchSettled))
	defer matchPubl.Close()

	wagers := repo.NewPostgres(pg)
	svc := service.New(log, wagers, nil, wagerPubl, betting.DefaultLimits(),
		betting.CashoutPolicy{FeeRate: cfg.CashoutFeeRate, Cutoff: cfg.CashoutCutoff})

	feed := results.New(cfg.FeedBaseURL, cfg.FeedAPIKey,
		results.WithHTTPClient(&http.Client{Timeout: cfg.FeedTimeout}),
		results.WithRateLimit(cfg.FeedRPS, 1),
		results.WithRetry(retry.Default()),
		results.WithLogger(log),
	)

	j := job.New(log,
		job.Config{
			Timeout:   cfg.SweepTimeout,
			LockTTL:   cfg.SweepLockTTL,
			Lookback:  cfg.ResultsLookback,
			BatchSize: cfg.SweepBatchSize,
		},
		lease.NewPostgres(pg.DB),
		matches.NewPostgres(pg.DB),
		wagers,
		feed,
		svc,
		matchPubl,
	)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort,
		func(err error) { log.Error("metrics server", zap.Error(err)) },
		metrics.Check{Name: "pg", Fn: pg.PingContext},
	)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.SweepSchedule, j.Run); err != nil {
		log.Fatal("invalid sweep schedule", zap.String("schedule", cfg.SweepSchedule), zap.Error(err))
	}
	c.Start()
	log.Info("settlement-worker started",
		zap.String("schedule", cfg.SweepSchedule),
		zap.Duration("timeout", cfg.SweepTimeout),
		zap.String("feed", cfg.FeedBaseURL),
	)

	<-ctx.Done()
	log.Info("shutting down, waiting for running job")
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("settlement-worker stopped")
}
