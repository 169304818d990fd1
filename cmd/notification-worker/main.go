package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/notification"
	"github.com/radieske/sports-bet-ledger/internal/shared/cache"
	"github.com/radieske/sports-bet-ledger/internal/shared/config"
	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
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

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka consumer: todos os tópicos do ciclo de vida da aposta no mesmo grupo
	reader := kafka.NewGroupReader(cfg.KafkaBrokers, "notification-worker",
		cfg.TopicWagerPlaced, cfg.TopicWagerSettled, cfg.TopicWagerCashedOut)
	defer reader.Close()

	var dlq *kafka.Writer
	if cfg.TopicWagerEventsDLQ != "" {
		dlq = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerEventsDLQ)
		defer dlq.Close()
	}

	w := &notification.Worker{
		Log:     log,
		Reader:  reader,
		Out:     notification.NewRedisBroadcaster(rdb),
		Channel: cfg.RedisPubSubChannel,
		Retry:   retry.Default(),
	}
	if dlq != nil {
		w.DLQ = dlq
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort,
		func(err error) { log.Error("metrics server", zap.Error(err)) },
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	log.Info("notification-worker started",
		zap.Strings("consume", []string{cfg.TopicWagerPlaced, cfg.TopicWagerSettled, cfg.TopicWagerCashedOut}),
		zap.String("channel", cfg.RedisPubSubChannel),
		zap.String("dlq", cfg.TopicWagerEventsDLQ),
	)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("worker stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("notification-worker stopped")
}
