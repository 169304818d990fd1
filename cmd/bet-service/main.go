package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	bhttp "github.com/radieske/sports-bet-ledger/internal/bet-service/http"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/odds"
	kpub "github.com/radieske/sports-bet-ledger/internal/bet-service/producer"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/service"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/ws"
	"github.com/radieske/sports-bet-ledger/internal/betting"
	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/internal/shared/cache"
	"github.com/radieske/sports-bet-ledger/internal/shared/config"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/internal/shared/logger"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
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

	// Postgres (+ migrations)
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	version, err := db.Migrate(pg.DB)
	if err != nil {
		log.Fatal("migrations", zap.Error(err))
	}
	log.Info("schema ready", zap.Uint("version", version))

	// Redis: cache de odds e canal de notificações
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers (um por tópico do ciclo de vida da aposta)
	publ := kpub.NewKafkaPublisher(
		kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerPlaced),
		kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerSettled),
		kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerCashedOut),
	)
	defer publ.Close()

	// deps
	svc := service.New(log,
		repo.NewPostgres(pg),
		odds.NewValidator(rdb, log),
		publ,
		betting.DefaultLimits(),
		betting.CashoutPolicy{FeeRate: cfg.CashoutFeeRate, Cutoff: cfg.CashoutCutoff},
	)
	accounts := ledger.NewPostgres(pg.DB)

	// WebSocket: hub alimentado pelo canal Redis do notification-worker
	hub := ws.NewHub(log, func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub, log)

	api := bhttp.NewServer(log, svc, accounts, hub.HandleWS, cfg.SweepBatchSize)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort,
		func(err error) { log.Error("metrics server", zap.Error(err)) },
		metrics.Check{Name: "pg", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	go func() {
		log.Info("bet-service listening", zap.String("addr", apiSrv.Addr), zap.String("metrics", metricsSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
