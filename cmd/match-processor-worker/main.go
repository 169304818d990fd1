package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/match-processor/cache"
	"github.com/radieske/sports-bet-ledger/internal/match-processor/consumer"
	"github.com/radieske/sports-bet-ledger/internal/matches"
	sharedcache "github.com/radieske/sports-bet-ledger/internal/shared/cache"
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

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if _, err := db.Migrate(pg.DB); err != nil {
		log.Fatal("migrations", zap.Error(err))
	}

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Consumer Kafka (consumer group match-processor)
	reader := kafka.NewGroupReader(cfg.KafkaBrokers, "match-processor", cfg.TopicMatchUpdates)
	defer reader.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := promauto.NewCounter(prometheus.CounterOpts{Name: "match_proc_messages_consumed_total", Help: "mensagens consumidas"})
	cached := promauto.NewCounter(prometheus.CounterOpts{Name: "match_proc_cache_sets_total", Help: "odds gravadas no cache"})
	persist := promauto.NewCounter(prometheus.CounterOpts{Name: "match_proc_db_writes_total", Help: "upserts de partida"})
	errorsBy := promauto.NewCounterVec(prometheus.CounterOpts{Name: "match_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Store:      matches.NewPostgres(pg.DB),
		Cache:      cache.NewRedisCache(redisClient, cfg.OddsCacheTTL),
		OnConsumed: func() { consumed.Inc() },
		OnCached:   func() { cached.Inc() },
		OnPersist:  func() { persist.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort,
		func(err error) { log.Error("metrics server", zap.Error(err)) },
		metrics.Check{Name: "pg", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	)

	log.Info("match-processor started", zap.String("topic", cfg.TopicMatchUpdates))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("match-processor stopped")
}
