package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/feed-simulator/feed"
	"github.com/radieske/sports-bet-ledger/internal/shared/config"
	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/internal/shared/logger"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
)

var (
	updatesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_sim_match_updates_published_total",
		Help: "match_updates publicados no Kafka",
	})
	publishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_sim_publish_errors_total",
		Help: "falhas ao publicar no Kafka",
	})
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

	// partidas "duram" 10 minutos para o ciclo completo caber numa sessão local
	f := feed.NewFeed(time.Now(), 10*time.Minute, cfg.ServiceName)
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchUpdates)
	defer writer.Close()

	// Publica odds simuladas a cada 3 segundos
	go func() {
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			for _, up := range f.Updates() {
				if err := kafka.WriteJSON(ctx, writer, up.EventID, up); err != nil {
					publishErrors.Inc()
					log.Warn("publish match update failed", zap.String("event_id", up.EventID), zap.Error(err))
					continue
				}
				updatesPublished.Inc()
			}
		}
	}()

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort,
		func(err error) { log.Error("metrics server error", zap.Error(err)) })

	publicSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           f.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("feed simulator (public) running",
			zap.String("addr", publicSrv.Addr),
			zap.String("paths", "/v4/sports/{sport}/scores/"),
			zap.String("topic", cfg.TopicMatchUpdates),
		)
		if err := publicSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("public server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = publicSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
