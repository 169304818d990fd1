package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	placementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bet_wagers_placed_total",
		Help: "tentativas de aposta por categoria e resultado",
	}, []string{"category", "result"})

	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bet_wagers_settled_total",
		Help: "apostas finalizadas por status",
	}, []string{"status"})

	cashoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bet_wagers_cashed_out_total",
		Help: "cashouts aceitos",
	})

	integrityFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bet_integrity_faults_total",
		Help: "falhas de integridade recusadas por operação",
	}, []string{"op"})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bet_settlement_sweep_duration_seconds",
		Help:    "duração de cada passada do sweep",
		Buckets: prometheus.DefBuckets,
	})
)
