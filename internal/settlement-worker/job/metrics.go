package job

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_job_runs_total",
		Help: "passadas do job por resultado (ok, skipped, error)",
	}, []string{"result"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_job_duration_seconds",
		Help:    "duração de cada passada do job",
		Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
	})

	matchesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_matches_settled_total",
		Help: "partidas liquidadas",
	})

	integrityFaults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_match_integrity_faults_total",
		Help: "partidas cujo resultado gravado não confere com o placar",
	})
)
