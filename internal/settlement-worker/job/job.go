// Package job é a passada agendada do settlement-worker: busca placares,
// liquida partidas verificadas e finaliza as apostas prontas.
package job

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/bet-service/service"
	"github.com/radieske/sports-bet-ledger/internal/betting"
	"github.com/radieske/sports-bet-ledger/internal/settlement-worker/results"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

const LeaseName = "match_results_job"

type Matches interface {
	ListAwaitingResult(ctx context.Context, from, to time.Time) ([]betting.Match, error)
	RecordResult(ctx context.Context, m betting.Match) (bool, error)
	ListUnsettled(ctx context.Context, limit int) ([]betting.Match, error)
	MarkSettled(ctx context.Context, externalID string) (bool, error)
}

type Selections interface {
	PendingSelectionsForEvent(ctx context.Context, eventID string) ([]betting.Selection, error)
	ResolveSelections(ctx context.Context, results []betting.SelectionResult, now time.Time) (int64, error)
}

type ScoreFeed interface {
	Scores(ctx context.Context, sport string, eventIDs []string) ([]results.Score, error)
}

type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type Sweeper interface {
	Sweep(ctx context.Context, batch int) (service.SweepReport, error)
}

type Publisher interface {
	PublishMatchSettled(ctx context.Context, e events.MatchSettled) error
}

type Config struct {
	Timeout   time.Duration
	LockTTL   time.Duration
	Lookback  time.Duration
	BatchSize int
}

// Report resume uma passada
type Report struct {
	Locked          bool // false quando outra instância detinha o lease
	ResultsRecorded int
	MatchesSettled  int
	SelectionsDone  int64
	IntegrityFaults int
	Sweep           service.SweepReport
}

type Job struct {
	log     *zap.Logger
	cfg     Config
	lock    Locker
	matches Matches
	sels    Selections
	feed    ScoreFeed
	sweeper Sweeper
	publ    Publisher
	now     func() time.Time
}

func New(log *zap.Logger, cfg Config, lock Locker, m Matches, sels Selections, feed ScoreFeed, sw Sweeper, publ Publisher) *Job {
	return &Job{
		log:     log,
		cfg:     cfg,
		lock:    lock,
		matches: m,
		sels:    sels,
		feed:    feed,
		sweeper: sw,
		publ:    publ,
		now:     time.Now,
	}
}

// Run é a função chamada pelo cron; erros já são logados
func (j *Job) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.Timeout)
	defer cancel()
	if _, err := j.RunOnce(ctx); err != nil {
		j.log.Error("settlement job failed", zap.Error(err))
	}
}

// RunOnce executa uma passada completa sob o lease
func (j *Job) RunOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	defer func() { jobDuration.Observe(time.Since(start).Seconds()) }()

	release, ok, err := j.lock.TryLock(ctx, LeaseName, j.cfg.LockTTL)
	if err != nil {
		jobRuns.WithLabelValues("error").Inc()
		return Report{}, err
	}
	if !ok {
		jobRuns.WithLabelValues("skipped").Inc()
		j.log.Info("settlement job skipped, lease held elsewhere")
		return Report{}, nil
	}
	defer func() {
		// ctx pode já ter expirado; o release precisa de um prazo próprio
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(rctx); err != nil {
			j.log.Warn("lease release failed", zap.Error(err))
		}
	}()

	rep := Report{Locked: true}
	if err := j.checkResults(ctx, &rep); err != nil {
		// sem placares novos ainda dá para liquidar o que já está gravado
		j.log.Error("result check failed", zap.Error(err))
	}
	if err := j.settleMatches(ctx, &rep); err != nil {
		j.log.Error("match settlement failed", zap.Error(err))
	}

	sw, err := j.sweeper.Sweep(ctx, j.cfg.BatchSize)
	if err != nil {
		jobRuns.WithLabelValues("error").Inc()
		return rep, err
	}
	rep.Sweep = sw

	jobRuns.WithLabelValues("ok").Inc()
	j.log.Info("settlement job done",
		zap.Int("results_recorded", rep.ResultsRecorded),
		zap.Int("matches_settled", rep.MatchesSettled),
		zap.Int64("selections_resolved", rep.SelectionsDone),
		zap.Int("integrity_faults", rep.IntegrityFaults),
		zap.Duration("took", time.Since(start)),
	)
	return rep, nil
}

// checkResults busca placares das partidas em aberto, agrupadas por esporte
func (j *Job) checkResults(ctx context.Context, rep *Report) error {
	now := j.now()
	awaiting, err := j.matches.ListAwaitingResult(ctx, now.Add(-j.cfg.Lookback), now)
	if err != nil {
		return err
	}

	bySport := map[string][]betting.Match{}
	var sports []string
	for _, m := range awaiting {
		if _, ok := bySport[m.SportKey]; !ok {
			sports = append(sports, m.SportKey)
		}
		bySport[m.SportKey] = append(bySport[m.SportKey], m)
	}

	var errs []error
	for _, sport := range sports {
		ms := bySport[sport]
		ids := make([]string, 0, len(ms))
		known := make(map[string]betting.Match, len(ms))
		for _, m := range ms {
			ids = append(ids, m.ExternalID)
			known[m.ExternalID] = m
		}

		scores, err := j.feed.Scores(ctx, sport, ids)
		if err != nil {
			j.log.Warn("scores fetch failed", zap.String("sport", sport), zap.Error(err))
			errs = append(errs, err)
			continue
		}

		for _, sc := range scores {
			m, ok := known[sc.EventID]
			if !ok || !sc.Completed {
				continue
			}
			outcome, ok := betting.DeriveOutcome(sc.HomeScore, sc.AwayScore)
			if !ok {
				j.log.Warn("completed event without usable score", zap.String("event_id", sc.EventID))
				continue
			}
			m.Status = betting.MatchEnded
			m.HomeScore, m.AwayScore = sc.HomeScore, sc.AwayScore
			m.Result = outcome
			m.LastUpdated = j.now()

			changed, err := j.matches.RecordResult(ctx, m)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if changed {
				rep.ResultsRecorded++
				j.log.Info("match result recorded",
					zap.String("event_id", m.ExternalID),
					zap.String("score", m.Score()),
					zap.String("outcome", string(outcome)),
				)
			}
		}
	}
	return errors.Join(errs...)
}

// settleMatches resolve as seleções pendentes de cada partida encerrada e verificada
func (j *Job) settleMatches(ctx context.Context, rep *Report) error {
	ms, err := j.matches.ListUnsettled(ctx, j.cfg.BatchSize)
	if err != nil {
		return err
	}

	var errs []error
	for _, m := range ms {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := betting.VerifyOutcome(m); err != nil {
			rep.IntegrityFaults++
			integrityFaults.Inc()
			j.log.Error("match result failed verification, left unsettled",
				zap.String("event_id", m.ExternalID), zap.Error(err))
			continue
		}
		n, err := j.settleMatch(ctx, m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rep.MatchesSettled++
		rep.SelectionsDone += n
	}
	return errors.Join(errs...)
}

func (j *Job) settleMatch(ctx context.Context, m betting.Match) (int64, error) {
	pending, err := j.sels.PendingSelectionsForEvent(ctx, m.ExternalID)
	if err != nil {
		return 0, err
	}

	res := make([]betting.SelectionResult, 0, len(pending))
	for _, sel := range pending {
		r, ok := betting.ResolveSelection(sel, m)
		if !ok {
			// mercado sem dados para resolver; fica para liquidação manual
			j.log.Warn("selection left unresolved",
				zap.String("selection_id", sel.ID),
				zap.String("market", string(sel.Market)),
				zap.String("event_id", m.ExternalID))
			continue
		}
		res = append(res, r)
	}

	var n int64
	if len(res) > 0 {
		if n, err = j.sels.ResolveSelections(ctx, res, j.now()); err != nil {
			return 0, err
		}
	}

	ok, err := j.matches.MarkSettled(ctx, m.ExternalID)
	if err != nil {
		return n, err
	}
	if !ok {
		return n, nil
	}
	matchesSettled.Inc()

	ev := events.MatchSettled{
		EventID:            m.ExternalID,
		SportKey:           m.SportKey,
		Outcome:            string(m.Result),
		HomeScore:          *m.HomeScore,
		AwayScore:          *m.AwayScore,
		SelectionsResolved: n,
		Ts:                 j.now(),
	}
	if err := j.publ.PublishMatchSettled(ctx, ev); err != nil {
		j.log.Warn("publish match_settled failed", zap.String("event_id", m.ExternalID), zap.Error(err))
	}
	return n, nil
}
