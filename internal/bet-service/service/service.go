// Package service orquestra o ciclo de vida das apostas: colocação, cashout,
// liquidação manual e o sweep periódico. As regras ficam em betting; a
// atomicidade fica no repositório.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/bet-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/betting"
	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

// Repository é o que o serviço precisa da persistência (repo.Postgres em produção)
type Repository interface {
	CreateWager(ctx context.Context, t betting.Ticket) (decimal.Decimal, error)
	GetTicket(ctx context.Context, id string) (betting.Ticket, error)
	ListTickets(ctx context.Context, f repo.Filter) ([]betting.Ticket, int, error)
	ListSettleable(ctx context.Context, limit int) ([]string, error)
	ApplyResults(ctx context.Context, wagerID string, results []betting.SelectionResult, validate func(betting.Ticket) error, now time.Time) error
	Finalize(ctx context.Context, wagerID string, decide func(betting.Ticket) (betting.Decision, error), now time.Time) (repo.Settled, error)
	CashOut(ctx context.Context, wagerID string, quote func(betting.Ticket) (betting.CashoutQuote, error)) (betting.CashoutQuote, decimal.Decimal, error)
	Stats(ctx context.Context) ([]repo.StatusStats, error)
}

// OddsChecker confere a odd enviada contra a odd corrente
type OddsChecker interface {
	Check(ctx context.Context, sel betting.SelectionInput) error
}

// Publisher emite os eventos do ciclo de vida depois do commit
type Publisher interface {
	PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error
	PublishWagerSettled(ctx context.Context, e events.WagerSettled) error
	PublishWagerCashedOut(ctx context.Context, e events.WagerCashedOut) error
}

type Service struct {
	log     *zap.Logger
	repo    Repository
	odds    OddsChecker // nil desliga a checagem
	publ    Publisher
	limits  betting.Limits
	cashout betting.CashoutPolicy
	now     func() time.Time
	newID   func() string
}

func New(log *zap.Logger, r Repository, odds OddsChecker, publ Publisher, limits betting.Limits, cashout betting.CashoutPolicy) *Service {
	return &Service{
		log:     log,
		repo:    r,
		odds:    odds,
		publ:    publ,
		limits:  limits,
		cashout: cashout,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// Placed é a aposta gravada e o saldo depois do débito
type Placed struct {
	Ticket     betting.Ticket
	NewBalance decimal.Decimal
}

// PlaceWager valida o boletim, confere odds e grava aposta e débito de uma vez
func (s *Service) PlaceWager(ctx context.Context, slip betting.Slip) (Placed, error) {
	t, err := betting.BuildTicket(slip, s.limits, s.now(), s.newID)
	if err != nil {
		placementsTotal.WithLabelValues(string(slip.Category), "rejected").Inc()
		return Placed{}, err
	}

	if s.odds != nil {
		for _, sel := range slip.Selections {
			if err := s.odds.Check(ctx, sel); err != nil {
				placementsTotal.WithLabelValues(string(slip.Category), "rejected").Inc()
				return Placed{}, err
			}
		}
	}

	bal, err := s.repo.CreateWager(ctx, t)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			placementsTotal.WithLabelValues(string(slip.Category), "rejected").Inc()
			return Placed{}, betting.ErrInsufficientBalance
		}
		placementsTotal.WithLabelValues(string(slip.Category), "error").Inc()
		return Placed{}, err
	}
	placementsTotal.WithLabelValues(string(slip.Category), "accepted").Inc()

	s.log.Info("wager placed",
		zap.String("wagerId", t.Wager.ID),
		zap.String("userId", t.Wager.UserID),
		zap.String("category", string(t.Wager.Category)),
		zap.String("stake", t.Wager.Stake.String()),
		zap.String("combinedOdds", t.Wager.CombinedOdds.String()),
	)
	s.publishPlaced(ctx, t, bal)

	return Placed{Ticket: t, NewBalance: bal}, nil
}

// Wager devolve uma aposta. Quem não pode ver todas só enxerga as próprias.
func (s *Service) Wager(ctx context.Context, callerID string, viewAll bool, wagerID string) (betting.Ticket, error) {
	if _, err := uuid.Parse(wagerID); err != nil {
		return betting.Ticket{}, betting.ErrWagerNotFound
	}
	t, err := s.repo.GetTicket(ctx, wagerID)
	if err != nil {
		return betting.Ticket{}, err
	}
	if !viewAll && t.Wager.UserID != callerID {
		return betting.Ticket{}, betting.ErrWagerNotFound
	}
	return t, nil
}

// UserWagers lista apostas com filtro e paginação
func (s *Service) UserWagers(ctx context.Context, f repo.Filter) ([]betting.Ticket, int, error) {
	return s.repo.ListTickets(ctx, f)
}

// Quote calcula o cashout sem mutar nada
func (s *Service) Quote(ctx context.Context, userID, wagerID string) (betting.CashoutQuote, error) {
	t, err := s.Wager(ctx, userID, false, wagerID)
	if err != nil {
		return betting.CashoutQuote{}, err
	}
	return s.cashout.Quote(t, s.now())
}

// CashOut aceita o cashout do dono da aposta. A cotação é refeita sobre a linha
// travada, então o valor pago é o do estado no momento do commit.
func (s *Service) CashOut(ctx context.Context, userID, wagerID string) (betting.CashoutQuote, decimal.Decimal, error) {
	if _, err := uuid.Parse(wagerID); err != nil {
		return betting.CashoutQuote{}, decimal.Zero, betting.ErrWagerNotFound
	}

	now := s.now()
	q, bal, err := s.repo.CashOut(ctx, wagerID, func(t betting.Ticket) (betting.CashoutQuote, error) {
		if t.Wager.UserID != userID {
			return betting.CashoutQuote{}, betting.ErrWagerNotFound
		}
		return s.cashout.Quote(t, now)
	})
	if err != nil {
		if !betting.IsValidation(err) {
			s.log.Error("cashout failed", zap.String("wagerId", wagerID), zap.Error(err))
		}
		return betting.CashoutQuote{}, decimal.Zero, err
	}

	cashoutsTotal.Inc()
	s.log.Info("wager cashed out",
		zap.String("wagerId", wagerID),
		zap.String("userId", userID),
		zap.String("amount", q.Amount.String()),
		zap.String("partialOdds", q.PartialOdds.String()),
	)
	if err := s.publ.PublishWagerCashedOut(ctx, events.WagerCashedOut{
		WagerID:     wagerID,
		UserID:      userID,
		Amount:      q.Amount.String(),
		PartialOdds: q.PartialOdds.String(),
		NewBalance:  bal.String(),
		Ts:          now,
	}); err != nil {
		s.log.Warn("publish wager_cashed_out failed", zap.String("wagerId", wagerID), zap.Error(err))
	}
	return q, bal, nil
}

// SettleResult é o estado depois de uma liquidação manual
type SettleResult struct {
	Ticket     betting.Ticket
	Finalized  bool
	Decision   betting.Decision
	NewBalance decimal.NullDecimal
}

// Settle aplica resultados por seleção e, se não sobrar pendência, finaliza a aposta
func (s *Service) Settle(ctx context.Context, wagerID string, results []betting.SelectionResult) (SettleResult, error) {
	if _, err := uuid.Parse(wagerID); err != nil {
		return SettleResult{}, betting.ErrWagerNotFound
	}

	err := s.repo.ApplyResults(ctx, wagerID, results, func(t betting.Ticket) error {
		if t.Wager.Status != betting.WagerPending {
			return betting.RepeatedTransition("settle", wagerID, t.Wager.Status)
		}
		return betting.CheckResults(t, results)
	}, s.now())
	if err != nil {
		s.observe("settle selections", wagerID, err)
		return SettleResult{}, err
	}

	settled, err := s.SettleWager(ctx, wagerID)
	switch {
	case errors.Is(err, betting.ErrSelectionsPending):
		// liquidação parcial: aposta continua pendente
		t, err := s.repo.GetTicket(ctx, wagerID)
		if err != nil {
			return SettleResult{}, err
		}
		return SettleResult{Ticket: t}, nil
	case err != nil:
		return SettleResult{}, err
	}
	return SettleResult{
		Ticket:     settled.Ticket,
		Finalized:  true,
		Decision:   settled.Decision,
		NewBalance: settled.NewBalance,
	}, nil
}

// SettleWager finaliza uma aposta cujas seleções já estão todas resolvidas.
// Crédito e transição acontecem juntos; uma segunda chamada é falha de integridade
// (casa com ErrWagerNotPending).
func (s *Service) SettleWager(ctx context.Context, wagerID string) (repo.Settled, error) {
	now := s.now()
	out, err := s.repo.Finalize(ctx, wagerID, betting.Decide, now)
	if err != nil {
		if !errors.Is(err, betting.ErrSelectionsPending) {
			s.observe("finalize wager", wagerID, err)
		}
		return repo.Settled{}, err
	}

	settlementsTotal.WithLabelValues(string(out.Decision.Status)).Inc()
	s.log.Info("wager settled",
		zap.String("wagerId", wagerID),
		zap.String("userId", out.Ticket.Wager.UserID),
		zap.String("status", string(out.Decision.Status)),
		zap.String("credit", out.Decision.Credit.String()),
	)

	e := events.WagerSettled{
		WagerID: wagerID,
		UserID:  out.Ticket.Wager.UserID,
		Status:  string(out.Decision.Status),
		Credit:  out.Decision.Credit.String(),
		Ts:      now,
	}
	if out.NewBalance.Valid {
		e.NewBalance = out.NewBalance.Decimal.String()
	}
	if err := s.publ.PublishWagerSettled(ctx, e); err != nil {
		s.log.Warn("publish wager_settled failed", zap.String("wagerId", wagerID), zap.Error(err))
	}
	return out, nil
}

// SweepReport resume uma passada do sweep
type SweepReport struct {
	Scanned int `json:"scanned"`
	Settled int `json:"settled"`
	Skipped int `json:"skipped"` // já liquidadas por outra passada
	Failed  int `json:"failed"`
}

// Sweep finaliza apostas pendentes sem seleções pendentes. Falha numa aposta não
// interrompe as demais; ela volta na próxima passada.
func (s *Service) Sweep(ctx context.Context, batch int) (SweepReport, error) {
	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	ids, err := s.repo.ListSettleable(ctx, batch)
	if err != nil {
		return SweepReport{}, err
	}

	rep := SweepReport{Scanned: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			s.log.Warn("sweep interrupted", zap.Int("remaining", len(ids)-rep.Settled-rep.Skipped-rep.Failed), zap.Error(ctx.Err()))
			break
		}
		_, err := s.SettleWager(ctx, id)
		switch {
		case err == nil:
			rep.Settled++
		case errors.Is(err, betting.ErrWagerNotPending), errors.Is(err, betting.ErrSelectionsPending):
			rep.Skipped++
		default:
			rep.Failed++
		}
	}

	s.log.Info("settlement sweep done",
		zap.Int("scanned", rep.Scanned),
		zap.Int("settled", rep.Settled),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return rep, nil
}

// Stats agrega apostas por status
func (s *Service) Stats(ctx context.Context) ([]repo.StatusStats, error) {
	return s.repo.Stats(ctx)
}

// observe registra falhas de integridade (erro + métrica) e transitórias (warn)
func (s *Service) observe(op, wagerID string, err error) {
	switch {
	case betting.IsIntegrity(err):
		integrityFaults.WithLabelValues(op).Inc()
		s.log.Error("integrity fault", zap.String("op", op), zap.String("wagerId", wagerID), zap.Error(err))
	case betting.IsValidation(err):
		s.log.Debug("settlement refused", zap.String("op", op), zap.String("wagerId", wagerID), zap.Error(err))
	default:
		s.log.Warn("settlement failed", zap.String("op", op), zap.String("wagerId", wagerID), zap.Error(err))
	}
}

func (s *Service) publishPlaced(ctx context.Context, t betting.Ticket, bal decimal.Decimal) {
	sels := make([]events.SelectionSummary, len(t.Selections))
	for i, sel := range t.Selections {
		sels[i] = events.SelectionSummary{
			SelectionID: sel.ID,
			EventID:     sel.EventID,
			Market:      string(sel.Market),
			Outcome:     sel.Outcome,
			Odds:        sel.Odds.String(),
		}
	}
	err := s.publ.PublishWagerPlaced(ctx, events.WagerPlaced{
		WagerID:         t.Wager.ID,
		UserID:          t.Wager.UserID,
		Category:        string(t.Wager.Category),
		Stake:           t.Wager.Stake.String(),
		CombinedOdds:    t.Wager.CombinedOdds.String(),
		PotentialPayout: t.Wager.PotentialPayout.String(),
		Selections:      sels,
		NewBalance:      bal.String(),
		Ts:              t.Wager.CreatedAt,
	})
	if err != nil {
		s.log.Warn("publish wager_placed failed", zap.String("wagerId", t.Wager.ID), zap.Error(err))
	}
}
