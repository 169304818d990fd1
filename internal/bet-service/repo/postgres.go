package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-ledger/internal/betting"
	"github.com/radieske/sports-bet-ledger/internal/ledger"
)

// Postgres implementa a persistência de apostas e seleções
type Postgres struct{ db *sqlx.DB }

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sqlx.DB) *Postgres { return &Postgres{db: db} }

// CreateWager debita o stake e grava aposta e seleções numa única transação.
// O débito vem primeiro: saldo insuficiente aborta antes de qualquer escrita.
func (p *Postgres) CreateWager(ctx context.Context, t betting.Ticket) (decimal.Decimal, error) {
	w := t.Wager

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()

	bal, err := ledger.Debit(ctx, tx, w.UserID, w.Stake)
	if err != nil {
		return decimal.Zero, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wagers (id, user_id, category, stake, combined_odds, potential_payout, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		w.ID, w.UserID, string(w.Category), w.Stake, w.CombinedOdds, w.PotentialPayout, string(w.Status), w.CreatedAt,
	); err != nil {
		return decimal.Zero, fmt.Errorf("insert wager: %w", err)
	}

	for i, s := range t.Selections {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO selections (id, wager_id, position, sport_key, event_id, market, outcome, line, odds, status, event_time)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			s.ID, w.ID, i, s.SportKey, s.EventID, string(s.Market), s.Outcome, s.Line, s.Odds, string(s.Status), s.EventTime,
		); err != nil {
			return decimal.Zero, fmt.Errorf("insert selection %d: %w", i, err)
		}
	}

	if err := ledger.Record(ctx, tx, ledger.Entry{
		AccountID:    w.UserID,
		Type:         ledger.EntryBetPlacement,
		Amount:       w.Stake.Neg(),
		BalanceAfter: bal,
		Reference:    w.ID,
	}); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return bal, nil
}

// GetTicket busca a aposta com as seleções na ordem de colocação
func (p *Postgres) GetTicket(ctx context.Context, id string) (betting.Ticket, error) {
	var w wagerRow
	err := p.db.GetContext(ctx, &w, `SELECT `+wagerColumns+` FROM wagers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return betting.Ticket{}, betting.ErrWagerNotFound
	}
	if err != nil {
		return betting.Ticket{}, fmt.Errorf("get wager: %w", err)
	}

	var sels []selectionRow
	if err := p.db.SelectContext(ctx, &sels,
		`SELECT `+selectionColumns+` FROM selections WHERE wager_id = $1 ORDER BY position`, id); err != nil {
		return betting.Ticket{}, fmt.Errorf("get selections: %w", err)
	}
	return assemble(w, sels)
}

// ListTickets lista apostas (mais recentes primeiro) e devolve o total sem paginação
func (p *Postgres) ListTickets(ctx context.Context, f Filter) ([]betting.Ticket, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := p.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM wagers`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count wagers: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	q := fmt.Sprintf(`SELECT %s FROM wagers%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		wagerColumns, where, len(args)-1, len(args))

	var wagers []wagerRow
	if err := p.db.SelectContext(ctx, &wagers, q, args...); err != nil {
		return nil, 0, fmt.Errorf("list wagers: %w", err)
	}
	if len(wagers) == 0 {
		return nil, total, nil
	}

	ids := make([]string, len(wagers))
	for i, w := range wagers {
		ids[i] = w.ID
	}
	var sels []selectionRow
	if err := p.db.SelectContext(ctx, &sels,
		`SELECT `+selectionColumns+` FROM selections WHERE wager_id = ANY($1) ORDER BY wager_id, position`,
		pq.Array(ids)); err != nil {
		return nil, 0, fmt.Errorf("list selections: %w", err)
	}

	byWager := make(map[string][]selectionRow, len(wagers))
	for _, s := range sels {
		byWager[s.WagerID] = append(byWager[s.WagerID], s)
	}

	out := make([]betting.Ticket, 0, len(wagers))
	for _, w := range wagers {
		t, err := assemble(w, byWager[w.ID])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, nil
}

// ListSettleable devolve apostas pendentes sem nenhuma seleção pendente
func (p *Postgres) ListSettleable(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := p.db.SelectContext(ctx, &ids, `
		SELECT w.id
		  FROM wagers w
		 WHERE w.status = 'pending'
		   AND NOT EXISTS (
		       SELECT 1 FROM selections s WHERE s.wager_id = w.id AND s.status = 'pending')
		 ORDER BY w.created_at
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list settleable wagers: %w", err)
	}
	return ids, nil
}

// lockTicket lê aposta e seleções com FOR UPDATE dentro da transação
func lockTicket(ctx context.Context, tx *sqlx.Tx, id string) (betting.Ticket, error) {
	var w wagerRow
	err := tx.GetContext(ctx, &w, `SELECT `+wagerColumns+` FROM wagers WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return betting.Ticket{}, betting.ErrWagerNotFound
	}
	if err != nil {
		return betting.Ticket{}, fmt.Errorf("lock wager: %w", err)
	}

	var sels []selectionRow
	if err := tx.SelectContext(ctx, &sels,
		`SELECT `+selectionColumns+` FROM selections WHERE wager_id = $1 ORDER BY position FOR UPDATE`, id); err != nil {
		return betting.Ticket{}, fmt.Errorf("lock selections: %w", err)
	}
	return assemble(w, sels)
}

// ApplyResults grava resultados manuais nas seleções da aposta.
// validate roda sobre o ticket travado; qualquer erro aborta tudo.
func (p *Postgres) ApplyResults(ctx context.Context, wagerID string, results []betting.SelectionResult,
	validate func(betting.Ticket) error, now time.Time) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := lockTicket(ctx, tx, wagerID)
	if err != nil {
		return err
	}
	if err := validate(t); err != nil {
		return err
	}

	for _, r := range results {
		n, err := updateSelection(ctx, tx, r, now)
		if err != nil {
			return err
		}
		if n != 1 {
			return &betting.IntegrityError{Op: "settle selection", Ref: r.SelectionID, Detail: "selection left pending concurrently"}
		}
	}
	return tx.Commit()
}

// ResolveSelections aplica resultados vindos do feed. Só toca seleções ainda pendentes,
// então reprocessar o mesmo evento não muda nada. Devolve quantas mudaram.
func (p *Postgres) ResolveSelections(ctx context.Context, results []betting.SelectionResult, now time.Time) (int64, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	for _, r := range results {
		n, err := updateSelection(ctx, tx, r, now)
		if err != nil {
			return 0, err
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func updateSelection(ctx context.Context, tx *sqlx.Tx, r betting.SelectionResult, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE selections SET status = $1, result = $2, settled_at = $3 WHERE id = $4 AND status = 'pending'`,
		string(r.Status), r.Result, now, r.SelectionID)
	if err != nil {
		return 0, fmt.Errorf("update selection %s: %w", r.SelectionID, err)
	}
	return res.RowsAffected()
}

// PendingSelectionsForEvent lista seleções pendentes de um evento externo
func (p *Postgres) PendingSelectionsForEvent(ctx context.Context, eventID string) ([]betting.Selection, error) {
	var rows []selectionRow
	if err := p.db.SelectContext(ctx, &rows,
		`SELECT `+selectionColumns+` FROM selections WHERE event_id = $1 AND status = 'pending'`, eventID); err != nil {
		return nil, fmt.Errorf("pending selections for %s: %w", eventID, err)
	}
	out := make([]betting.Selection, len(rows))
	for i, r := range rows {
		out[i] = r.toSelection()
	}
	return out, nil
}

// Finalize aplica a transição final da aposta e o crédito correspondente numa transação.
// A linha travada garante que o crédito acontece uma única vez mesmo com sweeps concorrentes.
func (p *Postgres) Finalize(ctx context.Context, wagerID string, decide func(betting.Ticket) (betting.Decision, error), now time.Time) (Settled, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return Settled{}, err
	}
	defer tx.Rollback()

	t, err := lockTicket(ctx, tx, wagerID)
	if err != nil {
		return Settled{}, err
	}
	d, err := decide(t)
	if err != nil {
		return Settled{}, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE wagers SET status = $1, settled_at = $2 WHERE id = $3 AND status = 'pending'`,
		string(d.Status), now, wagerID)
	if err != nil {
		return Settled{}, fmt.Errorf("finalize wager: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return Settled{}, betting.RepeatedTransition("finalize", wagerID, "")
	}

	out := Settled{Ticket: t, Decision: d}
	if d.Credit.IsPositive() {
		typ := ledger.EntryBetWin
		if d.Status == betting.WagerCancelled {
			typ = ledger.EntryBetRefund
		}
		bal, err := ledger.Adjust(ctx, tx, t.Wager.UserID, d.Credit)
		if err != nil {
			return Settled{}, err
		}
		if err := ledger.Record(ctx, tx, ledger.Entry{
			AccountID: t.Wager.UserID, Type: typ, Amount: d.Credit, BalanceAfter: bal, Reference: wagerID,
		}); err != nil {
			return Settled{}, err
		}
		out.NewBalance = decimal.NewNullDecimal(bal)
	}

	if err := tx.Commit(); err != nil {
		return Settled{}, err
	}
	out.Ticket.Wager.Status = d.Status
	out.Ticket.Wager.SettledAt = &now
	return out, nil
}

// CashOut encerra a aposta pelo valor cotado sobre o estado travado e credita o dono
func (p *Postgres) CashOut(ctx context.Context, wagerID string, quote func(betting.Ticket) (betting.CashoutQuote, error)) (betting.CashoutQuote, decimal.Decimal, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return betting.CashoutQuote{}, decimal.Zero, err
	}
	defer tx.Rollback()

	t, err := lockTicket(ctx, tx, wagerID)
	if err != nil {
		return betting.CashoutQuote{}, decimal.Zero, err
	}
	q, err := quote(t)
	if err != nil {
		return betting.CashoutQuote{}, decimal.Zero, err
	}

	detail, err := json.Marshal(q.Snapshot())
	if err != nil {
		return betting.CashoutQuote{}, decimal.Zero, err
	}
	// jsonb via lib/pq precisa ir como texto, []byte seria enviado como bytea
	res, err := tx.ExecContext(ctx, `
		UPDATE wagers
		   SET status = 'cashed_out', cashout_amount = $1, cashout_at = $2, cashout_detail = $3
		 WHERE id = $4 AND status = 'pending'`,
		q.Amount, q.QuotedAt, string(detail), wagerID)
	if err != nil {
		return betting.CashoutQuote{}, decimal.Zero, fmt.Errorf("cash out wager: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return betting.CashoutQuote{}, decimal.Zero, betting.ErrWagerNotPending
	}

	bal, err := ledger.Adjust(ctx, tx, t.Wager.UserID, q.Amount)
	if err != nil {
		return betting.CashoutQuote{}, decimal.Zero, err
	}
	if err := ledger.Record(ctx, tx, ledger.Entry{
		AccountID: t.Wager.UserID, Type: ledger.EntryCashout, Amount: q.Amount, BalanceAfter: bal, Reference: wagerID,
	}); err != nil {
		return betting.CashoutQuote{}, decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return betting.CashoutQuote{}, decimal.Zero, err
	}
	return q, bal, nil
}

// Stats agrega contagem, total apostado e total pago por status
func (p *Postgres) Stats(ctx context.Context) ([]StatusStats, error) {
	var out []StatusStats
	err := p.db.SelectContext(ctx, &out, `
		SELECT status,
		       COUNT(*) AS count,
		       COALESCE(SUM(stake), 0) AS total_staked,
		       COALESCE(SUM(CASE status
		           WHEN 'won' THEN potential_payout
		           WHEN 'cashed_out' THEN cashout_amount
		           WHEN 'cancelled' THEN stake
		           ELSE 0 END), 0) AS total_paid
		  FROM wagers
		 GROUP BY status
		 ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("wager stats: %w", err)
	}
	return out, nil
}
