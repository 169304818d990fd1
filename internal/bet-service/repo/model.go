package repo

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-ledger/internal/betting"
)

const wagerColumns = `id, user_id, category, stake, combined_odds, potential_payout, status,
	created_at, settled_at, cashout_amount, cashout_at, cashout_detail`

const selectionColumns = `id, wager_id, position, sport_key, event_id, market, outcome, line, odds,
	status, result, event_time, settled_at`

// wagerRow é a linha de wagers como persistida no Postgres
type wagerRow struct {
	ID              string              `db:"id"`
	UserID          string              `db:"user_id"`
	Category        string              `db:"category"`
	Stake           decimal.Decimal     `db:"stake"`
	CombinedOdds    decimal.Decimal     `db:"combined_odds"`
	PotentialPayout decimal.Decimal     `db:"potential_payout"`
	Status          string              `db:"status"`
	CreatedAt       time.Time           `db:"created_at"`
	SettledAt       sql.NullTime        `db:"settled_at"`
	CashoutAmount   decimal.NullDecimal `db:"cashout_amount"`
	CashoutAt       sql.NullTime        `db:"cashout_at"`
	CashoutDetail   []byte              `db:"cashout_detail"`
}

// selectionRow é a linha de selections
type selectionRow struct {
	ID        string              `db:"id"`
	WagerID   string              `db:"wager_id"`
	Position  int                 `db:"position"`
	SportKey  string              `db:"sport_key"`
	EventID   string              `db:"event_id"`
	Market    string              `db:"market"`
	Outcome   string              `db:"outcome"`
	Line      decimal.NullDecimal `db:"line"`
	Odds      decimal.Decimal     `db:"odds"`
	Status    string              `db:"status"`
	Result    sql.NullString      `db:"result"`
	EventTime sql.NullTime        `db:"event_time"`
	SettledAt sql.NullTime        `db:"settled_at"`
}

func (r wagerRow) toWager() (betting.Wager, error) {
	w := betting.Wager{
		ID:              r.ID,
		UserID:          r.UserID,
		Category:        betting.Category(r.Category),
		Stake:           r.Stake,
		CombinedOdds:    r.CombinedOdds,
		PotentialPayout: r.PotentialPayout,
		Status:          betting.WagerStatus(r.Status),
		CreatedAt:       r.CreatedAt,
		SettledAt:       timePtr(r.SettledAt),
		CashoutAmount:   r.CashoutAmount,
		CashoutAt:       timePtr(r.CashoutAt),
	}
	if len(r.CashoutDetail) > 0 {
		var snap betting.CashoutSnapshot
		if err := json.Unmarshal(r.CashoutDetail, &snap); err != nil {
			return betting.Wager{}, err
		}
		w.Cashout = &snap
	}
	return w, nil
}

func (r selectionRow) toSelection() betting.Selection {
	return betting.Selection{
		ID:        r.ID,
		WagerID:   r.WagerID,
		SportKey:  r.SportKey,
		EventID:   r.EventID,
		Market:    betting.Market(r.Market),
		Outcome:   r.Outcome,
		Line:      r.Line,
		Odds:      r.Odds,
		Status:    betting.SelectionStatus(r.Status),
		Result:    r.Result.String,
		EventTime: timePtr(r.EventTime),
		SettledAt: timePtr(r.SettledAt),
	}
}

// assemble junta aposta e seleções (já ordenadas por position)
func assemble(w wagerRow, sels []selectionRow) (betting.Ticket, error) {
	wager, err := w.toWager()
	if err != nil {
		return betting.Ticket{}, err
	}
	t := betting.Ticket{Wager: wager, Selections: make([]betting.Selection, 0, len(sels))}
	for _, s := range sels {
		t.Selections = append(t.Selections, s.toSelection())
		t.Wager.SelectionIDs = append(t.Wager.SelectionIDs, s.ID)
	}
	return t, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// StatusStats agrega apostas por status
type StatusStats struct {
	Status      string          `db:"status" json:"status"`
	Count       int64           `db:"count" json:"count"`
	TotalStaked decimal.Decimal `db:"total_staked" json:"totalStaked"`
	TotalPaid   decimal.Decimal `db:"total_paid" json:"totalPaid"`
}

// Filter filtra a listagem de apostas
type Filter struct {
	UserID string
	Status betting.WagerStatus
	Limit  int
	Offset int
}

// Settled é o resultado de uma finalização aplicada
type Settled struct {
	Ticket     betting.Ticket
	Decision   betting.Decision
	NewBalance decimal.NullDecimal // só quando houve crédito
}
