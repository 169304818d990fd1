package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-ledger/internal/betting"
)

type SelectionResponse struct {
	ID        string           `json:"id"`
	SportKey  string           `json:"sportKey"`
	EventID   string           `json:"eventId"`
	Market    string           `json:"market"`
	Outcome   string           `json:"outcome"`
	Line      *decimal.Decimal `json:"line,omitempty"`
	Odds      decimal.Decimal  `json:"odds"`
	Status    string           `json:"status"`
	Result    string           `json:"result,omitempty"`
	EventTime *time.Time       `json:"eventTime,omitempty"`
	SettledAt *time.Time       `json:"settledAt,omitempty"`
}

type WagerResponse struct {
	ID              string                   `json:"id"`
	UserID          string                   `json:"userId"`
	Category        string                   `json:"category"`
	Stake           decimal.Decimal          `json:"stake"`
	CombinedOdds    decimal.Decimal          `json:"combinedOdds"`
	PotentialPayout decimal.Decimal          `json:"potentialPayout"`
	Status          string                   `json:"status"`
	CreatedAt       time.Time                `json:"createdAt"`
	SettledAt       *time.Time               `json:"settledAt,omitempty"`
	CashoutAmount   *decimal.Decimal         `json:"cashoutAmount,omitempty"`
	CashoutAt       *time.Time               `json:"cashoutAt,omitempty"`
	Cashout         *betting.CashoutSnapshot `json:"cashoutDetail,omitempty"`
	Selections      []SelectionResponse      `json:"selections"`
}

// FromTicket monta a resposta da aposta com as seleções em ordem
func FromTicket(t betting.Ticket) WagerResponse {
	w := t.Wager
	out := WagerResponse{
		ID:              w.ID,
		UserID:          w.UserID,
		Category:        string(w.Category),
		Stake:           w.Stake,
		CombinedOdds:    w.CombinedOdds,
		PotentialPayout: w.PotentialPayout,
		Status:          string(w.Status),
		CreatedAt:       w.CreatedAt,
		SettledAt:       w.SettledAt,
		CashoutAt:       w.CashoutAt,
		Cashout:         w.Cashout,
		Selections:      make([]SelectionResponse, len(t.Selections)),
	}
	if w.CashoutAmount.Valid {
		v := w.CashoutAmount.Decimal
		out.CashoutAmount = &v
	}
	for i, s := range t.Selections {
		sr := SelectionResponse{
			ID:        s.ID,
			SportKey:  s.SportKey,
			EventID:   s.EventID,
			Market:    string(s.Market),
			Outcome:   s.Outcome,
			Odds:      s.Odds,
			Status:    string(s.Status),
			Result:    s.Result,
			EventTime: s.EventTime,
			SettledAt: s.SettledAt,
		}
		if s.Line.Valid {
			l := s.Line.Decimal
			sr.Line = &l
		}
		out.Selections[i] = sr
	}
	return out
}

type PlaceWagerResponse struct {
	Success    bool            `json:"success"`
	Wager      WagerResponse   `json:"wager"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

type WagerListResponse struct {
	Success bool            `json:"success"`
	Wagers  []WagerResponse `json:"wagers"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
	Total   int             `json:"total"`
}

type CashoutQuoteResponse struct {
	WagerID           string          `json:"wagerId"`
	PartialOdds       decimal.Decimal `json:"partialOdds"`
	RawAmount         decimal.Decimal `json:"rawAmount"`
	Fee               decimal.Decimal `json:"fee"`
	Amount            decimal.Decimal `json:"amount"`
	WonSelections     []string        `json:"wonSelections"`
	PendingSelections []string        `json:"pendingSelections"`
	QuotedAt          time.Time       `json:"quotedAt"`
}

func FromQuote(q betting.CashoutQuote) CashoutQuoteResponse {
	return CashoutQuoteResponse{
		WagerID:           q.WagerID,
		PartialOdds:       q.PartialOdds,
		RawAmount:         q.RawAmount,
		Fee:               q.Fee,
		Amount:            q.Amount,
		WonSelections:     q.WonSelections,
		PendingSelections: q.PendingSelections,
		QuotedAt:          q.QuotedAt,
	}
}

type CashoutResponse struct {
	Success    bool                 `json:"success"`
	Cashout    CashoutQuoteResponse `json:"cashout"`
	NewBalance decimal.Decimal      `json:"newBalance"`
}

type SettleResponse struct {
	Success    bool             `json:"success"`
	Finalized  bool             `json:"finalized"`
	Wager      WagerResponse    `json:"wager"`
	Credit     *decimal.Decimal `json:"credit,omitempty"`
	NewBalance *decimal.Decimal `json:"newBalance,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
