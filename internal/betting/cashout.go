package betting

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashoutPolicy define taxa e janela de corte do cashout
type CashoutPolicy struct {
	FeeRate decimal.Decimal
	Cutoff  time.Duration
}

func DefaultCashoutPolicy() CashoutPolicy {
	return CashoutPolicy{FeeRate: decimal.RequireFromString("0.05"), Cutoff: 5 * time.Minute}
}

// CashoutQuote é o valor oferecido para encerrar a aposta agora
type CashoutQuote struct {
	WagerID           string
	PartialOdds       decimal.Decimal
	RawAmount         decimal.Decimal
	Fee               decimal.Decimal
	Amount            decimal.Decimal
	WonSelections     []string
	PendingSelections []string
	QuotedAt          time.Time
	feeRate           decimal.Decimal
}

// Snapshot monta o registro de auditoria gravado junto com o cashout
func (q CashoutQuote) Snapshot() CashoutSnapshot {
	return CashoutSnapshot{
		Timestamp:           q.QuotedAt,
		WonSelections:       q.WonSelections,
		RemainingSelections: q.PendingSelections,
		PartialOdds:         q.PartialOdds,
		RawAmount:           q.RawAmount,
		FeeRate:             q.feeRate,
	}
}

// Quote calcula o cashout de uma aposta pendente.
// Exige ao menos uma seleção won, ao menos uma pending, nenhuma lost, e todo evento
// pendente começando depois do corte. Seleção pendente sem horário não bloqueia.
func (p CashoutPolicy) Quote(t Ticket, now time.Time) (CashoutQuote, error) {
	if t.Wager.Status != WagerPending {
		return CashoutQuote{}, ErrWagerNotPending
	}

	var won, pending []string
	lost, tooSoon := false, false
	partial := decimal.NewFromInt(1)
	for _, s := range t.Selections {
		switch s.Status {
		case SelectionLost:
			lost = true
		case SelectionWon:
			won = append(won, s.ID)
			partial = partial.Mul(s.Odds)
		case SelectionPending:
			if s.EventTime != nil && s.EventTime.Sub(now) <= p.Cutoff {
				tooSoon = true
			}
			pending = append(pending, s.ID)
		}
	}
	switch {
	case lost:
		return CashoutQuote{}, ErrCashoutLostSelection
	case len(won) == 0:
		return CashoutQuote{}, ErrCashoutNoWon
	case len(pending) == 0:
		return CashoutQuote{}, ErrCashoutNothingLeft
	case tooSoon:
		return CashoutQuote{}, ErrCashoutCutoff
	}

	raw := t.Wager.Stake.Mul(partial)
	amount := raw.Mul(decimal.NewFromInt(1).Sub(p.FeeRate)).Round(2)

	return CashoutQuote{
		WagerID:           t.Wager.ID,
		PartialOdds:       partial,
		RawAmount:         raw,
		Fee:               raw.Sub(amount),
		Amount:            amount,
		WonSelections:     won,
		PendingSelections: pending,
		QuotedAt:          now,
		feeRate:           p.FeeRate,
	}, nil
}
