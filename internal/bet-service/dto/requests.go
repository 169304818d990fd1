package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-ledger/internal/betting"
)

// PlaceWagerRequest é o boletim enviado pelo cliente. O dono vem do header, nunca do corpo.
type PlaceWagerRequest struct {
	Category   string             `json:"category" validate:"required,oneof=single multiple same_game_multi"`
	Stake      decimal.Decimal    `json:"stake"`
	Selections []SelectionRequest `json:"selections" validate:"required,min=1,dive"`
}

type SelectionRequest struct {
	SportKey  string           `json:"sportKey" validate:"required"`
	EventID   string           `json:"eventId" validate:"required"`
	Market    string           `json:"market" validate:"required,oneof=h2h totals btts"`
	Outcome   string           `json:"outcome" validate:"required,oneof=home draw away over under yes no"`
	Line      *decimal.Decimal `json:"line,omitempty"`
	Odds      decimal.Decimal  `json:"odds"` // odd que o cliente viu
	EventTime *time.Time       `json:"eventTime,omitempty"`
}

// Slip converte o pedido no boletim de domínio
func (r PlaceWagerRequest) Slip(userID string) betting.Slip {
	s := betting.Slip{
		UserID:     userID,
		Category:   betting.Category(r.Category),
		Stake:      r.Stake,
		Selections: make([]betting.SelectionInput, len(r.Selections)),
	}
	for i, sel := range r.Selections {
		in := betting.SelectionInput{
			SportKey:  sel.SportKey,
			EventID:   sel.EventID,
			Market:    betting.Market(sel.Market),
			Outcome:   sel.Outcome,
			Odds:      sel.Odds,
			EventTime: sel.EventTime,
		}
		if sel.Line != nil {
			in.Line = decimal.NewNullDecimal(*sel.Line)
		}
		s.Selections[i] = in
	}
	return s
}

// SettleRequest traz resultados por seleção para liquidação manual
type SettleRequest struct {
	Results []SelectionResultRequest `json:"results" validate:"required,min=1,dive"`
}

type SelectionResultRequest struct {
	SelectionID string `json:"selectionId" validate:"required"`
	Status      string `json:"status" validate:"required,oneof=won lost cancelled"`
	Result      string `json:"result"` // ex.: placar "2-1"
}

func (r SettleRequest) SelectionResults() []betting.SelectionResult {
	out := make([]betting.SelectionResult, len(r.Results))
	for i, res := range r.Results {
		out[i] = betting.SelectionResult{
			SelectionID: res.SelectionID,
			Status:      betting.SelectionStatus(res.Status),
			Result:      res.Result,
		}
	}
	return out
}

// SweepRequest permite limitar o lote do sweep manual
type SweepRequest struct {
	BatchSize int `json:"batchSize" validate:"omitempty,min=1,max=5000"`
}
