package events

import "time"

// Evento emitido quando uma aposta sai de pending por liquidação.
type WagerSettled struct {
	WagerID    string    `json:"wager_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"` // "won" | "lost" | "cancelled"
	Credit     string    `json:"credit"` // "0" quando não há crédito
	NewBalance string    `json:"new_balance,omitempty"`
	Ts         time.Time `json:"ts"`
}

// Evento emitido em cashout aceito.
type WagerCashedOut struct {
	WagerID     string    `json:"wager_id"`
	UserID      string    `json:"user_id"`
	Amount      string    `json:"amount"`
	PartialOdds string    `json:"partial_odds"`
	NewBalance  string    `json:"new_balance"`
	Ts          time.Time `json:"ts"`
}
