package events

import "time"

// Evento publicado pelo bet-service após o commit de uma nova aposta.
type WagerPlaced struct {
	WagerID         string             `json:"wager_id"`
	UserID          string             `json:"user_id"`
	Category        string             `json:"category"`
	Stake           string             `json:"stake"`
	CombinedOdds    string             `json:"combined_odds"`
	PotentialPayout string             `json:"potential_payout"`
	Selections      []SelectionSummary `json:"selections"`
	NewBalance      string             `json:"new_balance"`
	Ts              time.Time          `json:"ts"`
}

type SelectionSummary struct {
	SelectionID string `json:"selection_id"`
	EventID     string `json:"event_id"`
	Market      string `json:"market"`
	Outcome     string `json:"outcome"`
	Odds        string `json:"odds"`
}
