package events

import "time"

type Odds struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// Evento publicado no tópico "match_updates" pelo provedor de odds
type MatchUpdate struct {
	EventID      string    `json:"event_id"`
	SportKey     string    `json:"sport_key"`
	SportTitle   string    `json:"sport_title,omitempty"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	CommenceTime time.Time `json:"commence_time"`
	Odds         Odds      `json:"odds"` // mercado h2h
	UpdatedAt    time.Time `json:"updated_at"`
	Source       string    `json:"source"`
	Version      int       `json:"version"`
}

// Evento emitido pelo settlement-worker depois de verificar e liquidar uma partida
type MatchSettled struct {
	EventID            string    `json:"event_id"`
	SportKey           string    `json:"sport_key"`
	Outcome            string    `json:"outcome"` // "home" | "draw" | "away"
	HomeScore          int       `json:"home_score"`
	AwayScore          int       `json:"away_score"`
	SelectionsResolved int64     `json:"selections_resolved"`
	Ts                 time.Time `json:"ts"`
}
