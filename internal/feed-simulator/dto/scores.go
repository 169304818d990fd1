package dto

import "time"

// ScoreEvent segue o formato do endpoint de placares do provedor (the-odds-api v4)
type ScoreEvent struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime time.Time   `json:"commence_time"`
	Completed    bool        `json:"completed"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Scores       []TeamScore `json:"scores"` // null antes do início
	LastUpdate   *time.Time  `json:"last_update"`
}

// TeamScore traz o placar como string, igual ao provedor
type TeamScore struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}
