// Package betting contém o modelo de apostas e as regras puras de colocação,
// liquidação e cashout. Persistência e transporte ficam fora daqui.
package betting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type SelectionStatus string

const (
	SelectionPending   SelectionStatus = "pending"
	SelectionWon       SelectionStatus = "won"
	SelectionLost      SelectionStatus = "lost"
	SelectionCancelled SelectionStatus = "cancelled"
)

// Terminal indica um status final válido para liquidação
func (s SelectionStatus) Terminal() bool {
	return s == SelectionWon || s == SelectionLost || s == SelectionCancelled
}

type WagerStatus string

const (
	WagerPending   WagerStatus = "pending"
	WagerWon       WagerStatus = "won"
	WagerLost      WagerStatus = "lost"
	WagerCancelled WagerStatus = "cancelled"
	WagerCashedOut WagerStatus = "cashed_out"
)

func (s WagerStatus) Valid() bool {
	switch s {
	case WagerPending, WagerWon, WagerLost, WagerCancelled, WagerCashedOut:
		return true
	}
	return false
}

type Category string

const (
	CategorySingle        Category = "single"
	CategoryMultiple      Category = "multiple"
	CategorySameGameMulti Category = "same_game_multi"
)

type Market string

const (
	MarketMatchWinner      Market = "h2h"    // home | draw | away
	MarketTotals           Market = "totals" // over | under, com linha
	MarketBothTeamsToScore Market = "btts"   // yes | no
)

var marketOutcomes = map[Market][]string{
	MarketMatchWinner:      {string(OutcomeHome), string(OutcomeDraw), string(OutcomeAway)},
	MarketTotals:           {"over", "under"},
	MarketBothTeamsToScore: {"yes", "no"},
}

// ValidOutcome diz se outcome pertence ao mercado
func (m Market) ValidOutcome(outcome string) bool {
	for _, o := range marketOutcomes[m] {
		if o == outcome {
			return true
		}
	}
	return false
}

func (m Market) Valid() bool {
	_, ok := marketOutcomes[m]
	return ok
}

// Selection é um palpite num único evento/mercado
type Selection struct {
	ID        string
	WagerID   string
	SportKey  string
	EventID   string // id externo da partida
	Market    Market
	Outcome   string
	Line      decimal.NullDecimal // só em totals
	Odds      decimal.Decimal
	Status    SelectionStatus
	Result    string
	EventTime *time.Time
	SettledAt *time.Time
}

// Wager é a aposta: stake sobre uma ou mais seleções
type Wager struct {
	ID              string
	UserID          string
	Category        Category
	SelectionIDs    []string // ordem de colocação
	Stake           decimal.Decimal
	CombinedOdds    decimal.Decimal
	PotentialPayout decimal.Decimal
	Status          WagerStatus
	CreatedAt       time.Time
	SettledAt       *time.Time
	CashoutAmount   decimal.NullDecimal
	CashoutAt       *time.Time
	Cashout         *CashoutSnapshot
}

// Ticket agrupa a aposta com as seleções na ordem de SelectionIDs
type Ticket struct {
	Wager      Wager
	Selections []Selection
}

// CashoutSnapshot guarda o estado usado no cálculo do cashout, para auditoria
type CashoutSnapshot struct {
	Timestamp           time.Time       `json:"timestamp"`
	WonSelections       []string        `json:"wonSelections"`
	RemainingSelections []string        `json:"remainingSelections"`
	PartialOdds         decimal.Decimal `json:"partialOdds"`
	RawAmount           decimal.Decimal `json:"rawAmount"`
	FeeRate             decimal.Decimal `json:"feeRate"`
}

// SelectionResult é o resultado aplicado a uma seleção pendente
type SelectionResult struct {
	SelectionID string
	Status      SelectionStatus
	Result      string
}

type MatchStatus string

const (
	MatchUpcoming MatchStatus = "upcoming"
	MatchLive     MatchStatus = "live"
	MatchEnded    MatchStatus = "ended"
)

// Match é o dado da partida vindo do feed; o core só lê
type Match struct {
	ExternalID   string
	SportKey     string
	SportTitle   string
	HomeTeam     string
	AwayTeam     string
	CommenceTime time.Time
	Status       MatchStatus
	HomeScore    *int
	AwayScore    *int
	Result       Outcome // vazio até o placar final ser derivado
	Settled      bool
	LastUpdated  time.Time
}

// Score formata o placar como "2-1"; vazio sem placar completo
func (m Match) Score() string {
	if m.HomeScore == nil || m.AwayScore == nil {
		return ""
	}
	return fmt.Sprintf("%d-%d", *m.HomeScore, *m.AwayScore)
}
