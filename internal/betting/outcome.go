package betting

import (
	"fmt"
	"time"
)

// Outcome é o resultado 1X2 de uma partida
type Outcome string

const (
	OutcomeHome Outcome = "home"
	OutcomeDraw Outcome = "draw"
	OutcomeAway Outcome = "away"
)

// liveWindow: depois disso sem placar final a partida é tratada como encerrada
const liveWindow = 3 * time.Hour

// DeriveOutcome deriva o resultado do placar final. Placar ausente ou negativo
// não é determinável e não deve disparar liquidação.
func DeriveOutcome(home, away *int) (Outcome, bool) {
	if home == nil || away == nil || *home < 0 || *away < 0 {
		return "", false
	}
	switch {
	case *home > *away:
		return OutcomeHome, true
	case *home < *away:
		return OutcomeAway, true
	default:
		return OutcomeDraw, true
	}
}

// VerifyOutcome re-deriva o resultado do placar gravado antes de liquidar a partida.
// Divergência é falha de integridade.
func VerifyOutcome(m Match) error {
	derived, ok := DeriveOutcome(m.HomeScore, m.AwayScore)
	if !ok {
		return &IntegrityError{Op: "verify match", Ref: m.ExternalID, Detail: "stored score is incomplete or invalid"}
	}
	if m.Result != derived {
		return &IntegrityError{
			Op:     "verify match",
			Ref:    m.ExternalID,
			Detail: fmt.Sprintf("stored result %q does not match score %s (expected %q)", m.Result, m.Score(), derived),
		}
	}
	return nil
}

// MatchStatusAt calcula o status da partida pelo horário de início
func MatchStatusAt(commence, now time.Time) MatchStatus {
	switch {
	case commence.After(now):
		return MatchUpcoming
	case now.Sub(commence) < liveWindow:
		return MatchLive
	default:
		return MatchEnded
	}
}
