package betting

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ResolveWagerStatus aplica a regra de liquidação sobre as seleções:
// qualquer lost => lost; todas won => won; demais combinações => cancelled.
// ready=false enquanto alguma seleção estiver pendente.
func ResolveWagerStatus(sels []Selection) (status WagerStatus, ready bool) {
	if len(sels) == 0 {
		return "", false
	}

	hasLost, allWon := false, true
	for _, s := range sels {
		switch s.Status {
		case SelectionPending:
			return "", false
		case SelectionLost:
			hasLost = true
		}
		if s.Status != SelectionWon {
			allWon = false
		}
	}

	switch {
	case hasLost:
		return WagerLost, true
	case allWon:
		return WagerWon, true
	default:
		return WagerCancelled, true
	}
}

// Decision é a transição final de uma aposta e o crédito que ela gera
type Decision struct {
	Status WagerStatus
	Credit decimal.Decimal // payout em won, stake devolvido em cancelled, zero em lost
}

// Decide calcula a transição de uma aposta pendente com todas as seleções resolvidas
func Decide(t Ticket) (Decision, error) {
	if t.Wager.Status != WagerPending {
		return Decision{}, RepeatedTransition("finalize", t.Wager.ID, t.Wager.Status)
	}
	status, ready := ResolveWagerStatus(t.Selections)
	if !ready {
		return Decision{}, ErrSelectionsPending
	}

	d := Decision{Status: status, Credit: decimal.Zero}
	switch status {
	case WagerWon:
		d.Credit = t.Wager.PotentialPayout
	case WagerCancelled:
		d.Credit = t.Wager.Stake
	}
	return d, nil
}

// CheckResults valida resultados manuais contra as seleções da aposta.
// Re-liquidar uma seleção já resolvida é falha de integridade.
func CheckResults(t Ticket, results []SelectionResult) error {
	if len(results) == 0 {
		return invalid(ErrMissingField.Code, "at least one selection result is required")
	}
	byID := make(map[string]Selection, len(t.Selections))
	for _, s := range t.Selections {
		byID[s.ID] = s
	}

	seen := make(map[string]bool, len(results))
	for _, r := range results {
		sel, ok := byID[r.SelectionID]
		if !ok {
			return invalid(ErrSelectionNotFound.Code, "selection %s does not belong to wager %s", r.SelectionID, t.Wager.ID)
		}
		if !r.Status.Terminal() {
			return invalid(ErrInvalidResult.Code, "selection %s: status %q is not a final result", r.SelectionID, r.Status)
		}
		if seen[r.SelectionID] {
			return invalid(ErrInvalidResult.Code, "selection %s listed twice", r.SelectionID)
		}
		seen[r.SelectionID] = true
		if sel.Status != SelectionPending {
			return &IntegrityError{
				Op:     "settle selection",
				Ref:    sel.ID,
				Detail: fmt.Sprintf("already %s", sel.Status),
			}
		}
	}
	return nil
}

// ResolveSelection liquida uma seleção a partir do placar final da partida.
// ok=false quando o mercado não pode ser resolvido com os dados disponíveis.
func ResolveSelection(sel Selection, m Match) (SelectionResult, bool) {
	if sel.Status != SelectionPending || m.HomeScore == nil || m.AwayScore == nil {
		return SelectionResult{}, false
	}
	home, away := *m.HomeScore, *m.AwayScore
	res := SelectionResult{SelectionID: sel.ID, Result: m.Score()}

	switch sel.Market {
	case MarketMatchWinner:
		outcome, ok := DeriveOutcome(m.HomeScore, m.AwayScore)
		if !ok {
			return SelectionResult{}, false
		}
		res.Status = wonOrLost(Outcome(sel.Outcome) == outcome)

	case MarketTotals:
		if !sel.Line.Valid {
			return SelectionResult{}, false
		}
		total := decimal.NewFromInt(int64(home + away))
		switch cmp := total.Cmp(sel.Line.Decimal); {
		case cmp == 0:
			// linha inteira exata: aposta anulada (push)
			res.Status = SelectionCancelled
		case sel.Outcome == "over":
			res.Status = wonOrLost(cmp > 0)
		default:
			res.Status = wonOrLost(cmp < 0)
		}

	case MarketBothTeamsToScore:
		both := home > 0 && away > 0
		res.Status = wonOrLost((sel.Outcome == "yes") == both)

	default:
		return SelectionResult{}, false
	}
	return res, true
}

func wonOrLost(won bool) SelectionStatus {
	if won {
		return SelectionWon
	}
	return SelectionLost
}
