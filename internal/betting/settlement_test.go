package betting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticketWith(statuses ...SelectionStatus) Ticket {
	t := Ticket{Wager: Wager{
		ID:              "w-1",
		UserID:          "alice",
		Stake:           dec("10"),
		CombinedOdds:    dec("3"),
		PotentialPayout: dec("30"),
		Status:          WagerPending,
	}}
	for i, st := range statuses {
		id := string(rune('a' + i))
		t.Selections = append(t.Selections, Selection{ID: id, WagerID: "w-1", Odds: dec("1.5"), Status: st})
		t.Wager.SelectionIDs = append(t.Wager.SelectionIDs, id)
	}
	return t
}

func TestResolveWagerStatus(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []SelectionStatus
		want      WagerStatus
		wantReady bool
	}{
		{name: "all won", statuses: []SelectionStatus{SelectionWon, SelectionWon}, want: WagerWon, wantReady: true},
		{name: "one lost rest won", statuses: []SelectionStatus{SelectionWon, SelectionLost, SelectionWon}, want: WagerLost, wantReady: true},
		{name: "lost beats cancelled", statuses: []SelectionStatus{SelectionCancelled, SelectionLost}, want: WagerLost, wantReady: true},
		{name: "won and cancelled", statuses: []SelectionStatus{SelectionWon, SelectionCancelled}, want: WagerCancelled, wantReady: true},
		{name: "all cancelled", statuses: []SelectionStatus{SelectionCancelled}, want: WagerCancelled, wantReady: true},
		{name: "partially settled stays pending", statuses: []SelectionStatus{SelectionLost, SelectionPending}, wantReady: false},
		{name: "no selections", statuses: nil, wantReady: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ready := ResolveWagerStatus(ticketWith(tt.statuses...).Selections)
			assert.Equal(t, tt.wantReady, ready)
			if tt.wantReady {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		ticket     Ticket
		wantStatus WagerStatus
		wantCredit string
		wantErr    error
	}{
		{name: "won pays potential payout", ticket: ticketWith(SelectionWon, SelectionWon), wantStatus: WagerWon, wantCredit: "30"},
		{name: "lost pays nothing", ticket: ticketWith(SelectionWon, SelectionLost), wantStatus: WagerLost, wantCredit: "0"},
		{name: "cancelled refunds stake", ticket: ticketWith(SelectionCancelled, SelectionWon), wantStatus: WagerCancelled, wantCredit: "10"},
		{name: "pending selection", ticket: ticketWith(SelectionWon, SelectionPending), wantErr: ErrSelectionsPending},
		{
			name: "already terminal",
			ticket: func() Ticket {
				t := ticketWith(SelectionWon, SelectionWon)
				t.Wager.Status = WagerWon
				return t
			}(),
			wantErr: ErrWagerNotPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(tt.ticket)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.wantErr == ErrWagerNotPending, IsIntegrity(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, d.Status)
			assert.True(t, dec(tt.wantCredit).Equal(d.Credit), "credit %s", d.Credit)
		})
	}
}

func TestCheckResults(t *testing.T) {
	tk := ticketWith(SelectionPending, SelectionWon)

	tests := []struct {
		name          string
		results       []SelectionResult
		wantErr       error
		wantIntegrity bool
	}{
		{name: "valid", results: []SelectionResult{{SelectionID: "a", Status: SelectionLost, Result: "0-1"}}},
		{name: "empty", results: nil, wantErr: ErrMissingField},
		{name: "foreign selection", results: []SelectionResult{{SelectionID: "zz", Status: SelectionWon}}, wantErr: ErrSelectionNotFound},
		{name: "pending is not a result", results: []SelectionResult{{SelectionID: "a", Status: SelectionPending}}, wantErr: ErrInvalidResult},
		{name: "listed twice", results: []SelectionResult{{SelectionID: "a", Status: SelectionWon}, {SelectionID: "a", Status: SelectionLost}}, wantErr: ErrInvalidResult},
		{name: "re-settling a settled selection", results: []SelectionResult{{SelectionID: "b", Status: SelectionLost}}, wantIntegrity: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckResults(tk, tt.results)
			switch {
			case tt.wantIntegrity:
				require.Error(t, err)
				assert.True(t, IsIntegrity(err))
				assert.False(t, IsValidation(err))
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveSelection(t *testing.T) {
	score := func(h, a int) Match {
		m := Match{ExternalID: "MATCH_001", HomeScore: &h, AwayScore: &a}
		m.Result, _ = DeriveOutcome(m.HomeScore, m.AwayScore)
		return m
	}
	sel := func(market Market, outcome, line string) Selection {
		s := Selection{ID: "s1", Market: market, Outcome: outcome, Status: SelectionPending}
		if line != "" {
			s.Line.Valid = true
			s.Line.Decimal = dec(line)
		}
		return s
	}

	tests := []struct {
		name   string
		sel    Selection
		match  Match
		want   SelectionStatus
		wantOK bool
	}{
		{name: "home win backed", sel: sel(MarketMatchWinner, "home", ""), match: score(2, 1), want: SelectionWon, wantOK: true},
		{name: "draw backed on home win", sel: sel(MarketMatchWinner, "draw", ""), match: score(2, 1), want: SelectionLost, wantOK: true},
		{name: "draw at nil nil", sel: sel(MarketMatchWinner, "draw", ""), match: score(0, 0), want: SelectionWon, wantOK: true},
		{name: "over 2.5 with three goals", sel: sel(MarketTotals, "over", "2.5"), match: score(2, 1), want: SelectionWon, wantOK: true},
		{name: "under 2.5 with three goals", sel: sel(MarketTotals, "under", "2.5"), match: score(2, 1), want: SelectionLost, wantOK: true},
		{name: "totals push is void", sel: sel(MarketTotals, "over", "3"), match: score(2, 1), want: SelectionCancelled, wantOK: true},
		{name: "btts yes", sel: sel(MarketBothTeamsToScore, "yes", ""), match: score(1, 1), want: SelectionWon, wantOK: true},
		{name: "btts no with clean sheet", sel: sel(MarketBothTeamsToScore, "no", ""), match: score(3, 0), want: SelectionWon, wantOK: true},
		{name: "missing score", sel: sel(MarketMatchWinner, "home", ""), match: Match{ExternalID: "MATCH_001"}, wantOK: false},
		{name: "totals without line", sel: sel(MarketTotals, "over", ""), match: score(2, 1), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := ResolveSelection(tt.sel, tt.match)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, res.Status)
				assert.Equal(t, "s1", res.SelectionID)
				assert.Equal(t, tt.match.Score(), res.Result)
			}
		})
	}
}

func TestResolveSelectionIgnoresSettled(t *testing.T) {
	h, a := 1, 0
	_, ok := ResolveSelection(Selection{ID: "s1", Market: MarketMatchWinner, Outcome: "home", Status: SelectionLost},
		Match{HomeScore: &h, AwayScore: &a, Result: OutcomeHome})
	assert.False(t, ok)
}
