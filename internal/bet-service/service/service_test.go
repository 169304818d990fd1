package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/radieske/sports-bet-ledger/internal/bet-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/betting"
	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// memRepo imita as garantias do repositório Postgres com um único mutex
type memRepo struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	tickets  map[string]betting.Ticket
	entries  []ledger.Entry
}

func newMemRepo(balances map[string]string) *memRepo {
	m := &memRepo{balances: map[string]decimal.Decimal{}, tickets: map[string]betting.Ticket{}}
	for id, b := range balances {
		m.balances[id] = dec(b)
	}
	return m
}

func clone(t betting.Ticket) betting.Ticket {
	t.Selections = append([]betting.Selection(nil), t.Selections...)
	t.Wager.SelectionIDs = append([]string(nil), t.Wager.SelectionIDs...)
	return t
}

func (m *memRepo) credit(user string, amount decimal.Decimal, typ ledger.EntryType, ref string) decimal.Decimal {
	m.balances[user] = m.balances[user].Add(amount)
	m.entries = append(m.entries, ledger.Entry{AccountID: user, Type: typ, Amount: amount, BalanceAfter: m.balances[user], Reference: ref})
	return m.balances[user]
}

func (m *memRepo) CreateWager(_ context.Context, t betting.Ticket) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[t.Wager.UserID]
	if !ok {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	if bal.LessThan(t.Wager.Stake) {
		return decimal.Zero, ledger.ErrInsufficientFunds
	}
	m.tickets[t.Wager.ID] = clone(t)
	return m.credit(t.Wager.UserID, t.Wager.Stake.Neg(), ledger.EntryBetPlacement, t.Wager.ID), nil
}

func (m *memRepo) GetTicket(_ context.Context, id string) (betting.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return betting.Ticket{}, betting.ErrWagerNotFound
	}
	return clone(t), nil
}

func (m *memRepo) ListTickets(_ context.Context, f repo.Filter) ([]betting.Ticket, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []betting.Ticket
	for _, t := range m.tickets {
		if (f.UserID == "" || t.Wager.UserID == f.UserID) && (f.Status == "" || t.Wager.Status == f.Status) {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Wager.ID < out[j].Wager.ID })
	return out, len(out), nil
}

func (m *memRepo) ListSettleable(_ context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, t := range m.tickets {
		if t.Wager.Status != betting.WagerPending {
			continue
		}
		if _, ready := betting.ResolveWagerStatus(t.Selections); ready {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memRepo) ApplyResults(_ context.Context, wagerID string, results []betting.SelectionResult, validate func(betting.Ticket) error, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[wagerID]
	if !ok {
		return betting.ErrWagerNotFound
	}
	if err := validate(clone(t)); err != nil {
		return err
	}
	t = clone(t)
	for _, r := range results {
		for i := range t.Selections {
			if t.Selections[i].ID == r.SelectionID {
				t.Selections[i].Status = r.Status
				t.Selections[i].Result = r.Result
				t.Selections[i].SettledAt = &now
			}
		}
	}
	m.tickets[wagerID] = t
	return nil
}

func (m *memRepo) Finalize(_ context.Context, wagerID string, decide func(betting.Ticket) (betting.Decision, error), now time.Time) (repo.Settled, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[wagerID]
	if !ok {
		return repo.Settled{}, betting.ErrWagerNotFound
	}
	d, err := decide(clone(t))
	if err != nil {
		return repo.Settled{}, err
	}
	t = clone(t)
	t.Wager.Status = d.Status
	t.Wager.SettledAt = &now
	m.tickets[wagerID] = t

	out := repo.Settled{Ticket: clone(t), Decision: d}
	if d.Credit.IsPositive() {
		typ := ledger.EntryBetWin
		if d.Status == betting.WagerCancelled {
			typ = ledger.EntryBetRefund
		}
		out.NewBalance = decimal.NewNullDecimal(m.credit(t.Wager.UserID, d.Credit, typ, wagerID))
	}
	return out, nil
}

func (m *memRepo) CashOut(_ context.Context, wagerID string, quote func(betting.Ticket) (betting.CashoutQuote, error)) (betting.CashoutQuote, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[wagerID]
	if !ok {
		return betting.CashoutQuote{}, decimal.Zero, betting.ErrWagerNotFound
	}
	q, err := quote(clone(t))
	if err != nil {
		return betting.CashoutQuote{}, decimal.Zero, err
	}
	t = clone(t)
	t.Wager.Status = betting.WagerCashedOut
	t.Wager.CashoutAmount = decimal.NewNullDecimal(q.Amount)
	snap := q.Snapshot()
	t.Wager.Cashout = &snap
	m.tickets[wagerID] = t
	return q, m.credit(t.Wager.UserID, q.Amount, ledger.EntryCashout, wagerID), nil
}

func (m *memRepo) Stats(context.Context) ([]repo.StatusStats, error) { return nil, nil }

func (m *memRepo) balance(user string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[user]
}

func (m *memRepo) entriesOf(typ ledger.EntryType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type memPublisher struct {
	mu       sync.Mutex
	placed   []events.WagerPlaced
	settled  []events.WagerSettled
	cashouts []events.WagerCashedOut
}

func (p *memPublisher) PublishWagerPlaced(_ context.Context, e events.WagerPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, e)
	return nil
}

func (p *memPublisher) PublishWagerSettled(_ context.Context, e events.WagerSettled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled = append(p.settled, e)
	return nil
}

func (p *memPublisher) PublishWagerCashedOut(_ context.Context, e events.WagerCashedOut) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cashouts = append(p.cashouts, e)
	return nil
}

type oddsFunc func(context.Context, betting.SelectionInput) error

func (f oddsFunc) Check(ctx context.Context, sel betting.SelectionInput) error { return f(ctx, sel) }

var now0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(r *memRepo, p *memPublisher, odds OddsChecker) *Service {
	s := New(zap.NewNop(), r, odds, p, betting.DefaultLimits(), betting.DefaultCashoutPolicy())
	s.now = func() time.Time { return now0 }
	return s
}

func sel(event, outcome, odds string) betting.SelectionInput {
	start := now0.Add(48 * time.Hour)
	return betting.SelectionInput{
		SportKey:  "soccer_epl",
		EventID:   event,
		Market:    betting.MarketMatchWinner,
		Outcome:   outcome,
		Odds:      dec(odds),
		EventTime: &start,
	}
}

func multiple(user, stake string) betting.Slip {
	return betting.Slip{
		UserID:     user,
		Category:   betting.CategoryMultiple,
		Stake:      dec(stake),
		Selections: []betting.SelectionInput{sel("e1", "home", "1.5"), sel("e2", "away", "2.0")},
	}
}

func resultsFor(t betting.Ticket, statuses ...betting.SelectionStatus) []betting.SelectionResult {
	out := make([]betting.SelectionResult, len(statuses))
	for i, st := range statuses {
		out[i] = betting.SelectionResult{SelectionID: t.Selections[i].ID, Status: st, Result: "final"}
	}
	return out
}

func TestPlaceWagerDebitsAndPublishes(t *testing.T) {
	r := newMemRepo(map[string]string{"alice": "100"})
	p := &memPublisher{}
	s := newService(r, p, nil)

	placed, err := s.PlaceWager(context.Background(), multiple("alice", "10"))
	require.NoError(t, err)

	assert.True(t, dec("90").Equal(placed.NewBalance))
	assert.True(t, dec("3").Equal(placed.Ticket.Wager.CombinedOdds))
	assert.True(t, dec("30").Equal(placed.Ticket.Wager.PotentialPayout))
	assert.Equal(t, betting.WagerPending, placed.Ticket.Wager.Status)
	require.Len(t, p.placed, 1)
	assert.Equal(t, "90", p.placed[0].NewBalance)
	assert.Len(t, p.placed[0].Selections, 2)
}

func TestPlaceWagerRejectionsLeaveBalance(t *testing.T) {
	tests := []struct {
		name    string
		slip    betting.Slip
		odds    OddsChecker
		wantErr error
	}{
		{
			name:    "insufficient balance",
			slip:    multiple("alice", "200"),
			wantErr: betting.ErrInsufficientBalance,
		},
		{
			name:    "invalid stake",
			slip:    multiple("alice", "0"),
			wantErr: betting.ErrInvalidStake,
		},
		{
			name: "odds changed",
			slip: multiple("alice", "10"),
			odds: oddsFunc(func(_ context.Context, s betting.SelectionInput) error {
				if s.EventID == "e2" {
					return betting.ErrOddsChanged
				}
				return nil
			}),
			wantErr: betting.ErrOddsChanged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newMemRepo(map[string]string{"alice": "100"})
			p := &memPublisher{}
			s := newService(r, p, tt.odds)

			_, err := s.PlaceWager(context.Background(), tt.slip)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, dec("100").Equal(r.balance("alice")))
			assert.Empty(t, p.placed)
		})
	}
}

func TestConcurrentPlacementNeverOverdraws(t *testing.T) {
	r := newMemRepo(map[string]string{"alice": "10"})
	s := newService(r, &memPublisher{}, nil)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		refused  int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.PlaceWager(context.Background(), multiple("alice", "10"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if errors.Is(err, betting.ErrInsufficientBalance) {
				refused++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, refused)
	assert.True(t, r.balance("alice").IsZero())
}

func TestSweepSettlesOnceAndIsIdempotent(t *testing.T) {
	r := newMemRepo(map[string]string{"alice": "100"})
	p := &memPublisher{}
	s := newService(r, p, nil)

	placed, err := s.PlaceWager(context.Background(), multiple("alice", "10"))
	require.NoError(t, err)
	require.NoError(t, r.ApplyResults(context.Background(), placed.Ticket.Wager.ID,
		resultsFor(placed.Ticket, betting.SelectionWon, betting.SelectionWon),
		func(betting.Ticket) error { return nil }, now0))

	rep, err := s.Sweep(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 1, Settled: 1}, rep)
	assert.True(t, dec("120").Equal(r.balance("alice")))

	rep, err = s.Sweep(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, rep)
	assert.True(t, dec("120").Equal(r.balance("alice")))
	assert.Len(t, p.settled, 1)
}

func TestConcurrentSweepsCreditExactlyOnce(t *testing.T) {
	r := newMemRepo(map[string]string{"alice": "100"})
	s := newService(r, &memPublisher{}, nil)

	var ids []string
	for i := 0; i < 5; i++ {
		placed, err := s.PlaceWager(context.Background(), multiple("alice", "10"))
		require.NoError(t, err)
		require.NoError(t, r.ApplyResults(context.Background(), placed.Ticket.Wager.ID,
			resultsFor(placed.Ticket, betting.SelectionWon, betting.SelectionWon),
			func(betting.Ticket) error { return nil }, now0))
		ids = append(ids, placed.Ticket.Wager.ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Sweep(context.Background(), 100)
		}()
	}
	wg.Wait()

	// 100 - 5*10 + 5*30
	assert.True(t, dec("200").Equal(r.balance("alice")), r.balance("alice").String())
	assert.Equal(t, 5, r.entriesOf(ledger.EntryBetWin))
	for _, id := range ids {
		tk, err := r.GetTicket(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, betting.WagerWon, tk.Wager.Status)
	}
}

func TestSettleManual(t *testing.T) {
	tests := []struct {
		name        string
		statuses    []betting.SelectionStatus
		wantStatus  betting.WagerStatus
		wantBalance string
		wantEntry   ledger.EntryType
	}{
		{"all won pays potential payout", []betting.SelectionStatus{betting.SelectionWon, betting.SelectionWon}, betting.WagerWon, "120", ledger.EntryBetWin},
		{"any lost credits nothing", []betting.SelectionStatus{betting.SelectionWon, betting.SelectionLost}, betting.WagerLost, "90", ""},
		{"void refunds stake", []betting.SelectionStatus{betting.SelectionWon, betting.SelectionCancelled}, betting.WagerCancelled, "100", ledger.EntryBetRefund},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newMemRepo(map[string]string{"alice": "100"})
			s := newService(r, &memPublisher{}, nil)
			placed, err := s.PlaceWager(context.Background(), multiple("alice", "10"))
			require.NoError(t, err)

			res, err := s.Settle(context.Background(), placed.Ticket.Wager.ID, resultsFor(placed.Ticket, tt.statuses...))
			require.NoError(t, err)
			assert.True(t, res.Finalized)
			assert.Equal(t, tt.wantStatus, res.Ticket.Wager.Status)
			assert.True(t, dec(tt.wantBalance).Equal(r.balance("alice")))
			if tt.wantEntry != "" {
				assert.Equal(t, 1, r.entriesOf(tt.wantEntry))
			} else {
				assert.False(t, res.NewBalance.Valid)
			}
		})
	}
}

func TestSettlePartialKeepsWagerPending(t *testing.T) {
	r := newMemRepo(map[string]string{"alice": "100"})
	s := newService(r, &memPublisher{}, nil)
	placed, err := s.PlaceWager(context.Background(), multiple("alice", "10"))
	require.NoError(t, err)

	res, err := s.Settle(context.Background(), placed.Ticket.Wager.ID,
		resultsFor(placed.Ticket, betting.SelectionWon))
	require.NoError(t, err)
	assert.False(t, res.Finalized)
	assert.Equal(t, betting.WagerPending, res.Ticket.Wager.Status)
	assert.Equal(t, betting.SelectionWon, res.Ticket.Selections[0].Status)

	// repetir o mesmo resultado é falha de integridade
	_, err = s.Settle(context.Background(), placed.Ticket.Wager.ID,
		resultsFor(placed.Ticket, betting.SelectionWon))
	assert.True(t, betting.IsIntegrity(err))
}

func TestRepeatedFinalizeIsIntegrityFault(t *testing.T) {
	r := newMemRepo(map[string]string{"alice": "100"})
	core, logs := observer.New(zap.ErrorLevel)
	s := New(zap.New(core), r, nil, &memPublisher{}, betting.DefaultLimits(), betting.DefaultCashoutPolicy())
	s.now = func() time.Time { return now0 }

	placed, err := s.PlaceWager(context.Background(), multiple("alice", "10"))
	require.NoError(t, err)
	id := placed.Ticket.Wager.ID
	_, err = s.Settle(context.Background(), id, resultsFor(placed.Ticket, betting.SelectionWon, betting.SelectionWon))
	require.NoError(t, err)

	faults := integrityFaults.WithLabelValues("finalize wager")
	before := testutil.ToFloat64(faults)

	_, err = s.SettleWager(context.Background(), id)
	assert.ErrorIs(t, err, betting.ErrWagerNotPending)
	assert.True(t, betting.IsIntegrity(err))
	assert.Equal(t, before+1, testutil.ToFloat64(faults))
	assert.Equal(t, 1, logs.FilterMessage("integrity fault").Len())
	assert.True(t, dec("120").Equal(r.balance("alice")), "no second credit")

	// liquidação manual de aposta já encerrada também conta
	settleFaults := integrityFaults.WithLabelValues("settle selections")
	before = testutil.ToFloat64(settleFaults)
	_, err = s.Settle(context.Background(), id, resultsFor(placed.Ticket, betting.SelectionLost))
	assert.ErrorIs(t, err, betting.ErrWagerNotPending)
	assert.True(t, betting.IsIntegrity(err))
	assert.Equal(t, before+1, testutil.ToFloat64(settleFaults))
}

func TestSettleUnknownWager(t *testing.T) {
	s := newService(newMemRepo(nil), &memPublisher{}, nil)
	_, err := s.Settle(context.Background(), "not-a-uuid", nil)
	assert.ErrorIs(t, err, betting.ErrWagerNotFound)
}

func TestCashOut(t *testing.T) {
	r := newMemRepo(map[string]string{"alice": "100", "bob": "100"})
	p := &memPublisher{}
	s := newService(r, p, nil)
	placed, err := s.PlaceWager(context.Background(), multiple("alice", "10"))
	require.NoError(t, err)
	id := placed.Ticket.Wager.ID

	_, err = s.Settle(context.Background(), id, resultsFor(placed.Ticket, betting.SelectionWon))
	require.NoError(t, err)

	quote, err := s.Quote(context.Background(), "alice", id)
	require.NoError(t, err)
	assert.True(t, dec("14.25").Equal(quote.Amount))

	_, _, err = s.CashOut(context.Background(), "bob", id)
	assert.ErrorIs(t, err, betting.ErrWagerNotFound)

	q, bal, err := s.CashOut(context.Background(), "alice", id)
	require.NoError(t, err)
	assert.True(t, dec("14.25").Equal(q.Amount))
	assert.True(t, dec("1.5").Equal(q.PartialOdds))
	assert.True(t, dec("104.25").Equal(bal))
	require.Len(t, p.cashouts, 1)

	_, _, err = s.CashOut(context.Background(), "alice", id)
	assert.ErrorIs(t, err, betting.ErrWagerNotPending)

	tk, err := r.GetTicket(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, betting.WagerCashedOut, tk.Wager.Status)
	require.NotNil(t, tk.Wager.Cashout)
	assert.Equal(t, []string{placed.Ticket.Selections[1].ID}, tk.Wager.Cashout.RemainingSelections)

	// aposta encerrada não volta a ser liquidada pelo sweep
	require.NoError(t, r.ApplyResults(context.Background(), id,
		resultsFor(tk, betting.SelectionWon, betting.SelectionWon), func(betting.Ticket) error { return nil }, now0))
	rep, err := s.Sweep(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, rep.Settled)
	assert.True(t, dec("104.25").Equal(r.balance("alice")))
}

func TestCashOutInsideCutoff(t *testing.T) {
	r := newMemRepo(map[string]string{"alice": "100"})
	s := newService(r, &memPublisher{}, nil)

	slip := multiple("alice", "10")
	soon := now0.Add(3 * time.Minute)
	slip.Selections[1].EventTime = &soon
	placed, err := s.PlaceWager(context.Background(), slip)
	require.NoError(t, err)
	_, err = s.Settle(context.Background(), placed.Ticket.Wager.ID, resultsFor(placed.Ticket, betting.SelectionWon))
	require.NoError(t, err)

	_, _, err = s.CashOut(context.Background(), "alice", placed.Ticket.Wager.ID)
	assert.ErrorIs(t, err, betting.ErrCashoutCutoff)
	assert.True(t, dec("90").Equal(r.balance("alice")))
}

func TestWagerVisibility(t *testing.T) {
	r := newMemRepo(map[string]string{"alice": "100"})
	s := newService(r, &memPublisher{}, nil)
	placed, err := s.PlaceWager(context.Background(), multiple("alice", "10"))
	require.NoError(t, err)
	id := placed.Ticket.Wager.ID

	_, err = s.Wager(context.Background(), "alice", false, id)
	assert.NoError(t, err)
	_, err = s.Wager(context.Background(), "bob", false, id)
	assert.ErrorIs(t, err, betting.ErrWagerNotFound)
	_, err = s.Wager(context.Background(), "admin", true, id)
	assert.NoError(t, err)
}
