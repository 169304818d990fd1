package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/betting"
	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

var now = time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC)

type fakeCache struct {
	err  error
	sets []events.MatchUpdate
}

func (c *fakeCache) SetCurrent(_ context.Context, e events.MatchUpdate) error {
	if c.err != nil {
		return c.err
	}
	c.sets = append(c.sets, e)
	return nil
}

type fakeStore struct {
	err     error
	matches []betting.Match
}

func (s *fakeStore) Upsert(_ context.Context, m betting.Match) error {
	if s.err != nil {
		return s.err
	}
	s.matches = append(s.matches, m)
	return nil
}

// sliceReader entrega as mensagens e depois bloqueia até o ctx acabar
type sliceReader struct{ msgs []kafka.Message }

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

type stages map[string]int

func newProcessor(c *fakeCache, s *fakeStore, st stages) *Processor {
	return &Processor{
		Log:     zap.NewNop(),
		Store:   s,
		Cache:   c,
		Now:     func() time.Time { return now },
		OnError: func(stage string) { st[stage]++ },
	}
}

const update = `{"event_id":"e1","sport_key":"soccer_epl","home_team":"Arsenal","away_team":"Chelsea",
	"commence_time":"2025-03-01T15:00:00Z","odds":{"home":1.85,"draw":3.4,"away":4.2},
	"updated_at":"2025-03-01T15:59:00Z","source":"sim","version":7}`

func TestHandleCachesAndUpserts(t *testing.T) {
	c, s, st := &fakeCache{}, &fakeStore{}, stages{}
	p := newProcessor(c, s, st)

	require.NoError(t, p.Handle(context.Background(), []byte(update)))
	require.Len(t, c.sets, 1)
	require.Len(t, s.matches, 1)

	m := s.matches[0]
	assert.Equal(t, "e1", m.ExternalID)
	assert.Equal(t, betting.MatchLive, m.Status, "started an hour ago")
	assert.Equal(t, time.Date(2025, 3, 1, 15, 59, 0, 0, time.UTC), m.LastUpdated)
	assert.Nil(t, m.HomeScore)
	assert.Empty(t, st)
}

func TestHandleCacheFailureStillPersists(t *testing.T) {
	c, s, st := &fakeCache{err: errors.New("redis down")}, &fakeStore{}, stages{}
	p := newProcessor(c, s, st)

	require.NoError(t, p.Handle(context.Background(), []byte(update)))
	assert.Len(t, s.matches, 1)
	assert.Equal(t, 1, st["cache"])
}

func TestHandleRejects(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		stage string
	}{
		{"not json", `{`, "decode"},
		{"missing event id", `{"home_team":"A","away_team":"B","commence_time":"2025-03-01T15:00:00Z"}`, "decode"},
		{"missing kickoff", `{"event_id":"e1","home_team":"A","away_team":"B"}`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, s, st := &fakeCache{}, &fakeStore{}, stages{}
			err := newProcessor(c, s, st).Handle(context.Background(), []byte(tt.raw))
			assert.ErrorIs(t, err, errInvalidUpdate)
			assert.Empty(t, s.matches)
			assert.Equal(t, 1, st[tt.stage])
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	c, s, st := &fakeCache{}, &fakeStore{}, stages{}
	p := newProcessor(c, s, st)
	var consumed int
	p.OnConsumed = func() { consumed++ }
	p.Reader = &sliceReader{msgs: []kafka.Message{{Value: []byte(update)}, {Value: []byte(`{`)}}}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := p.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, consumed)
	assert.Len(t, s.matches, 1)
	assert.Equal(t, 1, st["decode"])
}
