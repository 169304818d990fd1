package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/internal/shared/retry"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

type fakeBroadcaster struct {
	mu       sync.Mutex
	failures int // falhas antes do primeiro sucesso
	calls    int
	sent     [][]byte
}

func (b *fakeBroadcaster) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.calls <= b.failures {
		return errors.New("redis unavailable")
	}
	b.sent = append(b.sent, payload)
	return nil
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

type fakeDLQ struct{ msgs []kafka.Message }

func (d *fakeDLQ) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	d.msgs = append(d.msgs, msgs...)
	return nil
}

func newWorker(out Broadcaster, dlq MessageWriter) *Worker {
	return &Worker{
		Log:     zap.NewNop(),
		Out:     out,
		Channel: "wager_updates_broadcast",
		DLQ:     dlq,
		Retry:   retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2},
	}
}

const settled = `{"wager_id":"w1","user_id":"alice","status":"won","payout":"25.5"}`

func TestBuild(t *testing.T) {
	n, err := Build("wager_settled", []byte(settled))
	require.NoError(t, err)
	assert.Equal(t, "alice", n.UserID)
	assert.Equal(t, "wager_settled", n.Type)
	assert.JSONEq(t, settled, string(n.Payload))

	for _, raw := range []string{`{"wager_id":"w1"}`, `not json`, `{"user_id":""}`} {
		_, err := Build("wager_settled", []byte(raw))
		assert.ErrorIs(t, err, errMalformed, raw)
	}
}

func TestRunForwardsAndCommits(t *testing.T) {
	out := &fakeBroadcaster{failures: 1}
	dlq := &fakeDLQ{}
	w := newWorker(out, dlq)
	r := &fakeReader{msgs: []kafka.Message{
		{Topic: "wager_settled", Offset: 10, Value: []byte(settled)},
		{Topic: "wager_placed", Offset: 11, Value: []byte(`{"wager_id":"w2"}`)},
	}}
	w.Reader = r

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Run(ctx), context.DeadlineExceeded)

	require.Len(t, out.sent, 1, "first publish is retried")
	var n events.WagerNotification
	require.NoError(t, json.Unmarshal(out.sent[0], &n))
	assert.Equal(t, "alice", n.UserID)

	// payload sem dono não é repetido e vai para a DLQ
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, `{"wager_id":"w2"}`, string(dlq.msgs[0].Value))
	assert.Equal(t, 2, out.calls)

	assert.Equal(t, []int64{10, 11}, r.committed)
}

func TestExhaustedRetriesGoToDLQ(t *testing.T) {
	out := &fakeBroadcaster{failures: 100}
	dlq := &fakeDLQ{}
	w := newWorker(out, dlq)

	w.process(context.Background(), kafka.Message{Topic: "wager_cashed_out", Key: []byte("w1"), Value: []byte(settled)})

	assert.Equal(t, 3, out.calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "w1", string(dlq.msgs[0].Key))

	headers := map[string]string{}
	for _, h := range dlq.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "wager_cashed_out", headers["source_topic"])
	assert.Equal(t, "redis unavailable", headers["error"])
}
