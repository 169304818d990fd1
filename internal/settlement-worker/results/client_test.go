package results

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-bet-ledger/internal/shared/retry"
)

const feedBody = `[
  {"id":"e1","sport_key":"soccer_epl","commence_time":"2025-03-01T15:00:00Z","completed":true,
   "home_team":"Arsenal","away_team":"Chelsea",
   "scores":[{"name":"Chelsea","score":"1"},{"name":"Arsenal","score":"2"}]},
  {"id":"e2","sport_key":"soccer_epl","commence_time":"2025-03-01T17:30:00Z","completed":false,
   "home_team":"Everton","away_team":"Fulham","scores":null},
  {"id":"e3","sport_key":"soccer_epl","completed":true,
   "home_team":"Leeds","away_team":"Wolves",
   "scores":[{"name":"Leeds","score":"0"},{"name":"Wolves","score":"abandoned"}]}
]`

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2}
}

func newTestClient(url string) *Client {
	return New(url, "secret", WithRetry(fastRetry()), WithRateLimit(1000, 10))
}

func TestParseScores(t *testing.T) {
	scores, err := ParseScores([]byte(feedBody))
	require.NoError(t, err)
	require.Len(t, scores, 3)

	e1 := scores[0]
	assert.True(t, e1.Completed)
	require.NotNil(t, e1.HomeScore)
	require.NotNil(t, e1.AwayScore)
	assert.Equal(t, 2, *e1.HomeScore)
	assert.Equal(t, 1, *e1.AwayScore)
	assert.Equal(t, time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC), e1.CommenceTime)

	assert.False(t, scores[1].Completed)
	assert.Nil(t, scores[1].HomeScore)

	// zero é placar válido; valor não numérico fica ausente
	require.NotNil(t, scores[2].HomeScore)
	assert.Equal(t, 0, *scores[2].HomeScore)
	assert.Nil(t, scores[2].AwayScore)
}

func TestParseScoresRejectsGarbage(t *testing.T) {
	_, err := ParseScores([]byte(`{"message":"quota"}`))
	assert.Error(t, err)
	_, err = ParseScores([]byte(`not json`))
	assert.Error(t, err)
}

func TestScoresRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/sports/soccer_epl/scores/", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "e1,e2,e3", r.URL.Query().Get("eventIds"))
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	scores, err := newTestClient(srv.URL).Scores(context.Background(), "soccer_epl", []string{"e1", "e2", "e3"})
	require.NoError(t, err)
	assert.Len(t, scores, 3)
}

func TestScoresRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	scores, err := newTestClient(srv.URL).Scores(context.Background(), "soccer_epl", []string{"e1"})
	require.NoError(t, err)
	assert.Len(t, scores, 3)
	assert.EqualValues(t, 3, calls.Load())
}

func TestScoresGivesUp(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"client error is not retried", http.StatusUnauthorized, 1},
		{"rate limited is retried", http.StatusTooManyRequests, 3},
		{"server error exhausts retries", http.StatusBadGateway, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Scores(context.Background(), "soccer_epl", []string{"e1"})
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.Code)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestScoresWithoutEventsSkipsCall(t *testing.T) {
	scores, err := New("http://127.0.0.1:1", "").Scores(context.Background(), "soccer_epl", nil)
	assert.NoError(t, err)
	assert.Nil(t, scores)
}
