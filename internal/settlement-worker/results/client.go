// Package results é o cliente do feed de placares (formato the-odds-api v4).
package results

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radieske/sports-bet-ledger/internal/shared/retry"
)

// Score é o placar de um evento como o feed reporta
type Score struct {
	EventID      string
	SportKey     string
	HomeTeam     string
	AwayTeam     string
	CommenceTime time.Time
	Completed    bool
	HomeScore    *int // nil quando o feed não informa
	AwayScore    *int
}

// StatusError é uma resposta não-2xx do feed
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("results feed: status %d: %s", e.Code, e.Body)
}

// Client busca placares com rate limit e retry limitado.
// 5xx, 429 e falhas de rede são repetidos; outros 4xx não.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	retry   retry.Config
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func WithRetry(cfg retry.Config) Option { return func(c *Client) { c.retry = cfg } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		retry:   retry.Default(),
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Scores busca os placares dos eventos de um esporte numa única chamada
func (c *Client) Scores(ctx context.Context, sport string, eventIDs []string) ([]Score, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	q := url.Values{}
	if c.apiKey != "" {
		q.Set("apiKey", c.apiKey)
	}
	q.Set("daysFrom", "3")
	q.Set("eventIds", strings.Join(eventIDs, ","))
	endpoint := fmt.Sprintf("%s/v4/sports/%s/scores/?%s", c.baseURL, url.PathEscape(sport), q.Encode())

	var body []byte
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		b, err := c.get(ctx, endpoint)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Code != http.StatusTooManyRequests && se.Code < 500 {
				return retry.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}, func(err error, wait time.Duration) {
		c.log.Warn("results feed call failed, retrying",
			zap.String("sport", sport), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		return nil, err
	}
	return ParseScores(body)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return b, nil
}

// ParseScores lê o array do feed. Placar é casado pelo nome do time; valores
// que não são inteiros ficam nil e o evento não é liquidado.
func ParseScores(body []byte) ([]Score, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("results feed: invalid json")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, errors.New("results feed: expected array")
	}

	var out []Score
	root.ForEach(func(_, ev gjson.Result) bool {
		s := Score{
			EventID:   ev.Get("id").String(),
			SportKey:  ev.Get("sport_key").String(),
			HomeTeam:  ev.Get("home_team").String(),
			AwayTeam:  ev.Get("away_team").String(),
			Completed: ev.Get("completed").Bool(),
		}
		if s.EventID == "" {
			return true
		}
		if t, err := time.Parse(time.RFC3339, ev.Get("commence_time").String()); err == nil {
			s.CommenceTime = t
		}
		ev.Get("scores").ForEach(func(_, sc gjson.Result) bool {
			v, err := strconv.Atoi(strings.TrimSpace(sc.Get("score").String()))
			if err != nil {
				return true
			}
			switch sc.Get("name").String() {
			case s.HomeTeam:
				s.HomeScore = &v
			case s.AwayTeam:
				s.AwayScore = &v
			}
			return true
		})
		out = append(out, s)
		return true
	})
	return out, nil
}
