package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-ledger/internal/betting"
	sharedcache "github.com/radieske/sports-bet-ledger/internal/shared/cache"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

// RedisCache grava as odds h2h correntes lidas pelo bet-service na colocação
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// Entries converte o update em chave => odd. Odds <= 1 (ex: sem empate) ficam de fora.
func Entries(e events.MatchUpdate) map[string]string {
	out := map[string]string{}
	for outcome, v := range map[betting.Outcome]float64{
		betting.OutcomeHome: e.Odds.Home,
		betting.OutcomeDraw: e.Odds.Draw,
		betting.OutcomeAway: e.Odds.Away,
	} {
		d := decimal.NewFromFloat(v)
		if d.LessThanOrEqual(decimal.NewFromInt(1)) {
			continue
		}
		out[sharedcache.OddsKey(e.EventID, string(betting.MarketMatchWinner), string(outcome))] = d.String()
	}
	return out
}

// SetCurrent grava as odds do evento num único pipeline, com TTL
func (r *RedisCache) SetCurrent(ctx context.Context, e events.MatchUpdate) error {
	entries := Entries(e)
	if len(entries) == 0 {
		return nil
	}
	pipe := r.Client.Pipeline()
	for k, v := range entries {
		pipe.Set(ctx, k, v, r.TTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}
