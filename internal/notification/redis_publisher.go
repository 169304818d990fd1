package notification

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publica no canal Redis lido pelo hub de websocket do bet-service
type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}
