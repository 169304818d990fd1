package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config define o retry limitado com backoff exponencial usado em chamadas externas
type Config struct {
	MaxRetries     uint64 // tentativas extras além da primeira
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64 // 0..1
}

func Default() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 300 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2,
		Jitter:         0.2,
	}
}

// Permanent marca um erro que não deve ser repetido (ex: 4xx do feed, payload inválido)
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do executa op até dar certo, virar erro permanente, esgotar as tentativas ou o ctx expirar.
// notify (opcional) é chamado antes de cada espera.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error, notify func(err error, wait time.Duration)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialBackoff
	b.MaxInterval = cfg.MaxBackoff
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = cfg.Jitter
	b.MaxElapsedTime = 0 // o limite é o número de tentativas e o ctx

	policy := backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)
	return backoff.RetryNotify(func() error { return op(ctx) }, policy, notify)
}
