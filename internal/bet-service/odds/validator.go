package odds

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/betting"
	"github.com/radieske/sports-bet-ledger/internal/shared/cache"
)

// Key é a chave gravada pelo match-processor para a odd de um mercado
func Key(eventID string, market betting.Market, outcome string) string {
	return cache.OddsKey(eventID, string(market), outcome)
}

type Validator struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewValidator(r *redis.Client, log *zap.Logger) *Validator { return &Validator{rdb: r, log: log} }

// CurrentOdd lê a odd do cache; ok=false quando não há valor
func (v *Validator) CurrentOdd(ctx context.Context, eventID string, market betting.Market, outcome string) (decimal.Decimal, bool, error) {
	val, err := v.rdb.Get(ctx, Key(eventID, market, outcome)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("odds cache value %q: %w", val, err)
	}
	return d, true, nil
}

// Check recusa a seleção quando o cache tem uma odd diferente da enviada.
// Sem valor no cache (ou cache fora) a seleção é aceita.
func (v *Validator) Check(ctx context.Context, sel betting.SelectionInput) error {
	cur, ok, err := v.CurrentOdd(ctx, sel.EventID, sel.Market, sel.Outcome)
	if err != nil {
		v.log.Warn("odds cache unavailable, accepting submitted odds",
			zap.String("eventId", sel.EventID), zap.Error(err))
		return nil
	}
	if !ok || cur.Equal(sel.Odds) {
		return nil
	}
	return &betting.ValidationError{
		Code:   betting.ErrOddsChanged.Code,
		Reason: fmt.Sprintf("odds changed for %s %s/%s: current %s", sel.EventID, sel.Market, sel.Outcome, cur),
	}
}
