package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/betting"
	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type OddsCache interface {
	SetCurrent(ctx context.Context, e events.MatchUpdate) error
}

type MatchStore interface {
	Upsert(ctx context.Context, m betting.Match) error
}

var errInvalidUpdate = errors.New("invalid match update")

// Processor consome match_updates do Kafka, atualiza o cache de odds e a partida no banco.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa.
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Store  MatchStore
	Cache  OddsCache
	Now    func() time.Time

	OnConsumed func()       // métricas (counter++)
	OnCached   func()       // métricas
	OnPersist  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo até o ctx ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		// erros já são logados e contados; a mensagem não é reprocessada
		_ = p.Handle(ctx, m.Value)
	}
}

// Handle processa um update. Falha no cache não impede a gravação da partida.
func (p *Processor) Handle(ctx context.Context, raw []byte) error {
	var ev events.MatchUpdate
	if err := json.Unmarshal(raw, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		return fmt.Errorf("%w: %v", errInvalidUpdate, err)
	}
	if ev.EventID == "" || ev.HomeTeam == "" || ev.AwayTeam == "" || ev.CommenceTime.IsZero() {
		p.Log.Warn("match update missing fields", zap.String("event_id", ev.EventID))
		p.fail("decode")
		return errInvalidUpdate
	}

	if err := p.Cache.SetCurrent(ctx, ev); err != nil {
		p.Log.Warn("redis set failed", zap.String("event_id", ev.EventID), zap.Error(err))
		p.fail("cache")
	} else if p.OnCached != nil {
		p.OnCached()
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	updated := ev.UpdatedAt
	if updated.IsZero() {
		updated = now()
	}
	m := betting.Match{
		ExternalID:   ev.EventID,
		SportKey:     ev.SportKey,
		SportTitle:   ev.SportTitle,
		HomeTeam:     ev.HomeTeam,
		AwayTeam:     ev.AwayTeam,
		CommenceTime: ev.CommenceTime,
		Status:       betting.MatchStatusAt(ev.CommenceTime, now()),
		LastUpdated:  updated,
	}
	if err := p.Store.Upsert(ctx, m); err != nil {
		p.Log.Warn("db upsert failed", zap.String("event_id", ev.EventID), zap.Error(err))
		p.fail("db_upsert")
		return err
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}
	return nil
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
