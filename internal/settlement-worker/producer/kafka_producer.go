package producer

import (
	"context"

	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

// KafkaPublisher publica match_settled, com o event_id como chave
type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher { return &KafkaPublisher{w: w} }

func (p *KafkaPublisher) PublishMatchSettled(ctx context.Context, e events.MatchSettled) error {
	return kafka.WriteJSON(ctx, p.w, e.EventID, e)
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
