package producer

import (
	"context"

	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

// KafkaPublisher publica os eventos do ciclo de vida da aposta, um writer por tópico.
// A chave é o wagerId, então eventos da mesma aposta caem na mesma partição.
type KafkaPublisher struct {
	placed    *kafka.Writer
	settled   *kafka.Writer
	cashedOut *kafka.Writer
}

func NewKafkaPublisher(placed, settled, cashedOut *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{placed: placed, settled: settled, cashedOut: cashedOut}
}

func (p *KafkaPublisher) PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error {
	return kafka.WriteJSON(ctx, p.placed, e.WagerID, e)
}

func (p *KafkaPublisher) PublishWagerSettled(ctx context.Context, e events.WagerSettled) error {
	return kafka.WriteJSON(ctx, p.settled, e.WagerID, e)
}

func (p *KafkaPublisher) PublishWagerCashedOut(ctx context.Context, e events.WagerCashedOut) error {
	return kafka.WriteJSON(ctx, p.cashedOut, e.WagerID, e)
}

// Close fecha os três writers
func (p *KafkaPublisher) Close() error {
	var first error
	for _, w := range []*kafka.Writer{p.placed, p.settled, p.cashedOut} {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
