// Package notification repassa os eventos de aposta do Kafka para o canal Redis
// consumido pelos websockets do bet-service.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/internal/shared/retry"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

var errMalformed = errors.New("malformed wager event")

var (
	processed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_messages_total",
		Help: "eventos de aposta processados por tópico e resultado",
	}, []string{"topic", "result"})
)

// Worker consome os tópicos de aposta e publica {userId, type, payload} no Redis.
// Mensagem que esgota o retry vai crua para a DLQ e o offset é confirmado.
type Worker struct {
	Log     *zap.Logger
	Reader  MessageReader
	Out     Broadcaster
	Channel string
	DLQ     MessageWriter // nil desativa a DLQ
	Retry   retry.Config
}

// Run consome até o ctx ser cancelado
func (w *Worker) Run(ctx context.Context) error {
	for {
		msg, err := w.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka fetch failed", zap.Error(err))
			time.Sleep(500 * time.Millisecond)
			continue
		}

		w.process(ctx, msg)

		if err := w.Reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			w.Log.Warn("kafka commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (w *Worker) process(ctx context.Context, msg kafka.Message) {
	err := retry.Do(ctx, w.Retry, func(ctx context.Context) error {
		return w.Forward(ctx, msg)
	}, func(err error, wait time.Duration) {
		w.Log.Warn("notification publish failed, retrying",
			zap.String("topic", msg.Topic), zap.Duration("wait", wait), zap.Error(err))
	})
	if err == nil {
		processed.WithLabelValues(msg.Topic, "ok").Inc()
		return
	}

	w.Log.Error("notification dropped to dlq",
		zap.String("topic", msg.Topic),
		zap.Int64("offset", msg.Offset),
		zap.Error(err),
	)
	processed.WithLabelValues(msg.Topic, "dlq").Inc()
	if w.DLQ == nil {
		return
	}
	dead := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "source_topic", Value: []byte(msg.Topic)},
			kafka.Header{Key: "error", Value: []byte(err.Error())},
		),
	}
	if err := w.DLQ.WriteMessages(ctx, dead); err != nil {
		w.Log.Error("dlq write failed", zap.String("topic", msg.Topic), zap.Error(err))
	}
}

// Forward monta a notificação e publica no canal. Payload sem user_id é permanente.
func (w *Worker) Forward(ctx context.Context, msg kafka.Message) error {
	n, err := Build(msg.Topic, msg.Value)
	if err != nil {
		return retry.Permanent(err)
	}
	b, err := json.Marshal(n)
	if err != nil {
		return retry.Permanent(err)
	}
	return w.Out.Publish(ctx, w.Channel, b)
}

// Build extrai o dono da aposta do payload e embrulha o evento original
func Build(topic string, value []byte) (events.WagerNotification, error) {
	if !gjson.ValidBytes(value) {
		return events.WagerNotification{}, errMalformed
	}
	user := gjson.GetBytes(value, "user_id").String()
	if user == "" {
		return events.WagerNotification{}, errMalformed
	}
	return events.WagerNotification{UserID: user, Type: topic, Payload: json.RawMessage(value)}, nil
}
