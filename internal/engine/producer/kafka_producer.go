package producer

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/radieske/coin-battle-poc/pkg/contracts/events"
)

// KafkaPublisher publica as saídas observáveis do engine no tópico de
// auditoria e, opcionalmente, no canal Redis Pub/Sub que alimenta o stream
// WebSocket da API. A chave da mensagem é o round id, preservando a ordem
// por rodada na partição.
type KafkaPublisher struct {
	Writer  *kafka.Writer
	Redis   *redis.Client
	Channel string
}

func NewKafkaPublisher(w *kafka.Writer, rdb *redis.Client, channel string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Redis: rdb, Channel: channel}
}

func (p *KafkaPublisher) PublishRoundEvent(ctx context.Context, env events.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	// broadcast pro WS é melhor esforço; a auditoria é o Kafka
	if p.Redis != nil && p.Channel != "" {
		_ = p.Redis.Publish(ctx, p.Channel, b).Err()
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(env.RoundID, 10)),
		Value: b,
	})
}
