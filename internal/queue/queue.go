package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/natanchik/nodejs-aws-shop-react-backend/pkg/logger"
	"github.com/natanchik/nodejs-aws-shop-react-backend/pkg/metrics"
	"go.uber.org/zap"
)

const defaultMaxReceiveCount = 3

// Message é a unidade entregue ao consumer. ReceiveCount conta as entregas
// anteriores que terminaram em Requeue.
type Message struct {
	ID           string    `json:"id"`
	Body         string    `json:"body"`
	ReceiveCount int       `json:"receive_count"`
	SentAt       time.Time `json:"sent_at"`

	raw string
}

// RedisQueue é uma fila confiável sobre listas Redis: o Receive move as
// mensagens para uma lista de processamento, de onde saem por Ack ou Requeue.
type RedisQueue struct {
	client          *redis.Client
	name            string
	consumer        string
	maxReceiveCount int
}

func NewRedisQueue(client *redis.Client, name string, maxReceiveCount int) *RedisQueue {
	if maxReceiveCount <= 0 {
		maxReceiveCount = defaultMaxReceiveCount
	}
	return &RedisQueue{
		client:          client,
		name:            name,
		maxReceiveCount: maxReceiveCount,
	}
}

// WithConsumer dá ao consumidor a sua própria lista de processamento, para que
// o RecoverInFlight de um processo não devolva lotes de outro.
func (q *RedisQueue) WithConsumer(id string) *RedisQueue {
	clone := *q
	clone.consumer = id
	return &clone
}

func (q *RedisQueue) Name() string           { return q.name }
func (q *RedisQueue) DeadLetterList() string { return q.name + ":dead" }

func (q *RedisQueue) ProcessingList() string {
	if q.consumer == "" {
		return q.name + ":processing"
	}
	return q.name + ":processing:" + q.consumer
}

func (q *RedisQueue) Publish(ctx context.Context, body string) error {
	msg := Message{
		ID:     uuid.New().String(),
		Body:   body,
		SentAt: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("erro ao serializar mensagem: %w", err)
	}

	if err := q.client.LPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("erro ao publicar na fila %s: %w", q.name, err)
	}

	return nil
}

// Receive bloqueia até wait pela primeira mensagem e completa o lote sem
// bloquear. Lote vazio e erro nil significam que a fila estava vazia.
func (q *RedisQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	if max <= 0 {
		max = 1
	}

	first, err := q.client.BRPopLPush(ctx, q.name, q.ProcessingList(), wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao receber da fila %s: %w", q.name, err)
	}

	messages := make([]Message, 0, max)
	messages = append(messages, decodeMessage(first))

	for len(messages) < max {
		raw, err := q.client.RPopLPush(ctx, q.name, q.ProcessingList()).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			// o que já foi movido fica na lista de processamento até o Requeue
			return messages, fmt.Errorf("erro ao receber da fila %s: %w", q.name, err)
		}
		messages = append(messages, decodeMessage(raw))
	}

	return messages, nil
}

func decodeMessage(raw string) Message {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil || msg.ID == "" {
		// payload fora do envelope segue como corpo opaco
		msg = Message{Body: raw}
	}
	msg.raw = raw
	return msg
}

func (q *RedisQueue) Ack(ctx context.Context, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, msg := range messages {
			pipe.LRem(ctx, q.ProcessingList(), 1, msg.raw)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("erro ao confirmar mensagens: %w", err)
	}

	return nil
}

// Requeue devolve as mensagens para o fim da fila. As que atingiram
// maxReceiveCount vão para a dead letter list.
func (q *RedisQueue) Requeue(ctx context.Context, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, msg := range messages {
			next := msg
			next.ReceiveCount++
			if next.ID == "" {
				next.ID = uuid.New().String()
			}

			data, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("erro ao serializar mensagem: %w", err)
			}

			destination := q.name
			if next.ReceiveCount >= q.maxReceiveCount {
				destination = q.DeadLetterList()
				logger.WithContext(ctx).Warn("mensagem movida para dead letter",
					zap.String("queue", q.name),
					zap.String("message_id", next.ID),
					zap.Int("receive_count", next.ReceiveCount))
			}
			metrics.MessagesRequeued.WithLabelValues(destination).Inc()

			pipe.LRem(ctx, q.ProcessingList(), 1, msg.raw)
			pipe.LPush(ctx, destination, data)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("erro ao devolver mensagens: %w", err)
	}

	return nil
}

// Release devolve as mensagens para a fila sem contar a entrega, para lotes
// interrompidos pelo encerramento do processo.
func (q *RedisQueue) Release(ctx context.Context, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, msg := range messages {
			pipe.LRem(ctx, q.ProcessingList(), 1, msg.raw)
			pipe.RPush(ctx, q.name, msg.raw)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("erro ao liberar mensagens: %w", err)
	}

	return nil
}

// RecoverInFlight devolve para a fila o que ficou na lista de processamento
// (worker que morreu no meio de um lote).
func (q *RedisQueue) RecoverInFlight(ctx context.Context) (int, error) {
	recovered := 0
	for {
		err := q.client.RPopLPush(ctx, q.ProcessingList(), q.name).Err()
		if errors.Is(err, redis.Nil) {
			return recovered, nil
		}
		if err != nil {
			return recovered, fmt.Errorf("erro ao recuperar mensagens: %w", err)
		}
		recovered++
	}
}

func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}

func (q *RedisQueue) DeadLetterDepth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.DeadLetterList()).Result()
}

func (q *RedisQueue) HealthCheck(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
