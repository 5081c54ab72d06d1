package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const DataTypeNumber = "Number"

type Attribute struct {
	DataType    string `json:"DataType"`
	StringValue string `json:"StringValue"`
}

type Notification struct {
	Subject    string               `json:"Subject"`
	Message    string               `json:"Message"`
	Attributes map[string]Attribute `json:"MessageAttributes,omitempty"`
	SentAt     time.Time            `json:"Timestamp"`
}

// RedisPublisher entrega notificações num canal pub/sub, um fan-out para
// todos os assinantes conectados.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
	}
}

func (p *RedisPublisher) Channel() string {
	return p.channel
}

func (p *RedisPublisher) Publish(ctx context.Context, n Notification) error {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("erro ao serializar notificação: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("erro ao publicar no canal %s: %w", p.channel, err)
	}

	return nil
}

// Subscribe entrega as notificações do canal até o contexto ser cancelado.
func (p *RedisPublisher) Subscribe(ctx context.Context, handle func(Notification)) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("erro ao assinar canal %s: %w", p.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var n Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				continue
			}
			handle(n)
		}
	}
}
