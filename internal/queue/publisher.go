package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"natours/api/internal/service"
)

// PayloadField is the stream entry field carrying the JSON payload.
const PayloadField = "payload"

// MaxStreamLen caps the stream; trimming is approximate.
const MaxStreamLen = 10000

// Publisher hands reset deliveries to the worker through a redis stream.
type Publisher struct {
	client *redis.Client
	stream string
}

func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

func (p *Publisher) NotifyReset(ctx context.Context, d service.ResetDelivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		Values: map[string]any{PayloadField: string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
