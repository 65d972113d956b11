package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// SummaryField is the stream entry field holding the JSON summary.
const SummaryField = "summary"

// RedisPublisher implements Publisher using a Redis stream
type RedisPublisher struct {
	client          *redis.Client
	stream          string
	streamMaxLength int64
}

// NewRedisPublisher creates a publisher writing to "<streamPrefix>:runs".
func NewRedisPublisher(addr string, db int, streamPrefix string, streamMaxLength int64) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:          client,
		stream:          streamPrefix + ":runs",
		streamMaxLength: streamMaxLength,
	}
}

// Stream returns the stream name entries are added to.
func (p *RedisPublisher) Stream() string {
	return p.stream
}

// Publish adds summary to the runs stream, trimming it approximately to the
// configured length.
func (p *RedisPublisher) Publish(ctx context.Context, summary RunSummary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			SummaryField: string(body),
			"query":      summary.Query,
		},
	}
	if p.streamMaxLength > 0 {
		args.MaxLen = p.streamMaxLength
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
