// Package ledger remembers which acknowledgments were already sent, so
// running the tool twice on the same message (or on two machines sharing a
// Redis instance) does not produce a duplicate reply. The ledger complements
// the in-body trailer check: it also catches replies that were sent but whose
// trailer never landed back in a followup posting.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL keeps records long enough to cover a typical review cycle.
const DefaultTTL = 90 * 24 * time.Hour

// Ledger records sent acknowledgments per message id and trailer kind.
type Ledger interface {
	// Seen reports whether an acknowledgment of this kind was already
	// recorded for the message.
	Seen(ctx context.Context, messageID, kind string) (bool, error)
	// Record stores that an acknowledgment of this kind was sent.
	Record(ctx context.Context, messageID, kind string) error
}

// RedisLedger stores records in Redis with a TTL.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to the Redis instance named by the URL and verifies the
// connection before returning.
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration) (*RedisLedger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ledger: connecting to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLedger{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

// ackKey returns the record key for a message and trailer kind.
func ackKey(messageID, kind string) string {
	return fmt.Sprintf("ack:%s:%s", messageID, kind)
}

// Seen implements Ledger.
func (l *RedisLedger) Seen(ctx context.Context, messageID, kind string) (bool, error) {
	exists, err := l.client.Exists(ctx, ackKey(messageID, kind)).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: checking record: %w", err)
	}
	return exists > 0, nil
}

// Record implements Ledger.
func (l *RedisLedger) Record(ctx context.Context, messageID, kind string) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := l.client.Set(ctx, ackKey(messageID, kind), stamp, l.ttl).Err(); err != nil {
		return fmt.Errorf("ledger: storing record: %w", err)
	}
	return nil
}

// Noop is a Ledger that remembers nothing, used when no Redis instance is
// configured.
type Noop struct{}

// Seen implements Ledger.
func (Noop) Seen(ctx context.Context, messageID, kind string) (bool, error) {
	return false, nil
}

// Record implements Ledger.
func (Noop) Record(ctx context.Context, messageID, kind string) error {
	return nil
}
