package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/clubshop/internal/domain/idempotency"
	"github.com/redis/go-redis/v9"
)

const (
	// KeyIdemOrderCreate maps a customer-scoped idempotency key (<email>:<key>)
	// to the order it produced.
	KeyIdemOrderCreate = "idem:order:create:%s"

	pendingMarker = "pending"
)

var TTLIdempotency = 24 * time.Hour

// IdempotencyStore keeps idempotency keys in Redis so replays survive restarts
// and are shared between replicas.
type IdempotencyStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewIdempotencyStore(client redis.Cmdable, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = TTLIdempotency
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

func Key(key string) string { return fmt.Sprintf(KeyIdemOrderCreate, key) }

func (s *IdempotencyStore) Claim(ctx context.Context, key string) (string, error) {
	k := Key(key)
	// One retry covers a key that expired between SETNX and GET.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, k, pendingMarker, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("idempotency claim %s: %w", key, err)
		}
		if ok {
			return "", nil
		}

		val, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("idempotency lookup %s: %w", key, err)
		}
		if val == pendingMarker {
			return "", domain.ErrInFlight
		}
		return val, nil
	}
	return "", domain.ErrInFlight
}

func (s *IdempotencyStore) Complete(ctx context.Context, key, orderID string) error {
	if err := s.client.Set(ctx, Key(key), orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency complete %s: %w", key, err)
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, Key(key)).Err(); err != nil {
		return fmt.Errorf("idempotency release %s: %w", key, err)
	}
	return nil
}
