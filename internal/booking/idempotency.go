package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultIdempotencyTTL bounds how long a repeated confirmation replays the
// earlier reservation instead of booking again.
const DefaultIdempotencyTTL = 24 * time.Hour

// RedisIdempotencyStore keeps finalize keys in redis.
type RedisIdempotencyStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	if client == nil {
		panic("booking: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &RedisIdempotencyStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("restaurant.internal.booking.idempotency"),
	}
}

func (s *RedisIdempotencyStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	ctx, span := s.tracer.Start(ctx, "booking.idempotency_lookup")
	defer span.End()

	id, err := s.redis.Get(ctx, idempotencyKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		span.RecordError(err)
		return "", false, fmt.Errorf("booking: failed to load idempotency key: %w", err)
	}
	return id, true, nil
}

func (s *RedisIdempotencyStore) Remember(ctx context.Context, key, reservationID string) error {
	ctx, span := s.tracer.Start(ctx, "booking.idempotency_remember")
	defer span.End()

	if err := s.redis.Set(ctx, idempotencyKey(key), reservationID, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: failed to persist idempotency key: %w", err)
	}
	return nil
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("booking:finalized:%s", key)
}

// MemoryIdempotencyStore is used when redis is not configured. Entries never
// expire; it is meant for local runs and tests.
type MemoryIdempotencyStore struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{keys: make(map[string]string)}
}

func (s *MemoryIdempotencyStore) Lookup(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.keys[key]
	return id, ok, nil
}

func (s *MemoryIdempotencyStore) Remember(_ context.Context, key, reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = reservationID
	return nil
}

// ChainIdempotency consults each store in order and remembers in all of them.
// A store that errors is skipped; its error is returned only when no later
// store has the key.
type ChainIdempotency []IdempotencyStore

func (c ChainIdempotency) Lookup(ctx context.Context, key string) (string, bool, error) {
	var errs []error
	for _, store := range c {
		if store == nil {
			continue
		}
		id, found, err := store.Lookup(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if found {
			return id, true, nil
		}
	}
	return "", false, errors.Join(errs...)
}

func (c ChainIdempotency) Remember(ctx context.Context, key, reservationID string) error {
	var errs []error
	for _, store := range c {
		if store == nil {
			continue
		}
		if err := store.Remember(ctx, key, reservationID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
