package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultCallTTL bounds how long per-call state outlives silence.
const DefaultCallTTL = 2 * time.Hour

// CallStore keeps the dialogue state and tool usage of live calls.
type CallStore interface {
	LoadState(ctx context.Context, callID string) (json.RawMessage, error)
	SaveState(ctx context.Context, callID string, state json.RawMessage) error
	RecordTool(ctx context.Context, callID, tool string) error
	Tools(ctx context.Context, callID string) ([]string, error)
	Clear(ctx context.Context, callID string) error
}

// RedisCallStore implements CallStore with one string key for the state and
// one set for the tools used.
type RedisCallStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

var _ CallStore = (*RedisCallStore)(nil)

func NewRedisCallStore(client *redis.Client, ttl time.Duration) *RedisCallStore {
	if client == nil {
		panic("voice: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultCallTTL
	}
	return &RedisCallStore{redis: client, ttl: ttl, tracer: otel.Tracer("restaurant.internal.voice.calls")}
}

func stateKey(callID string) string { return fmt.Sprintf("voice:call:%s:state", callID) }
func toolsKey(callID string) string { return fmt.Sprintf("voice:call:%s:tools", callID) }

// LoadState returns nil when the call has no dialogue in progress.
func (s *RedisCallStore) LoadState(ctx context.Context, callID string) (json.RawMessage, error) {
	ctx, span := s.tracer.Start(ctx, "voice.load_state")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(callID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("voice: load call state: %w", err)
	}
	return json.RawMessage(data), nil
}

// SaveState stores state; a nil state removes it.
func (s *RedisCallStore) SaveState(ctx context.Context, callID string, state json.RawMessage) error {
	ctx, span := s.tracer.Start(ctx, "voice.save_state")
	defer span.End()

	var err error
	if len(state) == 0 {
		err = s.redis.Del(ctx, stateKey(callID)).Err()
	} else {
		err = s.redis.Set(ctx, stateKey(callID), []byte(state), s.ttl).Err()
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("voice: save call state: %w", err)
	}
	return nil
}

func (s *RedisCallStore) RecordTool(ctx context.Context, callID, tool string) error {
	key := toolsKey(callID)
	pipe := s.redis.TxPipeline()
	pipe.SAdd(ctx, key, tool)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("voice: record tool: %w", err)
	}
	return nil
}

// Tools lists the distinct tools used on the call, sorted.
func (s *RedisCallStore) Tools(ctx context.Context, callID string) ([]string, error) {
	tools, err := s.redis.SMembers(ctx, toolsKey(callID)).Result()
	if err != nil {
		return nil, fmt.Errorf("voice: list tools: %w", err)
	}
	sort.Strings(tools)
	return tools, nil
}

func (s *RedisCallStore) Clear(ctx context.Context, callID string) error {
	if err := s.redis.Del(ctx, stateKey(callID), toolsKey(callID)).Err(); err != nil {
		return fmt.Errorf("voice: clear call: %w", err)
	}
	return nil
}

// MemoryCallStore keeps call state in process, for local runs without redis.
type MemoryCallStore struct {
	mu     sync.Mutex
	states map[string]json.RawMessage
	tools  map[string]map[string]struct{}
}

var _ CallStore = (*MemoryCallStore)(nil)

func NewMemoryCallStore() *MemoryCallStore {
	return &MemoryCallStore{
		states: make(map[string]json.RawMessage),
		tools:  make(map[string]map[string]struct{}),
	}
}

func (s *MemoryCallStore) LoadState(_ context.Context, callID string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[callID], nil
}

func (s *MemoryCallStore) SaveState(_ context.Context, callID string, state json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(state) == 0 {
		delete(s.states, callID)
		return nil
	}
	s.states[callID] = append(json.RawMessage(nil), state...)
	return nil
}

func (s *MemoryCallStore) RecordTool(_ context.Context, callID, tool string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.tools[callID]
	if !ok {
		set = make(map[string]struct{})
		s.tools[callID] = set
	}
	set[tool] = struct{}{}
	return nil
}

func (s *MemoryCallStore) Tools(_ context.Context, callID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tools[callID]))
	for tool := range s.tools[callID] {
		out = append(out, tool)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryCallStore) Clear(_ context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, callID)
	delete(s.tools, callID)
	return nil
}
