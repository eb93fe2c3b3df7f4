package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an untouched import is kept.
const DefaultTTL = time.Hour

// DraftStore keeps import flows between requests. Load returns nil, nil
// for unknown or expired ids.
type DraftStore interface {
	Save(ctx context.Context, f *Flow) error
	Load(ctx context.Context, id string) (*Flow, error)
	Delete(ctx context.Context, id string) error
	// Claim takes the exclusive right to commit a flow. It reports false
	// when another caller holds it.
	Claim(ctx context.Context, id string) (bool, error)
	// Release gives a claim back.
	Release(ctx context.Context, id string) error
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore is a process-local DraftStore.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	claims  map[string]bool
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		claims:  make(map[string]bool),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, f *Flow) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding import %s: %w", f.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, id)
		}
	}
	s.entries[f.ID] = memoryEntry{data: data, expires: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Flow, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && s.now().After(e.expires) {
		delete(s.entries, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	var f Flow
	if err := json.Unmarshal(e.data, &f); err != nil {
		return nil, fmt.Errorf("decoding import %s: %w", id, err)
	}
	return &f, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Claim(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims[id] {
		return false, nil
	}
	s.claims[id] = true
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.claims, id)
	s.mu.Unlock()
	return nil
}

// RedisStore keeps flows as JSON values with a TTL so any instance can
// continue an import.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. Keys are prefix + flow id.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "remarket:import:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, f *Flow) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding import %s: %w", f.ID, err)
	}
	if err := s.client.Set(ctx, s.prefix+f.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving import %s: %w", f.ID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Flow, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading import %s: %w", id, err)
	}

	var f Flow
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding import %s: %w", id, err)
	}
	return &f, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("deleting import %s: %w", id, err)
	}
	return nil
}

// claimTTL bounds how long a crashed instance can hold a claim.
const claimTTL = 5 * time.Minute

func (s *RedisStore) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+id+":confirming", 1, claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claiming import %s: %w", id, err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id+":confirming").Err(); err != nil {
		return fmt.Errorf("releasing import %s: %w", id, err)
	}
	return nil
}
