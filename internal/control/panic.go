package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConfirmStore holds the pending panic confirmation. A panic request arms the
// store for a short window; the destructive action runs only if /confirm_panic
// arrives before the window closes. Confirming consumes the pending request
// either way.
type ConfirmStore interface {
	Arm(ctx context.Context, ttl time.Duration) error
	Confirm(ctx context.Context) (bool, error)
}

const panicKey = "control:panic_pending"

// RedisConfirmStore keeps the pending confirmation in Redis so the window
// survives a process restart.
type RedisConfirmStore struct {
	client *redis.Client
}

// NewRedisConfirmStore creates a Redis-backed confirmation store
func NewRedisConfirmStore(client *redis.Client) *RedisConfirmStore {
	return &RedisConfirmStore{client: client}
}

func (s *RedisConfirmStore) Arm(ctx context.Context, ttl time.Duration) error {
	if err := s.client.Set(ctx, panicKey, time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("failed to arm panic confirmation: %w", err)
	}
	return nil
}

func (s *RedisConfirmStore) Confirm(ctx context.Context) (bool, error) {
	// GETDEL consumes the pending request atomically. Redis handles expiry.
	err := s.client.GetDel(ctx, panicKey).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read panic confirmation: %w", err)
	}
	return true, nil
}

// MemoryConfirmStore is the in-process fallback used when Redis is disabled
type MemoryConfirmStore struct {
	mu       sync.Mutex
	deadline time.Time
	now      func() time.Time
}

// NewMemoryConfirmStore creates an in-memory confirmation store
func NewMemoryConfirmStore() *MemoryConfirmStore {
	return &MemoryConfirmStore{now: time.Now}
}

func (s *MemoryConfirmStore) Arm(ctx context.Context, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline = s.now().Add(ttl)
	return nil
}

func (s *MemoryConfirmStore) Confirm(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deadline.IsZero() {
		return false, nil
	}
	pending := !s.now().After(s.deadline)
	s.deadline = time.Time{}
	return pending, nil
}
