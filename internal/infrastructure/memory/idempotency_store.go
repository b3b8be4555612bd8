package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/clubshop/internal/domain/idempotency"
)

type idemEntry struct {
	orderID   string
	expiresAt time.Time
}

// IdempotencyStore keeps keys in process memory; an empty orderID marks a
// claimed key whose request is still running.
type IdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]idemEntry
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]idemEntry),
	}
}

func (s *IdempotencyStore) Claim(ctx context.Context, key string) (string, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		if e.orderID == "" {
			return "", domain.ErrInFlight
		}
		return e.orderID, nil
	}
	s.entries[key] = idemEntry{expiresAt: now.Add(s.ttl)}
	return "", nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key, orderID string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = idemEntry{orderID: orderID, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
