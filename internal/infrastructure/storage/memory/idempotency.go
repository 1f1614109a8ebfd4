package memory

import (
	"context"
	"net/http"
	"sync"
	"time"

	"skuforge/internal/core/apperror"
	"skuforge/internal/core/idempotency"
)

type idemEntry struct {
	req       idempotency.Request
	done      bool
	replay    idempotency.Replay
	updatedAt time.Time
	expiresAt time.Time
}

// IdempotencyStore keeps idempotency keys in process memory.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*idemEntry
	ttl     time.Duration
	now     func() time.Time
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates an empty store.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &IdempotencyStore{entries: make(map[string]*idemEntry), ttl: ttl, now: time.Now}
}

// Acquire implements idempotency.Store.
func (s *IdempotencyStore) Acquire(_ context.Context, req idempotency.Request) (*idempotency.Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[req.Key]
	if !ok || now.After(e.expiresAt) {
		s.entries[req.Key] = &idemEntry{req: req, updatedAt: now, expiresAt: now.Add(s.ttl)}
		return nil, nil
	}
	if !req.Matches(e.req) {
		return nil, apperror.NewIdempotencyMismatch(req.Key).WithDetail("operation", req.Operation)
	}
	if e.done {
		r := e.replay
		return &r, nil
	}
	if now.Sub(e.updatedAt) <= idempotency.StaleAfter {
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}
	e.updatedAt = now
	return nil, nil
}

// Complete implements idempotency.Store.
func (s *IdempotencyStore) Complete(_ context.Context, key string, resp idempotency.Replay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if resp.StatusCode >= http.StatusInternalServerError {
		delete(s.entries, key)
		return nil
	}
	if e, ok := s.entries[key]; ok {
		e.done = true
		e.replay = resp
		e.updatedAt = s.now()
	}
	return nil
}
