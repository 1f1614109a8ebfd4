// Package idempotency defines replay protection for mutating requests.
package idempotency

import (
	"context"
	"time"
)

// DefaultTTL is how long a completed response is replayed.
const DefaultTTL = 24 * time.Hour

// StaleAfter is how long a pending key may stay unfinished before another
// request may reclaim it.
const StaleAfter = time.Minute

// Request identifies one attempt of an operation.
type Request struct {
	Key       string
	Scope     string // shop or user the key belongs to
	Operation string // e.g. "POST /api/v1/skus/assign"
	Hash      string // sha256 of the body
}

// Matches reports whether r is the same request as other.
func (r Request) Matches(other Request) bool {
	return r.Scope == other.Scope && r.Operation == other.Operation && r.Hash == other.Hash
}

// Replay is a stored response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store persists idempotency keys.
type Store interface {
	// Acquire claims the key. It returns (nil, nil) when the caller should run
	// the request, a Replay when the response is already known, and an
	// apperror when the key is in flight or belongs to another request.
	Acquire(ctx context.Context, req Request) (*Replay, error)

	// Complete stores the response for the key. Server errors release the key
	// so the client can retry.
	Complete(ctx context.Context, key string, resp Replay) error
}
