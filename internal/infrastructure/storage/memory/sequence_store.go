// Package memory provides in-process store and catalog implementations for
// local runs, the CLI and tests.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	coreseq "skuforge/internal/core/sequence"
)

// SequenceStore keeps counters in a map.
type SequenceStore struct {
	mu       sync.Mutex
	values   map[string]int64
	latency  time.Duration
	atomic   bool
	readErr  error
	writeErr error
}

// SequenceOption configures a SequenceStore.
type SequenceOption func(*SequenceStore)

// WithLatency delays every read and write, widening race windows in tests.
func WithLatency(d time.Duration) SequenceOption {
	return func(s *SequenceStore) { s.latency = d }
}

// WithoutIncrement hides the atomic increment, forcing read-then-write callers.
func WithoutIncrement() SequenceOption {
	return func(s *SequenceStore) { s.atomic = false }
}

// WithFailures makes reads or writes fail with the given errors.
func WithFailures(readErr, writeErr error) SequenceOption {
	return func(s *SequenceStore) {
		s.readErr = readErr
		s.writeErr = writeErr
	}
}

// NewSequenceStore creates an empty store.
func NewSequenceStore(opts ...SequenceOption) *SequenceStore {
	s := &SequenceStore{values: make(map[string]int64), atomic: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read implements sequence.Store.
func (s *SequenceStore) Read(ctx context.Context, name string) (int64, bool, error) {
	if err := s.wait(ctx); err != nil {
		return 0, false, err
	}
	if s.readErr != nil {
		return 0, false, wrap(coreseq.ErrStoreRead, s.readErr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	return v, ok, nil
}

// Write implements sequence.Store.
func (s *SequenceStore) Write(ctx context.Context, name string, value int64) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	if s.writeErr != nil {
		return wrap(coreseq.ErrStoreWrite, s.writeErr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

// IncrementAndGet implements sequence.Incrementer.
func (s *SequenceStore) IncrementAndGet(ctx context.Context, name string, initial int64) (int64, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	if s.writeErr != nil {
		return 0, wrap(coreseq.ErrStoreWrite, s.writeErr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	if !ok {
		v = initial
	}
	v++
	s.values[name] = v
	return v, nil
}

// Snapshot returns a copy of all counters.
func (s *SequenceStore) Snapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.values)
}

func (s *SequenceStore) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsStore returns the store as a plain sequence.Store. Without atomic
// increment it hides IncrementAndGet from type assertions.
func (s *SequenceStore) AsStore() coreseq.Store {
	if s.atomic {
		return s
	}
	return plainStore{s}
}

type plainStore struct {
	s *SequenceStore
}

func (p plainStore) Read(ctx context.Context, name string) (int64, bool, error) {
	return p.s.Read(ctx, name)
}

func (p plainStore) Write(ctx context.Context, name string, value int64) error {
	return p.s.Write(ctx, name, value)
}

var (
	_ coreseq.Store       = (*SequenceStore)(nil)
	_ coreseq.Incrementer = (*SequenceStore)(nil)
)
