// Package sequence reserves per-group SKU numbers from a shared counter store.
// This is the infrastructure layer - it drives core/sequence.Store implementations.
package sequence

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"skuforge/internal/core/apperror"
	coreseq "skuforge/internal/core/sequence"
	"skuforge/internal/core/sku"
	"skuforge/pkg/logger"
)

var tracer = otel.Tracer("skuforge/sequence")

// Allocator hands out strictly increasing numbers per group.
//
// Reservations for the same group are serialized in-process. Stores without
// an atomic increment are only safe when a single process allocates; use an
// Incrementer store (postgres) when several processes share counters.
type Allocator struct {
	store coreseq.Store
	cfg   coreseq.Config
	log   *logger.Logger

	// locksMu protects locks
	locksMu sync.Mutex
	// locks holds a one-slot channel per store name
	locks map[string]chan struct{}
}

// NewAllocator creates an allocator over store.
func NewAllocator(store coreseq.Store, cfg coreseq.Config, log *logger.Logger) *Allocator {
	if log == nil {
		log = logger.Default()
	}
	return &Allocator{
		store: store,
		cfg:   cfg,
		log:   log.WithComponent("sequence"),
		locks: make(map[string]chan struct{}),
	}
}

// Config returns the allocator configuration.
func (a *Allocator) Config() coreseq.Config {
	return a.cfg
}

// Reserve returns the next number for group. The number is consumed even if
// the caller never uses it.
func (a *Allocator) Reserve(ctx context.Context, group sku.GroupKey) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("sequence allocator is not initialized")
	}

	name := a.cfg.Name(group)
	ctx, span := tracer.Start(ctx, "sequence.Reserve",
		trace.WithAttributes(
			attribute.String("sku.group", group.String()),
			attribute.String("sequence.name", name),
		),
	)
	defer span.End()

	if err := a.acquire(ctx, name); err != nil {
		span.SetStatus(codes.Error, "lock wait cancelled")
		return 0, apperror.NewTimeout("sequence reservation cancelled", err).
			WithDetail("group", group.String())
	}
	defer a.release(name)

	var (
		next int64
		err  error
	)
	if inc, ok := a.store.(coreseq.Incrementer); ok && a.cfg.AtomicIncrement {
		next, err = a.reserveAtomic(ctx, inc, group, name)
	} else {
		next, err = a.reserveReadWrite(ctx, group, name)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int64("sequence.value", next))
	a.log.WithContext(ctx).Debugw("sequence reserved", "group", group.String(), "value", next)
	return next, nil
}

func (a *Allocator) reserveAtomic(ctx context.Context, inc coreseq.Incrementer, group sku.GroupKey, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperror.NewTimeout("sequence reservation cancelled", err).
			WithDetail("group", group.String())
	}
	next, err := inc.IncrementAndGet(ctx, name, a.cfg.Initial)
	if err != nil {
		return 0, apperror.NewAllocationWrite(group.String(), err)
	}
	return next, nil
}

func (a *Allocator) reserveReadWrite(ctx context.Context, group sku.GroupKey, name string) (int64, error) {
	current, found, err := a.store.Read(ctx, name)
	if err != nil {
		return 0, apperror.NewAllocationRead(group.String(), err)
	}
	if !found {
		current = a.cfg.Initial
	}
	next := current + 1

	// A cancelled reservation must not advance the counter.
	if err := ctx.Err(); err != nil {
		return 0, apperror.NewTimeout("sequence reservation cancelled", err).
			WithDetail("group", group.String())
	}

	if err := a.store.Write(ctx, name, next); err != nil {
		return 0, apperror.NewAllocationWrite(group.String(), err)
	}
	return next, nil
}

// Advance moves the counter of group forward to at least value. It never
// moves a counter back. Used when importing identifiers assigned elsewhere.
// Returns the counter value after the call.
func (a *Allocator) Advance(ctx context.Context, group sku.GroupKey, value int64) (int64, error) {
	name := a.cfg.Name(group)
	if err := a.acquire(ctx, name); err != nil {
		return 0, apperror.NewTimeout("sequence advance cancelled", err)
	}
	defer a.release(name)

	current, found, err := a.store.Read(ctx, name)
	if err != nil {
		return 0, apperror.NewAllocationRead(group.String(), err)
	}
	if !found {
		current = a.cfg.Initial
	}
	if value <= current {
		return current, nil
	}
	if err := a.store.Write(ctx, name, value); err != nil {
		return 0, apperror.NewAllocationWrite(group.String(), err)
	}

	a.log.WithContext(ctx).Infow("sequence advanced", "group", group.String(), "from", current, "to", value)
	return value, nil
}

// acquire waits for the group's slot or for ctx to end.
func (a *Allocator) acquire(ctx context.Context, name string) error {
	a.locksMu.Lock()
	ch, ok := a.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		a.locks[name] = ch
	}
	a.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Allocator) release(name string) {
	a.locksMu.Lock()
	ch := a.locks[name]
	a.locksMu.Unlock()
	<-ch
}
