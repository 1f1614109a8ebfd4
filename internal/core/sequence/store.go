// Package sequence provides domain contracts for per-group SKU counters.
// Implementations live in infrastructure layer.
package sequence

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrStoreRead marks transport or auth failures while reading a counter.
	ErrStoreRead = errors.New("sequence store read failed")

	// ErrStoreWrite marks transport, auth or validation failures while writing a counter.
	ErrStoreWrite = errors.New("sequence store write failed")
)

// Store reads and writes named integer counters in a shared external store.
//
// No conditional write is assumed: callers that need read-modify-write
// atomicity must serialize access themselves or use an Incrementer.
type Store interface {
	// Read returns the counter value. A missing counter is not an error:
	// found is false and the caller decides the starting value.
	Read(ctx context.Context, name string) (value int64, found bool, err error)

	// Write persists value as the counter's exact integer value.
	Write(ctx context.Context, name string, value int64) error
}

// Incrementer is implemented by stores with an atomic increment primitive.
// It is the only way to keep counters unique across processes.
type Incrementer interface {
	// IncrementAndGet adds one to the counter and returns the new value.
	// A missing counter is created as initial+1.
	IncrementAndGet(ctx context.Context, name string, initial int64) (int64, error)
}

// ParseCounter converts a persisted textual counter to an integer.
// Blank, non-numeric and negative values are reported as absent.
func ParseCounter(raw string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
