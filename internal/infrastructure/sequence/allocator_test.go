package sequence

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuforge/internal/core/apperror"
	coreseq "skuforge/internal/core/sequence"
	"skuforge/internal/core/sku"
	"skuforge/pkg/logger"
)

const group = sku.GroupKey("ACF-ACT")

// fakeStore is a plain read/write counter map without atomic increment.
type fakeStore struct {
	mu     sync.Mutex
	values map[string]int64
	reads  int
	writes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]int64)}
}

func (s *fakeStore) Read(_ context.Context, name string) (int64, bool, error) {
	s.mu.Lock()
	v, ok := s.values[name]
	s.reads++
	s.mu.Unlock()

	// widen the read-then-write window
	runtime.Gosched()
	return v, ok, nil
}

func (s *fakeStore) Write(_ context.Context, name string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	s.writes++
	return nil
}

// incrementingStore adds the atomic primitive on top of fakeStore.
type incrementingStore struct {
	*fakeStore
	increments int
}

func (s *incrementingStore) IncrementAndGet(_ context.Context, name string, initial int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	if !ok {
		v = initial
	}
	v++
	s.values[name] = v
	s.increments++
	return v, nil
}

func newTestAllocator(store coreseq.Store) *Allocator {
	return NewAllocator(store, coreseq.DefaultConfig(), logger.Nop())
}

func TestReserve_Sequential(t *testing.T) {
	store := newFakeStore()
	a := newTestAllocator(store)
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		got, err := a.Reserve(ctx, group)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, int64(5), store.values["seq_acf-act"])
}

func TestReserve_ContinuesExistingCounter(t *testing.T) {
	store := newFakeStore()
	store.values["seq_acf-act"] = 41
	a := newTestAllocator(store)

	got, err := a.Reserve(context.Background(), group)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
}

func TestReserve_ConfiguredInitial(t *testing.T) {
	cfg := coreseq.DefaultConfig()
	cfg.Initial = 100
	a := NewAllocator(newFakeStore(), cfg, logger.Nop())

	got, err := a.Reserve(context.Background(), group)
	require.NoError(t, err)
	assert.Equal(t, int64(101), got)
}

func TestReserve_GroupsAreIndependent(t *testing.T) {
	a := newTestAllocator(newFakeStore())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := a.Reserve(ctx, "ACF-ACT")
		require.NoError(t, err)
	}
	got, err := a.Reserve(ctx, "TSH-NKE")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

// naiveReserve is the unguarded read-then-write sequence.
func naiveReserve(ctx context.Context, store coreseq.Store, name string) (int64, error) {
	v, _, err := store.Read(ctx, name)
	if err != nil {
		return 0, err
	}
	v++
	return v, store.Write(ctx, name, v)
}

func TestReadThenWrite_UnguardedIssuesDuplicates(t *testing.T) {
	store := newFakeStore()

	// Both callers read before either writes.
	var readers sync.WaitGroup
	readers.Add(2)
	barrier := &coreseq.MockStore{
		ReadFunc: func(ctx context.Context, name string) (int64, bool, error) {
			v, ok, err := store.Read(ctx, name)
			readers.Done()
			readers.Wait()
			return v, ok, err
		},
		WriteFunc: store.Write,
	}

	results := make([]int64, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := naiveReserve(context.Background(), barrier, "seq_acf-act")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, results[0], results[1], "unguarded callers collide")
	assert.Equal(t, int64(1), store.values["seq_acf-act"], "one update was lost")
}

func TestReserve_ConcurrentNeverDuplicates(t *testing.T) {
	store := newFakeStore()
	a := newTestAllocator(store)

	const n = 64
	results := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := a.Reserve(context.Background(), group)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, v := range results {
		assert.Equal(t, int64(i+1), v)
	}
	assert.Equal(t, int64(n), store.values["seq_acf-act"])
}

func TestReserve_ReadError(t *testing.T) {
	writes := 0
	store := &coreseq.MockStore{
		ReadFunc: func(context.Context, string) (int64, bool, error) {
			return 0, false, fmt.Errorf("%w: connection reset", coreseq.ErrStoreRead)
		},
		WriteFunc: func(context.Context, string, int64) error {
			writes++
			return nil
		},
	}
	a := newTestAllocator(store)

	_, err := a.Reserve(context.Background(), group)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeAllocationRead))
	assert.ErrorIs(t, err, coreseq.ErrStoreRead)
	assert.Zero(t, writes)
}

func TestReserve_WriteErrorIsNotCached(t *testing.T) {
	var persisted int64 = 7
	failWrite := true
	store := &coreseq.MockStore{
		ReadFunc: func(context.Context, string) (int64, bool, error) {
			return persisted, true, nil
		},
		WriteFunc: func(_ context.Context, _ string, v int64) error {
			if failWrite {
				return fmt.Errorf("%w: 503", coreseq.ErrStoreWrite)
			}
			persisted = v
			return nil
		},
	}
	a := newTestAllocator(store)

	_, err := a.Reserve(context.Background(), group)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeAllocationWrite))

	// Another process moved the counter in the meantime.
	persisted = 20
	failWrite = false
	got, err := a.Reserve(context.Background(), group)
	require.NoError(t, err)
	assert.Equal(t, int64(21), got)
}

func TestReserve_CancelledBeforeWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wrote := false
	store := &coreseq.MockStore{
		ReadFunc: func(context.Context, string) (int64, bool, error) {
			cancel()
			return 3, true, nil
		},
		WriteFunc: func(context.Context, string, int64) error {
			wrote = true
			return nil
		},
	}
	a := newTestAllocator(store)

	_, err := a.Reserve(ctx, group)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeTimeout))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, wrote)
}

func TestReserve_LockWaitHonoursDeadline(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	store := &coreseq.MockStore{
		ReadFunc: func(context.Context, string) (int64, bool, error) {
			close(entered)
			<-unblock
			return 0, false, nil
		},
	}
	a := newTestAllocator(store)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := a.Reserve(context.Background(), group)
		assert.NoError(t, err)
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.Reserve(ctx, group)
	assert.True(t, apperror.IsCode(err, apperror.CodeTimeout))

	close(unblock)
	<-done
}

func TestReserve_UsesIncrementer(t *testing.T) {
	store := &incrementingStore{fakeStore: newFakeStore()}
	a := newTestAllocator(store)

	for want := int64(1); want <= 3; want++ {
		got, err := a.Reserve(context.Background(), group)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 3, store.increments)
	assert.Zero(t, store.reads)
	assert.Zero(t, store.writes)
}

func TestReserve_AtomicIncrementDisabled(t *testing.T) {
	store := &incrementingStore{fakeStore: newFakeStore()}
	cfg := coreseq.DefaultConfig()
	cfg.AtomicIncrement = false
	a := NewAllocator(store, cfg, logger.Nop())

	_, err := a.Reserve(context.Background(), group)
	require.NoError(t, err)
	assert.Zero(t, store.increments)
	assert.Equal(t, 1, store.writes)
}

func TestAdvance_OnlyMovesForward(t *testing.T) {
	store := newFakeStore()
	store.values["seq_acf-act"] = 10
	a := newTestAllocator(store)
	ctx := context.Background()

	v, err := a.Advance(ctx, group, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
	assert.Equal(t, 0, store.writes)

	v, err = a.Advance(ctx, group, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(30), v)

	next, err := a.Reserve(ctx, group)
	require.NoError(t, err)
	assert.Equal(t, int64(31), next)
}
