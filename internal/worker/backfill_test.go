package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreseq "skuforge/internal/core/sequence"
	"skuforge/internal/core/sku"
	"skuforge/internal/domain/assignment"
	"skuforge/internal/infrastructure/selector"
	"skuforge/internal/infrastructure/sequence"
	"skuforge/internal/infrastructure/storage/memory"
	"skuforge/pkg/logger"
)

func fixture() (*memory.Catalog, *assignment.Service) {
	catalog := memory.NewCatalog(
		assignment.Item{ID: "p1", Vendor: "Nike", ProductType: "T-Shirts",
			Targets: []assignment.Target{{ID: "v1"}, {ID: "v2", SKU: "TSH-NKE-0100"}}},
		assignment.Item{ID: "p2", Vendor: "Acme Tools", ProductType: "Bag",
			Targets: []assignment.Target{{ID: "v3"}}},
		assignment.Item{ID: "p3", Vendor: "Nike", ProductType: "Shoes",
			Targets: []assignment.Target{{ID: "v4", SKU: "SHS-NKE-0001"}}},
	)
	alloc := sequence.NewAllocator(memory.NewSequenceStore(), coreseq.DefaultConfig(), logger.Nop())
	svc := assignment.NewService(assignment.ServiceConfig{
		Catalog:   catalog,
		Allocator: alloc,
		Formatter: sku.NewFormatter(sku.FormatHex),
		Logger:    logger.Nop(),
	})
	return catalog, svc
}

func TestRunOnce_AssignsMissing(t *testing.T) {
	catalog, svc := fixture()
	b := NewBackfill(catalog, svc, nil, Config{BatchSize: 10}, logger.Nop())

	sum, err := b.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Listed: 2, Selected: 2, Updated: 2}, sum)

	p1, _ := catalog.FetchItem(context.Background(), "p1")
	assert.Equal(t, "TSH-NKE-0001", p1.Targets[0].SKU)
	assert.Equal(t, "TSH-NKE-0100", p1.Targets[1].SKU)

	sum, err = b.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
}

func TestRunOnce_Filter(t *testing.T) {
	catalog, svc := fixture()
	filter, err := selector.Compile(`vendor == "Acme Tools"`)
	require.NoError(t, err)

	b := NewBackfill(catalog, svc, nil, Config{Filter: filter}, logger.Nop())
	sum, err := b.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Listed)
	assert.Equal(t, 1, sum.Selected)
	assert.Equal(t, 1, sum.Updated)

	p1, _ := catalog.FetchItem(context.Background(), "p1")
	assert.Empty(t, p1.Targets[0].SKU)
}

func TestRunOnce_CountsFailures(t *testing.T) {
	catalog, svc := fixture()
	catalog.Reject("p2", assignment.FieldError{Field: []string{"variants", "0", "sku"}, Message: "is invalid"})

	b := NewBackfill(catalog, svc, nil, Config{}, logger.Nop())
	sum, err := b.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Updated)
}

type failingLister struct{}

func (failingLister) ListItemsMissingIdentifiers(context.Context, int) ([]assignment.Item, error) {
	return nil, errors.New("db down")
}

func TestRunOnce_ListError(t *testing.T) {
	_, svc := fixture()
	b := NewBackfill(failingLister{}, svc, nil, Config{}, logger.Nop())

	_, err := b.RunOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
}

type countingCleaner struct{ calls chan struct{} }

func (c countingCleaner) CleanupExpired(context.Context) (int64, error) {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return 3, nil
}

func TestRun_StopsOnCancel(t *testing.T) {
	catalog, svc := fixture()
	cleaner := countingCleaner{calls: make(chan struct{}, 1)}
	b := NewBackfill(catalog, svc, cleaner, Config{
		Interval:        10 * time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
	}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	select {
	case <-cleaner.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup never ran")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	p2, _ := catalog.FetchItem(context.Background(), "p2")
	assert.Equal(t, "BAG-ACT-0001", p2.Targets[0].SKU)
}
