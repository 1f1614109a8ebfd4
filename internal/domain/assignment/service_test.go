package assignment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuforge/internal/core/apperror"
	"skuforge/internal/core/sku"
	"skuforge/pkg/logger"
)

type applyCall struct {
	itemID  string
	changes []Change
}

type fakeCatalog struct {
	mu        sync.Mutex
	items     map[string]*Item
	fieldErrs map[string][]FieldError
	applyErr  error
	calls     []applyCall
}

func newFakeCatalog(items ...*Item) *fakeCatalog {
	c := &fakeCatalog{items: make(map[string]*Item), fieldErrs: make(map[string][]FieldError)}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

func (c *fakeCatalog) FetchItem(_ context.Context, id string) (*Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[id]
	if !ok {
		return nil, apperror.NewNotFound("item", id)
	}
	cp := *it
	cp.Targets = append([]Target(nil), it.Targets...)
	return &cp, nil
}

func (c *fakeCatalog) ApplyIdentifiers(_ context.Context, itemID string, changes []Change) ([]FieldError, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, applyCall{itemID: itemID, changes: changes})
	if c.applyErr != nil {
		return nil, c.applyErr
	}
	if fe := c.fieldErrs[itemID]; len(fe) > 0 {
		return fe, nil
	}
	it := c.items[itemID]
	for _, ch := range changes {
		for i := range it.Targets {
			if it.Targets[i].ID == ch.TargetID {
				it.Targets[i].SKU = ch.SKU
			}
		}
	}
	return nil, nil
}

type fakeAllocator struct {
	mu       sync.Mutex
	counters map[sku.GroupKey]int64
	calls    int
	failOn   int // fail the n-th call (1-based), 0 never
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{counters: make(map[sku.GroupKey]int64)}
}

func (a *fakeAllocator) Reserve(_ context.Context, group sku.GroupKey) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.failOn != 0 && a.calls == a.failOn {
		return 0, apperror.NewAllocationRead(group.String(), errors.New("metafield read failed"))
	}
	a.counters[group]++
	return a.counters[group], nil
}

type fakeJournal struct {
	entries int
	err     error
}

func (j *fakeJournal) Record(context.Context, string, sku.GroupKey, []Change) error {
	j.entries++
	return j.err
}

func newTestService(c CatalogClient, a Allocator, j Journal) *Service {
	return NewService(ServiceConfig{
		Catalog:   c,
		Allocator: a,
		Formatter: sku.NewFormatter(sku.FormatHex),
		Journal:   j,
		Logger:    logger.Nop(),
	})
}

func filterItem() *Item {
	return &Item{
		ID:          "gid://shopify/Product/1",
		Vendor:      "Acme Tools",
		ProductType: "Air Conditioner Filter",
		Options:     []Option{{Name: "Size", Position: 1, Values: []string{"S", "M", "L"}}},
		Targets: []Target{
			{ID: "v1", SelectedOptions: []SelectedOption{{Name: "Size", Value: "S"}}},
			{ID: "v2", SKU: "  ", SelectedOptions: []SelectedOption{{Name: "Size", Value: "M"}}},
			{ID: "v3", SelectedOptions: []SelectedOption{{Name: "Size", Value: "L"}}},
		},
	}
}

func TestAssign_FreshItem(t *testing.T) {
	item := filterItem()
	catalog := newFakeCatalog(item)
	alloc := newFakeAllocator()
	journal := &fakeJournal{}
	svc := newTestService(catalog, alloc, journal)

	res := svc.Assign(context.Background(), item, false)

	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, 3, res.Updated)
	assert.Empty(t, res.Errors)
	assert.Equal(t, sku.GroupKey("ACF-ACT"), res.Group)

	require.Len(t, catalog.calls, 1)
	got := []string{}
	for _, ch := range catalog.calls[0].changes {
		got = append(got, ch.SKU)
	}
	assert.Equal(t, []string{"ACF-ACT-0001", "ACF-ACT-0002", "ACF-ACT-0003"}, got)
	assert.Equal(t, item.Targets[2].SelectedOptions, catalog.calls[0].changes[2].SelectedOptions)
	assert.Equal(t, 1, journal.entries)
}

func TestAssign_Idempotent(t *testing.T) {
	item := filterItem()
	catalog := newFakeCatalog(item)
	alloc := newFakeAllocator()
	svc := newTestService(catalog, alloc, nil)
	ctx := context.Background()

	first := svc.AssignByID(ctx, item.ID, false)
	require.Equal(t, OutcomeUpdated, first.Outcome)

	second := svc.AssignByID(ctx, item.ID, false)
	assert.Equal(t, OutcomeNoop, second.Outcome)
	assert.Zero(t, second.Updated)
	assert.Len(t, catalog.calls, 1, "no catalog write on noop")
	assert.Equal(t, 3, alloc.calls, "no reservations on noop")
}

func TestAssign_KeepsExistingUnlessOverwrite(t *testing.T) {
	item := filterItem()
	item.Targets[0].SKU = "OLD-SKU-1"
	catalog := newFakeCatalog(item)
	alloc := newFakeAllocator()
	svc := newTestService(catalog, alloc, nil)

	res := svc.Assign(context.Background(), item, false)
	assert.Equal(t, 2, res.Updated)
	for _, ch := range catalog.calls[0].changes {
		assert.NotEqual(t, "v1", ch.TargetID)
	}

	res = svc.Assign(context.Background(), item, true)
	assert.Equal(t, 3, res.Updated)
	assert.Equal(t, "OLD-SKU-1", res.Changes[0].PreviousSKU)
	assert.Equal(t, "ACF-ACT-0003", res.Changes[0].SKU)
}

func TestAssign_SkipsWithoutVendorOrType(t *testing.T) {
	for _, item := range []*Item{
		{ID: "a", Vendor: "  ", ProductType: "Shoes", Targets: []Target{{ID: "v"}}},
		{ID: "b", Vendor: "Acme", ProductType: "", Targets: []Target{{ID: "v"}}},
	} {
		catalog := newFakeCatalog(item)
		alloc := newFakeAllocator()
		svc := newTestService(catalog, alloc, nil)

		res := svc.Assign(context.Background(), item, true)
		assert.Equal(t, OutcomeSkipped, res.Outcome)
		assert.Equal(t, SkipMissingCategory, res.Message)
		assert.Zero(t, alloc.calls)
		assert.Empty(t, catalog.calls)
	}
}

func TestAssign_SingleTarget(t *testing.T) {
	item := &Item{ID: "p", Vendor: "Apple", ProductType: "Shoes", Targets: []Target{{ID: "v"}}}
	catalog := newFakeCatalog(item)
	svc := newTestService(catalog, newFakeAllocator(), nil)

	res := svc.Assign(context.Background(), item, false)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, sku.GroupKey("SHS-APL"), res.Group)
	assert.Equal(t, "SHS-APL-0001", catalog.calls[0].changes[0].SKU)
}

func TestAssign_FieldErrors(t *testing.T) {
	item := filterItem()
	catalog := newFakeCatalog(item)
	catalog.fieldErrs[item.ID] = []FieldError{
		{Field: []string{"variants", "0", "sku"}, Message: "is too long"},
		{Message: "product is archived"},
	}
	alloc := newFakeAllocator()
	svc := newTestService(catalog, alloc, nil)

	res := svc.Assign(context.Background(), item, false)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, []string{"variants.0.sku: is too long", ": product is archived"}, res.Errors)

	// Reserved numbers are burned.
	_ = svc.Assign(context.Background(), item, false)
	assert.Equal(t, "ACF-ACT-0004", catalog.calls[1].changes[0].SKU)
}

func TestAssign_ApplyTransportError(t *testing.T) {
	item := filterItem()
	catalog := newFakeCatalog(item)
	catalog.applyErr = errors.New("502 bad gateway")
	svc := newTestService(catalog, newFakeAllocator(), nil)

	res := svc.Assign(context.Background(), item, false)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "502 bad gateway")
}

func TestAssign_AllocatorErrorAbortsRecord(t *testing.T) {
	item := filterItem()
	catalog := newFakeCatalog(item)
	alloc := newFakeAllocator()
	alloc.failOn = 2
	svc := newTestService(catalog, alloc, nil)

	res := svc.Assign(context.Background(), item, false)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Empty(t, catalog.calls)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "metafield read failed")
	assert.Equal(t, 2, alloc.calls, "stops at the failing reservation")
}

func TestAssign_JournalFailureKeepsUpdate(t *testing.T) {
	item := filterItem()
	svc := newTestService(newFakeCatalog(item), newFakeAllocator(), &fakeJournal{err: errors.New("db down")})

	res := svc.Assign(context.Background(), item, false)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
}

func TestAssignByID_NotFound(t *testing.T) {
	svc := newTestService(newFakeCatalog(), newFakeAllocator(), nil)

	res := svc.AssignByID(context.Background(), "missing", false)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, []string{"item not found"}, res.Errors)
}

func TestAssignBatch_IndependentRecords(t *testing.T) {
	good := filterItem()
	bad := &Item{ID: "bad", Vendor: "Nike", ProductType: "T-Shirts", Targets: []Target{{ID: "b1"}}}
	skipped := &Item{ID: "skip", Vendor: "", ProductType: "Shoes", Targets: []Target{{ID: "s1"}}}
	catalog := newFakeCatalog(good, bad, skipped)
	catalog.fieldErrs["bad"] = []FieldError{{Field: []string{"sku"}, Message: "taken"}}
	svc := newTestService(catalog, newFakeAllocator(), nil)

	ids := []string{" bad", good.ID, "", "skip", "missing", good.ID}
	report := svc.AssignBatch(context.Background(), ids, false)

	require.Len(t, report.Records, 4)
	assert.Equal(t, "bad", report.Records[0].ItemID)
	assert.Equal(t, good.ID, report.Records[1].ItemID)
	assert.Equal(t, OutcomeUpdated, report.Records[1].Outcome)
	assert.Equal(t, OutcomeSkipped, report.Records[2].Outcome)
	assert.Equal(t, OutcomeFailed, report.Records[3].Outcome)

	assert.Equal(t, 3, report.Updated)
	assert.False(t, report.OK())
	assert.Equal(t, []string{"bad: sku: taken", "missing: item not found"}, report.Errors)

	err := report.Err()
	require.Error(t, err)
	var recErr *RecordError
	assert.True(t, errors.As(err, &recErr))
}

func TestAssignBatch_SharedGroupNeverDuplicates(t *testing.T) {
	var items []*Item
	var ids []string
	for i := 0; i < 20; i++ {
		it := &Item{
			ID:          fmt.Sprintf("p%d", i),
			Vendor:      "Nike",
			ProductType: "T-Shirts",
			Targets:     []Target{{ID: "a"}, {ID: "b"}},
		}
		items = append(items, it)
		ids = append(ids, it.ID)
	}
	catalog := newFakeCatalog(items...)
	svc := newTestService(catalog, newFakeAllocator(), nil)

	report := svc.AssignBatch(context.Background(), ids, false)
	require.True(t, report.OK())
	assert.Equal(t, 40, report.Updated)
	assert.NoError(t, report.Err())

	seen := map[string]bool{}
	for _, r := range report.Records {
		for _, ch := range r.Changes {
			assert.False(t, seen[ch.SKU], "duplicate %s", ch.SKU)
			seen[ch.SKU] = true
		}
	}
	assert.Len(t, seen, 40)
}

func TestNormalizeIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, NormalizeIDs([]string{" a", "b", "", "a ", "  "}))
	assert.Empty(t, NormalizeIDs(nil))
}
