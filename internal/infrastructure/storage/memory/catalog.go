package memory

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"sync"

	"skuforge/internal/core/apperror"
	"skuforge/internal/domain/assignment"
)

// Catalog is an in-memory catalog. It rejects identifiers already used by
// another target, the way a unique index would.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]*assignment.Item
	// rejections are returned once by the next apply of the item
	rejections map[string][]assignment.FieldError
}

// NewCatalog creates a catalog holding items.
func NewCatalog(items ...assignment.Item) *Catalog {
	c := &Catalog{
		items:      make(map[string]*assignment.Item),
		rejections: make(map[string][]assignment.FieldError),
	}
	for _, it := range items {
		c.Put(it)
	}
	return c
}

// Put stores a copy of item, replacing any item with the same ID.
func (c *Catalog) Put(item assignment.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = cloneItem(&item)
}

// Reject makes the next apply of itemID fail with errs.
func (c *Catalog) Reject(itemID string, errs ...assignment.FieldError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejections[itemID] = errs
}

// FetchItem implements assignment.CatalogClient.
func (c *Catalog) FetchItem(ctx context.Context, id string) (*assignment.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[id]
	if !ok {
		return nil, apperror.NewNotFound("item", id)
	}
	return cloneItem(it), nil
}

// ApplyIdentifiers implements assignment.CatalogClient. Either all changes
// are applied or none.
func (c *Catalog) ApplyIdentifiers(ctx context.Context, itemID string, changes []assignment.Change) ([]assignment.FieldError, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if errs, ok := c.rejections[itemID]; ok {
		delete(c.rejections, itemID)
		return errs, nil
	}

	it, ok := c.items[itemID]
	if !ok {
		return []assignment.FieldError{{Field: []string{"id"}, Message: "Product does not exist"}}, nil
	}

	index := make(map[string]int, len(it.Targets))
	for i, t := range it.Targets {
		index[t.ID] = i
	}

	var fieldErrs []assignment.FieldError
	for i, ch := range changes {
		if _, ok := index[ch.TargetID]; !ok {
			fieldErrs = append(fieldErrs, assignment.FieldError{
				Field:   []string{"variants", strconv.Itoa(i), "id"},
				Message: "Variant does not exist",
			})
			continue
		}
		if c.skuTaken(ch.SKU, itemID, ch.TargetID) {
			fieldErrs = append(fieldErrs, assignment.FieldError{
				Field:   []string{"variants", strconv.Itoa(i), "sku"},
				Message: "SKU has already been taken",
			})
		}
	}
	if len(fieldErrs) > 0 {
		return fieldErrs, nil
	}

	for _, ch := range changes {
		it.Targets[index[ch.TargetID]].SKU = ch.SKU
	}
	return nil, nil
}

// ListItemsMissingIdentifiers implements assignment.ItemLister.
// Items are returned ordered by ID.
func (c *Catalog) ListItemsMissingIdentifiers(ctx context.Context, limit int) ([]assignment.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []assignment.Item
	for _, id := range ids {
		it := c.items[id]
		if !slices.ContainsFunc(it.Targets, func(t assignment.Target) bool { return !t.HasSKU() }) {
			continue
		}
		out = append(out, *cloneItem(it))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// skuTaken must be called with mu held.
func (c *Catalog) skuTaken(sku, itemID, targetID string) bool {
	for _, it := range c.items {
		for _, t := range it.Targets {
			if t.SKU == sku && (it.ID != itemID || t.ID != targetID) {
				return true
			}
		}
	}
	return false
}

func cloneItem(it *assignment.Item) *assignment.Item {
	cp := *it
	cp.Options = slices.Clone(it.Options)
	cp.Targets = make([]assignment.Target, len(it.Targets))
	for i, t := range it.Targets {
		t.SelectedOptions = slices.Clone(t.SelectedOptions)
		cp.Targets[i] = t
	}
	return &cp
}

var (
	_ assignment.CatalogClient = (*Catalog)(nil)
	_ assignment.ItemLister    = (*Catalog)(nil)
)
