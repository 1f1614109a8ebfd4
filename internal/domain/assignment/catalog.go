package assignment

import (
	"context"

	"skuforge/internal/core/sku"
)

// CatalogClient reads catalog items and applies identifier changes.
type CatalogClient interface {
	// FetchItem returns the item with its targets and option schema.
	// A missing item is reported with apperror NOT_FOUND.
	FetchItem(ctx context.Context, id string) (*Item, error)

	// ApplyIdentifiers applies all changes of one item in a single call.
	// Targets not listed in changes must be left untouched.
	// Validation problems are returned as field errors with a nil error;
	// a non-nil error means the call itself failed.
	ApplyIdentifiers(ctx context.Context, itemID string, changes []Change) ([]FieldError, error)
}

// ItemLister lists items with at least one target without an identifier.
// Implemented by catalogs that support querying (postgres, memory).
type ItemLister interface {
	ListItemsMissingIdentifiers(ctx context.Context, limit int) ([]Item, error)
}

// Allocator reserves the next number of a group.
type Allocator interface {
	Reserve(ctx context.Context, group sku.GroupKey) (int64, error)
}

// Journal records applied changes.
type Journal interface {
	Record(ctx context.Context, itemID string, group sku.GroupKey, changes []Change) error
}
