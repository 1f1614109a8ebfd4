package shopify

import (
	"context"
	"fmt"

	"skuforge/internal/core/apperror"
	"skuforge/internal/domain/assignment"
)

const productFields = `
      id
      title
      vendor
      productType
      options { name position values }
      variants(first: 250) {
        nodes {
          id
          sku
          selectedOptions { name value }
        }
      }`

const productQuery = `query ($id: ID!) {
  product(id: $id) {` + productFields + `
  }
}`

const productsPageQuery = `query ($first: Int!, $after: String) {
  products(first: $first, after: $after, sortKey: ID) {
    pageInfo { hasNextPage endCursor }
    nodes {` + productFields + `
    }
  }
}`

const variantsBulkUpdateMutation = `mutation ($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    productVariants { id }
    userErrors { field message }
  }
}`

const pageSize = 50

type productNode struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Vendor      *string             `json:"vendor"`
	ProductType *string             `json:"productType"`
	Options     []assignment.Option `json:"options"`
	Variants    struct {
		Nodes []struct {
			ID              string                      `json:"id"`
			SKU             *string                     `json:"sku"`
			SelectedOptions []assignment.SelectedOption `json:"selectedOptions"`
		} `json:"nodes"`
	} `json:"variants"`
}

func (p *productNode) toItem() *assignment.Item {
	item := &assignment.Item{
		ID:          p.ID,
		Title:       p.Title,
		Vendor:      deref(p.Vendor),
		ProductType: deref(p.ProductType),
		Options:     p.Options,
		Targets:     make([]assignment.Target, len(p.Variants.Nodes)),
	}
	for i, v := range p.Variants.Nodes {
		item.Targets[i] = assignment.Target{ID: v.ID, SKU: deref(v.SKU), SelectedOptions: v.SelectedOptions}
	}
	return item
}

// Catalog reads products and updates variant SKUs through the Admin API.
type Catalog struct {
	client *Client
}

var (
	_ assignment.CatalogClient = (*Catalog)(nil)
	_ assignment.ItemLister    = (*Catalog)(nil)
)

// NewCatalog creates a new Admin API catalog.
func NewCatalog(client *Client) *Catalog {
	return &Catalog{client: client}
}

// FetchItem implements assignment.CatalogClient.
func (c *Catalog) FetchItem(ctx context.Context, id string) (*assignment.Item, error) {
	var out struct {
		Product *productNode `json:"product"`
	}
	if err := c.client.Do(ctx, productQuery, map[string]any{"id": id}, &out); err != nil {
		return nil, fmt.Errorf("fetch product %s: %w", id, err)
	}
	if out.Product == nil {
		return nil, apperror.NewNotFound("item", id)
	}
	return out.Product.toItem(), nil
}

// ApplyIdentifiers implements assignment.CatalogClient with one
// productVariantsBulkUpdate call. Unlisted variants are not touched.
func (c *Catalog) ApplyIdentifiers(ctx context.Context, itemID string, changes []assignment.Change) ([]assignment.FieldError, error) {
	variants := make([]map[string]any, len(changes))
	for i, ch := range changes {
		variants[i] = map[string]any{
			"id":            ch.TargetID,
			"inventoryItem": map[string]any{"sku": ch.SKU},
		}
	}

	var out struct {
		Payload *struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"productVariantsBulkUpdate"`
	}
	vars := map[string]any{"productId": itemID, "variants": variants}
	if err := c.client.Do(ctx, variantsBulkUpdateMutation, vars, &out); err != nil {
		return nil, err
	}
	if out.Payload == nil {
		return nil, fmt.Errorf("empty productVariantsBulkUpdate payload")
	}

	var fieldErrs []assignment.FieldError
	for _, ue := range out.Payload.UserErrors {
		fieldErrs = append(fieldErrs, assignment.FieldError{Field: ue.Field, Message: ue.Message})
	}
	return fieldErrs, nil
}

// ListItemsMissingIdentifiers implements assignment.ItemLister by paging
// through products and keeping those with a blank variant SKU.
func (c *Catalog) ListItemsMissingIdentifiers(ctx context.Context, limit int) ([]assignment.Item, error) {
	var (
		items []assignment.Item
		after *string
	)
	for {
		var out struct {
			Products struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []productNode `json:"nodes"`
			} `json:"products"`
		}
		vars := map[string]any{"first": pageSize, "after": after}
		if err := c.client.Do(ctx, productsPageQuery, vars, &out); err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}

		for i := range out.Products.Nodes {
			item := out.Products.Nodes[i].toItem()
			if !missingIdentifier(item) {
				continue
			}
			items = append(items, *item)
			if limit > 0 && len(items) >= limit {
				return items, nil
			}
		}

		if !out.Products.PageInfo.HasNextPage {
			return items, nil
		}
		cursor := out.Products.PageInfo.EndCursor
		after = &cursor
	}
}

func missingIdentifier(item *assignment.Item) bool {
	for _, t := range item.Targets {
		if !t.HasSKU() {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
