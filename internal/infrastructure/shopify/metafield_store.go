package shopify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	coreseq "skuforge/internal/core/sequence"
)

const metafieldType = "number_integer"

const shopMetafieldQuery = `query ($ns: String!, $key: String!) {
  shop {
    id
    metafield(namespace: $ns, key: $key) { id value type }
  }
}`

const shopIDQuery = `query { shop { id } }`

const metafieldsSetMutation = `mutation ($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    userErrors { field message }
  }
}`

// MetafieldStore keeps counters in shop metafields of one namespace.
// The Admin API has no atomic increment, so it implements sequence.Store only.
type MetafieldStore struct {
	client    *Client
	namespace string

	mu     sync.Mutex
	shopID string
}

var _ coreseq.Store = (*MetafieldStore)(nil)

// NewMetafieldStore creates a counter store for namespace (e.g. "skus").
func NewMetafieldStore(client *Client, namespace string) *MetafieldStore {
	return &MetafieldStore{client: client, namespace: namespace}
}

// Read implements sequence.Store.
func (s *MetafieldStore) Read(ctx context.Context, name string) (int64, bool, error) {
	var out struct {
		Shop *struct {
			ID        string `json:"id"`
			Metafield *struct {
				ID    string  `json:"id"`
				Value *string `json:"value"`
			} `json:"metafield"`
		} `json:"shop"`
	}
	vars := map[string]any{"ns": s.namespace, "key": name}
	if err := s.client.Do(ctx, shopMetafieldQuery, vars, &out); err != nil {
		return 0, false, fmt.Errorf("%w: %w", coreseq.ErrStoreRead, err)
	}
	if out.Shop == nil || out.Shop.ID == "" {
		return 0, false, fmt.Errorf("%w: shop id missing in metafield read response", coreseq.ErrStoreRead)
	}
	s.rememberShop(out.Shop.ID)

	if out.Shop.Metafield == nil || out.Shop.Metafield.Value == nil {
		return 0, false, nil
	}
	v, ok := coreseq.ParseCounter(*out.Shop.Metafield.Value)
	return v, ok, nil
}

// Write implements sequence.Store.
func (s *MetafieldStore) Write(ctx context.Context, name string, value int64) error {
	shopID, err := s.ownerID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", coreseq.ErrStoreWrite, err)
	}

	var out struct {
		MetafieldsSet *struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	vars := map[string]any{
		"metafields": []map[string]any{{
			"ownerId":   shopID,
			"namespace": s.namespace,
			"key":       name,
			"type":      metafieldType,
			"value":     strconv.FormatInt(value, 10),
		}},
	}
	if err := s.client.Do(ctx, metafieldsSetMutation, vars, &out); err != nil {
		return fmt.Errorf("%w: %w", coreseq.ErrStoreWrite, err)
	}
	if out.MetafieldsSet == nil {
		return fmt.Errorf("%w: empty metafieldsSet payload", coreseq.ErrStoreWrite)
	}
	if ue := out.MetafieldsSet.UserErrors; len(ue) > 0 {
		return fmt.Errorf("%w: %s", coreseq.ErrStoreWrite, joinUserErrors(ue))
	}
	return nil
}

func (s *MetafieldStore) rememberShop(id string) {
	s.mu.Lock()
	s.shopID = id
	s.mu.Unlock()
}

// ownerID returns the shop GID, querying it once.
func (s *MetafieldStore) ownerID(ctx context.Context) (string, error) {
	s.mu.Lock()
	id := s.shopID
	s.mu.Unlock()
	if id != "" {
		return id, nil
	}

	var out struct {
		Shop *struct {
			ID string `json:"id"`
		} `json:"shop"`
	}
	if err := s.client.Do(ctx, shopIDQuery, nil, &out); err != nil {
		return "", err
	}
	if out.Shop == nil || out.Shop.ID == "" {
		return "", errors.New("shop id missing")
	}
	s.rememberShop(out.Shop.ID)
	return out.Shop.ID, nil
}
