// Package catalog_repo provides the PostgreSQL catalog of products and variants.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"skuforge/internal/core/apperror"
	"skuforge/internal/domain/assignment"
	"skuforge/internal/infrastructure/storage/postgres"
)

const (
	productsTable = "catalog_products"
	variantsTable = "catalog_variants"

	pgUniqueViolation = "23505"
)

var (
	productCols = []string{"id", "title", "vendor", "product_type", "options"}
	variantCols = []string{"id", "product_id", "position", "sku", "selected_options"}

	// errRejected rolls back an apply that produced field errors.
	errRejected = errors.New("identifier update rejected")
)

type productRow struct {
	ID          string              `db:"id"`
	Title       string              `db:"title"`
	Vendor      string              `db:"vendor"`
	ProductType string              `db:"product_type"`
	Options     []assignment.Option `db:"options"`
}

type variantRow struct {
	ID              string                      `db:"id"`
	ProductID       string                      `db:"product_id"`
	Position        int                         `db:"position"`
	SKU             string                      `db:"sku"`
	SelectedOptions []assignment.SelectedOption `db:"selected_options"`
}

// ProductRepo is the catalog backed by catalog_products and catalog_variants.
// Variant SKUs are unique through a partial unique index.
type ProductRepo struct {
	tx postgres.TxRunner
}

var (
	_ assignment.CatalogClient = (*ProductRepo)(nil)
	_ assignment.ItemLister    = (*ProductRepo)(nil)
)

// NewProductRepo creates a new product repository.
func NewProductRepo(tx postgres.TxRunner) *ProductRepo {
	return &ProductRepo{tx: tx}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *ProductRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// FetchItem implements assignment.CatalogClient.
func (r *ProductRepo) FetchItem(ctx context.Context, id string) (*assignment.Item, error) {
	sql, args, err := r.Builder().
		Select(productCols...).
		From(productsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build product query: %w", err)
	}

	querier := r.tx.GetQuerier(ctx)
	var p productRow
	if err := pgxscan.Get(ctx, querier, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("item", id)
		}
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}

	variants, err := r.variants(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	item := toItem(p, variants[id])
	return &item, nil
}

// ListItemsMissingIdentifiers implements assignment.ItemLister.
func (r *ProductRepo) ListItemsMissingIdentifiers(ctx context.Context, limit int) ([]assignment.Item, error) {
	sql, args, err := r.missingQuery(limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build missing query: %w", err)
	}

	var products []productRow
	if err := pgxscan.Select(ctx, r.tx.GetQuerier(ctx), &products, sql, args...); err != nil {
		return nil, fmt.Errorf("select products missing sku: %w", err)
	}
	if len(products) == 0 {
		return nil, nil
	}

	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	variants, err := r.variants(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]assignment.Item, len(products))
	for i, p := range products {
		items[i] = toItem(p, variants[p.ID])
	}
	return items, nil
}

func (r *ProductRepo) missingQuery(limit int) squirrel.SelectBuilder {
	q := r.Builder().
		Select(productCols...).
		From(productsTable + " p").
		Where("EXISTS (SELECT 1 FROM " + variantsTable + " v WHERE v.product_id = p.id AND btrim(v.sku) = '')").
		OrderBy("p.id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}

func (r *ProductRepo) variants(ctx context.Context, productIDs []string) (map[string][]variantRow, error) {
	sql, args, err := r.Builder().
		Select(variantCols...).
		From(variantsTable).
		Where(squirrel.Eq{"product_id": productIDs}).
		OrderBy("product_id", "position", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build variants query: %w", err)
	}

	var rows []variantRow
	if err := pgxscan.Select(ctx, r.tx.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select variants: %w", err)
	}

	out := make(map[string][]variantRow, len(productIDs))
	for _, v := range rows {
		out[v.ProductID] = append(out[v.ProductID], v)
	}
	return out, nil
}

// ApplyIdentifiers implements assignment.CatalogClient. All changes are
// written in one transaction; the first rejected change rolls back the rest.
func (r *ProductRepo) ApplyIdentifiers(ctx context.Context, itemID string, changes []assignment.Change) ([]assignment.FieldError, error) {
	var fieldErrs []assignment.FieldError

	err := r.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		querier := r.tx.GetQuerier(ctx)
		for i, ch := range changes {
			sql, args, err := r.updateSKUQuery(itemID, ch).ToSql()
			if err != nil {
				return fmt.Errorf("build sku update: %w", err)
			}

			tag, err := querier.Exec(ctx, sql, args...)
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
					fieldErrs = append(fieldErrs, assignment.FieldError{
						Field:   []string{"variants", strconv.Itoa(i), "sku"},
						Message: "SKU has already been taken",
					})
					return errRejected
				}
				return fmt.Errorf("update variant %s: %w", ch.TargetID, err)
			}
			if tag.RowsAffected() == 0 {
				fieldErrs = append(fieldErrs, assignment.FieldError{
					Field:   []string{"variants", strconv.Itoa(i), "id"},
					Message: "Variant does not exist",
				})
				return errRejected
			}
		}
		return nil
	})
	if errors.Is(err, errRejected) {
		return fieldErrs, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *ProductRepo) updateSKUQuery(itemID string, ch assignment.Change) squirrel.UpdateBuilder {
	return r.Builder().
		Update(variantsTable).
		Set("sku", ch.SKU).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": ch.TargetID, "product_id": itemID})
}

// SaveItem inserts or replaces a product and its variants.
func (r *ProductRepo) SaveItem(ctx context.Context, item assignment.Item) error {
	return r.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		querier := r.tx.GetQuerier(ctx)

		sql, args, err := r.upsertProductQuery(item).ToSql()
		if err != nil {
			return fmt.Errorf("build product upsert: %w", err)
		}
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("upsert product %s: %w", item.ID, err)
		}

		sql, args, err = r.Builder().Delete(variantsTable).Where(squirrel.Eq{"product_id": item.ID}).ToSql()
		if err != nil {
			return fmt.Errorf("build variants delete: %w", err)
		}
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("delete variants of %s: %w", item.ID, err)
		}

		if len(item.Targets) == 0 {
			return nil
		}
		insert := r.Builder().Insert(variantsTable).Columns(variantCols...)
		for pos, t := range item.Targets {
			insert = insert.Values(t.ID, item.ID, pos, t.SKU, nonNil(t.SelectedOptions))
		}
		sql, args, err = insert.ToSql()
		if err != nil {
			return fmt.Errorf("build variants insert: %w", err)
		}
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert variants of %s: %w", item.ID, err)
		}
		return nil
	})
}

func (r *ProductRepo) upsertProductQuery(item assignment.Item) squirrel.InsertBuilder {
	return r.Builder().
		Insert(productsTable).
		Columns(productCols...).
		Values(item.ID, item.Title, item.Vendor, item.ProductType, nonNil(item.Options)).
		Suffix("ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, vendor = EXCLUDED.vendor, " +
			"product_type = EXCLUDED.product_type, options = EXCLUDED.options, updated_at = now()")
}

func toItem(p productRow, variants []variantRow) assignment.Item {
	item := assignment.Item{
		ID:          p.ID,
		Title:       p.Title,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Options:     p.Options,
		Targets:     make([]assignment.Target, len(variants)),
	}
	for i, v := range variants {
		item.Targets[i] = assignment.Target{ID: v.ID, SKU: v.SKU, SelectedOptions: v.SelectedOptions}
	}
	return item
}

// nonNil keeps jsonb columns as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
