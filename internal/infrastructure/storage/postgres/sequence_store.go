package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	coreseq "skuforge/internal/core/sequence"
)

const sequenceTable = "sku_sequences"

// SequenceStore keeps SKU counters in the sku_sequences table.
// IncrementAndGet is a single UPSERT, safe across processes.
type SequenceStore struct {
	q         Querier
	namespace string
}

var (
	_ coreseq.Store       = (*SequenceStore)(nil)
	_ coreseq.Incrementer = (*SequenceStore)(nil)
)

// NewSequenceStore creates a counter store for one namespace.
func NewSequenceStore(q Querier, namespace string) *SequenceStore {
	return &SequenceStore{q: q, namespace: namespace}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Read implements sequence.Store.
func (s *SequenceStore) Read(ctx context.Context, name string) (int64, bool, error) {
	sql, args, err := builder().
		Select("value").
		From(sequenceTable).
		Where(squirrel.Eq{"namespace": s.namespace, "name": name}).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build read query: %w", err)
	}

	var value int64
	if err := s.q.QueryRow(ctx, sql, args...).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: %w", coreseq.ErrStoreRead, err)
	}
	return value, true, nil
}

// Write implements sequence.Store.
func (s *SequenceStore) Write(ctx context.Context, name string, value int64) error {
	if value < 0 {
		return fmt.Errorf("%w: negative value %d", coreseq.ErrStoreWrite, value)
	}
	sql, args, err := builder().
		Insert(sequenceTable).
		Columns("namespace", "name", "value", "updated_at").
		Values(s.namespace, name, value, squirrel.Expr("now()")).
		Suffix("ON CONFLICT (namespace, name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build write query: %w", err)
	}

	if _, err := s.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("%w: %w", coreseq.ErrStoreWrite, err)
	}
	return nil
}

// IncrementAndGet implements sequence.Incrementer.
func (s *SequenceStore) IncrementAndGet(ctx context.Context, name string, initial int64) (int64, error) {
	sql, args, err := builder().
		Insert(sequenceTable).
		Columns("namespace", "name", "value", "updated_at").
		Values(s.namespace, name, initial+1, squirrel.Expr("now()")).
		Suffix("ON CONFLICT (namespace, name) DO UPDATE SET value = " + sequenceTable + ".value + 1, updated_at = now() RETURNING value").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build increment query: %w", err)
	}

	var value int64
	if err := s.q.QueryRow(ctx, sql, args...).Scan(&value); err != nil {
		return 0, fmt.Errorf("%w: %w", coreseq.ErrStoreWrite, err)
	}
	return value, nil
}
