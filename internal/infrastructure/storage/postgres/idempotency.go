package postgres

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"skuforge/internal/core/apperror"
	"skuforge/internal/core/idempotency"
)

// IdempotencyStatus represents the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusDone    IdempotencyStatus = "done"
)

// IdempotencyStore keeps idempotency keys in sku_idempotency.
type IdempotencyStore struct {
	tx  TxRunner
	ttl time.Duration
	now func() time.Time
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(tx TxRunner, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &IdempotencyStore{tx: tx, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Acquire implements idempotency.Store.
func (s *IdempotencyStore) Acquire(ctx context.Context, req idempotency.Request) (*idempotency.Replay, error) {
	now := s.now()

	var (
		inserted  bool
		stored    idempotency.Request
		status    IdempotencyStatus
		replay    idempotency.Replay
		updatedAt time.Time
	)
	// xmax = 0 only for rows created by this statement
	err := s.tx.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sku_idempotency (idempotency_key, scope, operation, request_hash, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			expires_at = GREATEST(sku_idempotency.expires_at, EXCLUDED.expires_at)
		RETURNING (xmax = 0), scope, operation, request_hash, status,
			COALESCE(response, ''::bytea), COALESCE(response_status, 0), COALESCE(response_content_type, ''), updated_at
	`, req.Key, req.Scope, req.Operation, req.Hash, IdempotencyStatusPending, now, now.Add(s.ttl)).Scan(
		&inserted, &stored.Scope, &stored.Operation, &stored.Hash, &status,
		&replay.Body, &replay.StatusCode, &replay.ContentType, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if inserted {
		return nil, nil
	}

	if !req.Matches(stored) {
		return nil, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("operation", req.Operation)
	}

	switch status {
	case IdempotencyStatusDone:
		return normalizeReplay(replay), nil
	case IdempotencyStatusPending:
		if now.Sub(updatedAt) <= idempotency.StaleAfter {
			return nil, apperror.NewIdempotencyConflict(req.Key)
		}
		// reclaim a key left behind by a crashed request
		tag, err := s.tx.GetQuerier(ctx).Exec(ctx, `
			UPDATE sku_idempotency SET updated_at = $1
			WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4
		`, now, req.Key, IdempotencyStatusPending, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("reclaim stale key: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, apperror.NewIdempotencyConflict(req.Key)
		}
		return nil, nil
	}
	return nil, nil
}

// Complete implements idempotency.Store.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp idempotency.Replay) error {
	querier := s.tx.GetQuerier(ctx)
	if resp.StatusCode >= http.StatusInternalServerError {
		_, err := querier.Exec(ctx, `DELETE FROM sku_idempotency WHERE idempotency_key = $1`, key)
		return err
	}

	_, err := querier.Exec(ctx, `
		UPDATE sku_idempotency
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE idempotency_key = $6
	`, IdempotencyStatusDone, resp.Body, resp.StatusCode, resp.ContentType, s.now(), key)
	return err
}

// CleanupExpired removes expired idempotency records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.tx.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sku_idempotency WHERE expires_at < $1`, s.now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func normalizeReplay(r idempotency.Replay) *idempotency.Replay {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" {
		r.ContentType = "application/json"
	}
	return &r
}
