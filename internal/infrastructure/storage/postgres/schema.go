package postgres

import (
	"context"
	"fmt"
)

// schema is applied in order by EnsureSchema. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sku_sequences (
		namespace  text        NOT NULL,
		name       text        NOT NULL,
		value      bigint      NOT NULL CHECK (value >= 0),
		updated_at timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (namespace, name)
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_products (
		id           text        PRIMARY KEY,
		title        text        NOT NULL DEFAULT '',
		vendor       text        NOT NULL DEFAULT '',
		product_type text        NOT NULL DEFAULT '',
		options      jsonb       NOT NULL DEFAULT '[]',
		updated_at   timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_variants (
		id               text        PRIMARY KEY,
		product_id       text        NOT NULL REFERENCES catalog_products (id) ON DELETE CASCADE,
		position         integer     NOT NULL DEFAULT 0,
		sku              text        NOT NULL DEFAULT '',
		selected_options jsonb       NOT NULL DEFAULT '[]',
		updated_at       timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS catalog_variants_sku_key
		ON catalog_variants (sku) WHERE btrim(sku) <> ''`,
	`CREATE INDEX IF NOT EXISTS catalog_variants_product_idx
		ON catalog_variants (product_id, position)`,
	`CREATE TABLE IF NOT EXISTS sku_assignment_journal (
		id                 uuid        PRIMARY KEY,
		item_id            text        NOT NULL,
		group_key          text        NOT NULL,
		shop               text        NOT NULL DEFAULT '',
		request_id         text        NOT NULL DEFAULT '',
		change_count       integer     NOT NULL,
		changes            jsonb,
		changes_compressed bytea,
		compression_algo   text        NOT NULL DEFAULT 'none',
		created_at         timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sku_assignment_journal_item_idx
		ON sku_assignment_journal (item_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS sku_idempotency (
		idempotency_key       text        PRIMARY KEY,
		scope                 text        NOT NULL DEFAULT '',
		operation             text        NOT NULL,
		request_hash          text        NOT NULL,
		status                text        NOT NULL,
		response              bytea,
		response_status       integer,
		response_content_type text,
		created_at            timestamptz NOT NULL,
		updated_at            timestamptz NOT NULL,
		expires_at            timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sku_idempotency_expires_idx
		ON sku_idempotency (expires_at)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
