package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "skuforge/internal/core/context"
	"skuforge/internal/core/id"
	"skuforge/internal/core/sku"
	"skuforge/internal/domain/assignment"
)

// CompressionAlgo specifies how journal changes are stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which changes are compressed.
const DefaultCompressThreshold = 4 * 1024

// JournalEntry is one applied assignment.
type JournalEntry struct {
	ID                id.ID           `db:"id" json:"id"`
	ItemID            string          `db:"item_id" json:"itemId"`
	Group             string          `db:"group_key" json:"group"`
	Shop              string          `db:"shop" json:"shop,omitempty"`
	RequestID         string          `db:"request_id" json:"requestId,omitempty"`
	ChangeCount       int             `db:"change_count" json:"changeCount"`
	Changes           json.RawMessage `db:"changes" json:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo" json:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// Journal stores applied assignments in sku_assignment_journal.
type Journal struct {
	tx                TxRunner
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ assignment.Journal = (*Journal)(nil)

// NewJournal creates a journal. threshold <= 0 uses DefaultCompressThreshold.
func NewJournal(tx TxRunner, threshold int) (*Journal, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &Journal{
		tx:                tx,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
	}, nil
}

// Record implements assignment.Journal.
func (j *Journal) Record(ctx context.Context, itemID string, group sku.GroupKey, changes []assignment.Change) error {
	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	entry := JournalEntry{
		ID:              id.New(),
		ItemID:          itemID,
		Group:           group.String(),
		Shop:            appctx.GetShop(ctx),
		RequestID:       appctx.GetRequestID(ctx),
		ChangeCount:     len(changes),
		Changes:         payload,
		CompressionAlgo: CompressionNone,
		CreatedAt:       time.Now().UTC(),
	}
	if len(payload) > j.compressThreshold {
		entry.ChangesCompressed = j.encoder.EncodeAll(payload, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql, args, err := builder().
		Insert("sku_assignment_journal").
		Columns("id", "item_id", "group_key", "shop", "request_id", "change_count",
			"changes", "changes_compressed", "compression_algo", "created_at").
		Values(entry.ID, entry.ItemID, entry.Group, entry.Shop, entry.RequestID, entry.ChangeCount,
			entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build journal insert: %w", err)
	}

	if _, err := j.tx.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// History returns the newest entries of an item, decompressed.
func (j *Journal) History(ctx context.Context, itemID string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	sql, args, err := builder().
		Select("id", "item_id", "group_key", "shop", "request_id", "change_count",
			"changes", "changes_compressed", "compression_algo", "created_at").
		From("sku_assignment_journal").
		Where("item_id = ?", itemID).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := j.tx.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(
			&e.ID, &e.ItemID, &e.Group, &e.Shop, &e.RequestID, &e.ChangeCount,
			&e.Changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := j.decompress(&e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (j *Journal) decompress(e *JournalEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := j.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	e.Changes = raw
	e.ChangesCompressed = nil
	return nil
}
