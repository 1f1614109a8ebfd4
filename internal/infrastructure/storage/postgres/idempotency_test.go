package postgres

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuforge/internal/core/apperror"
	"skuforge/internal/core/idempotency"
)

// rowFunc adapts a function to pgx.Row.
type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

// idemQuerier returns a row describing the stored key.
type idemQuerier struct {
	mockQuerier
	inserted  bool
	stored    idempotency.Request
	status    IdempotencyStatus
	body      []byte
	updatedAt time.Time
}

func (q *idemQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.calls = append(q.calls, call{sql, args})
	return rowFunc(func(dest ...any) error {
		*dest[0].(*bool) = q.inserted
		*dest[1].(*string) = q.stored.Scope
		*dest[2].(*string) = q.stored.Operation
		*dest[3].(*string) = q.stored.Hash
		*dest[4].(*IdempotencyStatus) = q.status
		*dest[5].(*[]byte) = q.body
		*dest[6].(*int) = http.StatusMultiStatus
		*dest[7].(*string) = "application/json"
		*dest[8].(*time.Time) = q.updatedAt
		return nil
	})
}

var assignReq = idempotency.Request{
	Key: "k1", Scope: "demo.myshopify.com", Operation: "POST /api/v1/skus/assign", Hash: "abc",
}

func newIdemStore(q *idemQuerier, now time.Time) *IdempotencyStore {
	s := NewIdempotencyStore(mockTxFor(q), time.Hour)
	s.now = func() time.Time { return now }
	return s
}

type idemTx struct{ q *idemQuerier }

func (t idemTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
func (t idemTx) GetQuerier(context.Context) Querier { return t.q }

func mockTxFor(q *idemQuerier) TxRunner { return idemTx{q} }

func TestIdempotencyStore_FirstRequestRuns(t *testing.T) {
	s := newIdemStore(&idemQuerier{inserted: true}, time.Now())

	replay, err := s.Acquire(context.Background(), assignReq)
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestIdempotencyStore_ReplaysDone(t *testing.T) {
	q := &idemQuerier{stored: assignReq, status: IdempotencyStatusDone, body: []byte(`{"ok":false}`)}
	s := newIdemStore(q, time.Now())

	replay, err := s.Acquire(context.Background(), assignReq)
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, http.StatusMultiStatus, replay.StatusCode)
	assert.Equal(t, `{"ok":false}`, string(replay.Body))
}

func TestIdempotencyStore_Mismatch(t *testing.T) {
	other := assignReq
	other.Hash = "different"
	s := newIdemStore(&idemQuerier{stored: other, status: IdempotencyStatusDone}, time.Now())

	_, err := s.Acquire(context.Background(), assignReq)
	assert.True(t, apperror.IsCode(err, apperror.CodeIdempotencyMismatch))
}

func TestIdempotencyStore_PendingConflict(t *testing.T) {
	now := time.Now()
	q := &idemQuerier{stored: assignReq, status: IdempotencyStatusPending, updatedAt: now.Add(-5 * time.Second)}
	s := newIdemStore(q, now)

	_, err := s.Acquire(context.Background(), assignReq)
	assert.True(t, apperror.IsCode(err, apperror.CodeIdempotencyConflict))
}

func TestIdempotencyStore_ReclaimsStale(t *testing.T) {
	now := time.Now()
	q := &idemQuerier{stored: assignReq, status: IdempotencyStatusPending, updatedAt: now.Add(-time.Hour)}
	s := newIdemStore(q, now)

	replay, err := s.Acquire(context.Background(), assignReq)
	require.NoError(t, err)
	assert.Nil(t, replay)
	assert.Contains(t, q.calls[1].sql, "UPDATE sku_idempotency SET updated_at")
}

func TestIdempotencyStore_CompleteReleasesServerErrors(t *testing.T) {
	q := &idemQuerier{}
	s := newIdemStore(q, time.Now())

	require.NoError(t, s.Complete(context.Background(), "k1", idempotency.Replay{StatusCode: 502}))
	assert.Contains(t, q.calls[0].sql, "DELETE FROM sku_idempotency")

	require.NoError(t, s.Complete(context.Background(), "k1", idempotency.Replay{StatusCode: 207, Body: []byte("{}")}))
	assert.Contains(t, q.calls[1].sql, "SET status = $1")
	assert.Equal(t, IdempotencyStatusDone, q.calls[1].args[0])
}
