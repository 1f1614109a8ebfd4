package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"skuforge/internal/core/apperror"
	appctx "skuforge/internal/core/context"
	"skuforge/internal/core/idempotency"
	"skuforge/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

// captureWriter keeps a copy of the response body.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency middleware protects against duplicate requests.
// Requests without the header pass through untouched.
func Idempotency(store idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)

		ctx := c.Request.Context()
		req := idempotency.Request{
			Key:       key,
			Scope:     appctx.GetShop(ctx),
			Operation: c.Request.Method + " " + c.FullPath(),
			Hash:      hex.EncodeToString(hash[:]),
		}

		replay, err := store.Acquire(ctx, req)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer

		c.Next()

		resp := idempotency.Replay{
			StatusCode:  writer.Status(),
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
		}
		if !writer.Written() && len(c.Errors) > 0 {
			// ErrorHandler has not rendered the error yet. Store what it will send.
			status, errBody := errorResponse(c, c.Errors.Last().Err)
			encoded, _ := json.Marshal(errBody)
			resp = idempotency.Replay{
				StatusCode:  status,
				ContentType: "application/json; charset=utf-8",
				Body:        encoded,
			}
		}

		if err := store.Complete(ctx, key, resp); err != nil {
			logger.Warn(ctx, "complete idempotency key failed", "key", key, "error", err)
		}
	}
}
