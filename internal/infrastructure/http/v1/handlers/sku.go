package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"skuforge/internal/core/apperror"
	"skuforge/internal/core/sku"
	"skuforge/internal/domain/assignment"
	"skuforge/internal/infrastructure/http/v1/dto"
	"skuforge/internal/infrastructure/storage/postgres"
)

// BatchAssigner assigns SKUs to a batch of items.
type BatchAssigner interface {
	AssignBatch(ctx context.Context, ids []string, overwrite bool) *assignment.BatchReport
}

// HistoryReader reads the assignment journal.
type HistoryReader interface {
	History(ctx context.Context, itemID string, limit int) ([]postgres.JournalEntry, error)
}

// SKUHandler serves SKU assignment endpoints.
type SKUHandler struct {
	*BaseHandler
	assigner  BatchAssigner
	formatter sku.Formatter
	history   HistoryReader // optional
}

// NewSKUHandler creates the handler. history may be nil.
func NewSKUHandler(base *BaseHandler, assigner BatchAssigner, formatter sku.Formatter, history HistoryReader) *SKUHandler {
	return &SKUHandler{
		BaseHandler: base,
		assigner:    assigner,
		formatter:   formatter,
		history:     history,
	}
}

// RegisterRoutes registers SKU routes. mutating wraps the assign route
// (idempotency).
func (h *SKUHandler) RegisterRoutes(rg *gin.RouterGroup, mutating ...gin.HandlerFunc) {
	skus := rg.Group("/skus")
	skus.POST("/assign", append(append([]gin.HandlerFunc{}, mutating...), h.Assign)...)
	skus.GET("/preview", h.Preview)
	if h.history != nil {
		skus.GET("/journal", h.Journal)
	}
}

// Assign assigns SKUs to the given products.
// POST /api/v1/skus/assign
//
// Accepts JSON {"productIds": [...] | "a,b", "force": "1"} or the same
// fields as form values. Responds 200 when every record succeeded and 207
// otherwise.
func (h *SKUHandler) Assign(c *gin.Context) {
	var ids []string
	var overwrite bool

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req dto.AssignRequest
		if !h.BindJSON(c, &req) {
			return
		}
		ids = req.ProductIDs
		overwrite = bool(req.Force) || bool(req.Overwrite)
	} else {
		ids = dto.SplitCSV(c.PostForm("productIds"))
		overwrite = dto.ParseFlag(c.PostForm("force")) || dto.ParseFlag(c.PostForm("overwrite"))
	}

	ids = assignment.NormalizeIDs(ids)
	if len(ids) == 0 {
		h.HandleError(c, apperror.NewValidation("No productIds provided"))
		return
	}

	report := h.assigner.AssignBatch(c.Request.Context(), ids, overwrite)

	status := http.StatusOK
	if !report.OK() {
		status = http.StatusMultiStatus
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(status, dto.FromBatchReport(report))
}

// Preview shows the group a type/vendor pair maps to without reserving.
// GET /api/v1/skus/preview?type=&vendor=
func (h *SKUHandler) Preview(c *gin.Context) {
	h.OK(c, dto.NewPreviewResponse(c.Query("type"), c.Query("vendor"), h.formatter))
}

// Journal lists recent assignments of an item.
// GET /api/v1/skus/journal?itemId=&limit=
func (h *SKUHandler) Journal(c *gin.Context) {
	itemID := strings.TrimSpace(c.Query("itemId"))
	if itemID == "" {
		h.HandleError(c, apperror.NewValidation("itemId is required"))
		return
	}
	limit := h.ParseIntQuery(c, "limit", 20)
	if limit < 1 || limit > 200 {
		h.HandleError(c, apperror.NewValidation("limit must be between 1 and 200"))
		return
	}

	entries, err := h.history.History(c.Request.Context(), itemID, limit)
	if err != nil {
		h.HandleError(c, apperror.NewInternal(err))
		return
	}
	if entries == nil {
		entries = []postgres.JournalEntry{}
	}
	h.OK(c, dto.ListResponse{Items: entries, TotalCount: len(entries), Limit: limit})
}
