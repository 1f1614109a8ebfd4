package assignment

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"skuforge/internal/core/apperror"
	"skuforge/internal/core/sku"
	"skuforge/pkg/logger"
)

var tracer = otel.Tracer("skuforge/assignment")

// DefaultConcurrency bounds the records processed at once by AssignBatch.
const DefaultConcurrency = 4

// Service assigns SKUs to catalog items.
type Service struct {
	catalog     CatalogClient
	allocator   Allocator
	formatter   sku.Formatter
	journal     Journal // optional
	concurrency int
	log         *logger.Logger
}

// ServiceConfig configures the assignment service.
type ServiceConfig struct {
	Catalog   CatalogClient
	Allocator Allocator
	Formatter sku.Formatter
	Journal   Journal // Optional - nil disables journaling

	// Concurrency bounds AssignBatch workers (default DefaultConcurrency)
	Concurrency int
	Logger      *logger.Logger
}

// NewService creates a new assignment service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return &Service{
		catalog:     cfg.Catalog,
		allocator:   cfg.Allocator,
		formatter:   cfg.Formatter,
		journal:     cfg.Journal,
		concurrency: cfg.Concurrency,
		log:         cfg.Logger.WithComponent("assignment"),
	}
}

// AssignByID fetches the item and assigns SKUs to it.
// A missing item is reported as a failed record.
func (s *Service) AssignByID(ctx context.Context, id string, overwrite bool) Result {
	item, err := s.catalog.FetchItem(ctx, id)
	if err != nil {
		s.log.WithContext(ctx).Warnw("fetch item failed", "item_id", id, "error", err)
		return Result{ItemID: id, Outcome: OutcomeFailed, Errors: []string{errorMessage(err)}}
	}
	if item == nil {
		return Result{ItemID: id, Outcome: OutcomeFailed, Errors: []string{errorMessage(apperror.NewNotFound("item", id))}}
	}
	return s.Assign(ctx, item, overwrite)
}

// Assign reserves a number for every target that needs one and applies all
// new identifiers in one catalog call.
//
// Targets with an identifier are kept unless overwrite is set. Reservations
// run one after another. Reserved numbers are never returned, so a failed
// apply leaves gaps in the group's sequence.
func (s *Service) Assign(ctx context.Context, item *Item, overwrite bool) Result {
	ctx, span := tracer.Start(ctx, "assignment.Assign",
		trace.WithAttributes(
			attribute.String("item.id", item.ID),
			attribute.Bool("assign.overwrite", overwrite),
		),
	)
	defer span.End()

	log := s.log.WithContext(ctx).With("item_id", item.ID)
	result := Result{ItemID: item.ID}

	if !item.Categorized() {
		log.Infow("assign skipped", "has_vendor", strings.TrimSpace(item.Vendor) != "",
			"has_type", strings.TrimSpace(item.ProductType) != "")
		result.Outcome = OutcomeSkipped
		result.Message = SkipMissingCategory
		return result
	}

	group := item.Group()
	result.Group = group
	span.SetAttributes(attribute.String("sku.group", group.String()))
	log.Debugw("assign begin", "group", group.String(), "targets", len(item.Targets))

	changes := make([]Change, 0, len(item.Targets))
	for _, t := range item.Targets {
		if t.HasSKU() && !overwrite {
			continue
		}
		n, err := s.allocator.Reserve(ctx, group)
		if err != nil {
			log.Errorw("reserve failed", "group", group.String(), "target_id", t.ID, "error", err)
			span.RecordError(err)
			result.Outcome = OutcomeFailed
			result.Errors = []string{errorMessage(err)}
			return result
		}
		changes = append(changes, Change{
			TargetID:        t.ID,
			PreviousSKU:     t.SKU,
			SKU:             s.formatter.Format(group, n),
			SelectedOptions: t.SelectedOptions,
		})
	}

	if len(changes) == 0 {
		log.Debugw("assign noop")
		result.Outcome = OutcomeNoop
		return result
	}

	fieldErrs, err := s.catalog.ApplyIdentifiers(ctx, item.ID, changes)
	if err != nil {
		appErr := apperror.NewCatalogApply(item.ID, err)
		log.Errorw("apply failed", "error", err, "reserved", len(changes))
		span.RecordError(appErr)
		result.Outcome = OutcomeFailed
		result.Errors = []string{errorMessage(appErr)}
		return result
	}
	if len(fieldErrs) > 0 {
		result.Outcome = OutcomeFailed
		result.Errors = make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			result.Errors = append(result.Errors, fe.String())
		}
		log.Errorw("apply rejected", "errors", result.Errors, "reserved", len(changes))
		return result
	}

	if s.journal != nil {
		if err := s.journal.Record(ctx, item.ID, group, changes); err != nil {
			// identifiers are applied; the journal is best effort
			log.Warnw("journal record failed", "error", err)
		}
	}

	log.Infow("assign updated", "group", group.String(), "updated", len(changes))
	result.Outcome = OutcomeUpdated
	result.Updated = len(changes)
	result.Changes = changes
	return result
}

// AssignBatch assigns SKUs to each item id. Records run concurrently and
// independently; a failing record never stops the others. Blank and
// duplicate ids are dropped, the report keeps input order.
func (s *Service) AssignBatch(ctx context.Context, ids []string, overwrite bool) *BatchReport {
	ids = NormalizeIDs(ids)
	report := &BatchReport{
		Overwrite: overwrite,
		Records:   make([]Result, len(ids)),
		Errors:    []string{},
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			report.Records[i] = s.AssignByID(ctx, id, overwrite)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Records {
		report.Updated += r.Updated
		for _, msg := range r.Errors {
			report.Errors = append(report.Errors, r.ItemID+": "+msg)
		}
	}

	s.log.WithContext(ctx).Infow("batch assigned",
		"records", len(ids), "updated", report.Updated, "errors", len(report.Errors))
	return report
}

// NormalizeIDs trims ids, drops blanks and duplicates, keeps first-seen order.
func NormalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// errorMessage keeps AppError messages readable in reports.
func errorMessage(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.Err != nil {
			return appErr.Message + ": " + appErr.Err.Error()
		}
		return appErr.Message
	}
	return err.Error()
}
