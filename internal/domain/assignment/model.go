// Package assignment assigns SKUs to catalog items and applies them in one
// batched catalog update per item.
package assignment

import (
	"strings"

	"github.com/hashicorp/go-multierror"

	"skuforge/internal/core/sku"
)

// Option is one product option with its allowed values.
type Option struct {
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Values   []string `json:"values"`
}

// SelectedOption is the value a target has for an option.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Target is a purchasable variant of an item.
type Target struct {
	ID              string           `json:"id"`
	SKU             string           `json:"sku"`
	SelectedOptions []SelectedOption `json:"selectedOptions,omitempty"`
}

// HasSKU reports whether the target carries a non-blank identifier.
func (t Target) HasSKU() bool {
	return strings.TrimSpace(t.SKU) != ""
}

// Item is a catalog record.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Vendor      string   `json:"vendor"`
	ProductType string   `json:"productType"`
	Options     []Option `json:"options,omitempty"`
	Targets     []Target `json:"targets"`
}

// Categorized reports whether both vendor and product type are non-blank.
func (i *Item) Categorized() bool {
	return strings.TrimSpace(i.Vendor) != "" && strings.TrimSpace(i.ProductType) != ""
}

// Group returns the SKU group of the item.
func (i *Item) Group() sku.GroupKey {
	return sku.NewGroupKey(i.ProductType, i.Vendor)
}

// Change is a pending identifier update for one target.
type Change struct {
	TargetID        string           `json:"targetId"`
	PreviousSKU     string           `json:"previousSku,omitempty"`
	SKU             string           `json:"sku"`
	SelectedOptions []SelectedOption `json:"selectedOptions,omitempty"`
}

// FieldError is a validation error returned by the catalog for one field.
type FieldError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
}

// String renders "field.path: message".
func (e FieldError) String() string {
	return strings.Join(e.Field, ".") + ": " + e.Message
}

// Outcome classifies a per-record result.
type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeNoop    Outcome = "noop"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// SkipMissingCategory is the message of records without vendor or product type.
const SkipMissingCategory = "skipped: missing category/vendor"

// Result is the outcome of assigning SKUs to one item.
type Result struct {
	ItemID  string       `json:"itemId"`
	Outcome Outcome      `json:"outcome"`
	Group   sku.GroupKey `json:"group,omitempty"`
	Updated int          `json:"updated"`
	Changes []Change     `json:"changes,omitempty"`
	Errors  []string     `json:"errors,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Failed reports whether the record failed.
func (r Result) Failed() bool {
	return r.Outcome == OutcomeFailed
}

// BatchReport aggregates the results of a batch, in input order.
type BatchReport struct {
	Overwrite bool     `json:"overwrite"`
	Records   []Result `json:"records"`
	Updated   int      `json:"updated"`
	Errors    []string `json:"errors"`
}

// OK reports whether no record failed.
func (b *BatchReport) OK() bool {
	return len(b.Errors) == 0
}

// Err returns the per-record failures as one error, or nil.
func (b *BatchReport) Err() error {
	var merr *multierror.Error
	for _, r := range b.Records {
		if !r.Failed() {
			continue
		}
		for _, msg := range r.Errors {
			merr = multierror.Append(merr, &RecordError{ItemID: r.ItemID, Message: msg})
		}
	}
	return merr.ErrorOrNil()
}

// RecordError is a failure of one record inside a batch.
type RecordError struct {
	ItemID  string
	Message string
}

func (e *RecordError) Error() string {
	return e.ItemID + ": " + e.Message
}
