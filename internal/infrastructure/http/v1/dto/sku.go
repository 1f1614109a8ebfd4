package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"skuforge/internal/core/sku"
	"skuforge/internal/domain/assignment"
)

// IDList accepts a JSON array of ids or a comma-separated string.
type IDList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *IDList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("productIds: %w", err)
		}
		*l = ids
		return nil
	}
	var csv string
	if err := json.Unmarshal(data, &csv); err != nil {
		return fmt.Errorf("productIds must be an array or a comma-separated string")
	}
	*l = SplitCSV(csv)
	return nil
}

// SplitCSV splits a comma-separated id list.
func SplitCSV(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

// Flag accepts true/false, "1"/"0", "true"/"false" and 1/0.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = Flag(t)
	case string:
		*f = Flag(ParseFlag(t))
	case float64:
		*f = t == 1
	case nil:
		*f = false
	default:
		return fmt.Errorf("invalid flag %s", data)
	}
	return nil
}

// ParseFlag reports whether s is "1" or "true" (case-insensitive).
func ParseFlag(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true"
}

// AssignRequest is the body of POST /skus/assign.
// Force and Overwrite are synonyms.
type AssignRequest struct {
	ProductIDs IDList `json:"productIds"`
	Force      Flag   `json:"force"`
	Overwrite  Flag   `json:"overwrite"`
}

// AssignResponse is the batch report.
type AssignResponse struct {
	OK        bool                `json:"ok"`
	Updated   int                 `json:"updated"`
	Errors    []string            `json:"errors"`
	Overwrite bool                `json:"overwrite"`
	Records   []assignment.Result `json:"records"`
}

// FromBatchReport converts a batch report.
func FromBatchReport(r *assignment.BatchReport) AssignResponse {
	return AssignResponse{
		OK:        r.OK(),
		Updated:   r.Updated,
		Errors:    r.Errors,
		Overwrite: r.Overwrite,
		Records:   r.Records,
	}
}

// PreviewResponse describes the group of a type/vendor pair.
type PreviewResponse struct {
	Type       string `json:"type"`
	Vendor     string `json:"vendor"`
	TypeCode   string `json:"typeCode"`
	VendorCode string `json:"vendorCode"`
	Group      string `json:"group"`
	Example    string `json:"example"`
	Skipped    bool   `json:"skipped"`
}

// NewPreviewResponse builds a preview. Example shows the first identifier
// the group would receive in format f.
func NewPreviewResponse(typeLabel, vendor string, f sku.Formatter) PreviewResponse {
	g := sku.NewGroupKey(typeLabel, vendor)
	return PreviewResponse{
		Type:       typeLabel,
		Vendor:     vendor,
		TypeCode:   g.TypeCode(),
		VendorCode: g.VendorCode(),
		Group:      g.String(),
		Example:    f.Format(g, 1),
		Skipped:    strings.TrimSpace(typeLabel) == "" || strings.TrimSpace(vendor) == "",
	}
}
