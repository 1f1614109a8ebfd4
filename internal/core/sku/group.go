package sku

import "strings"

// GroupKey identifies a SKU family: TTT-VVV.
type GroupKey string

// NewGroupKey builds the group key for a product type and vendor label.
func NewGroupKey(typeLabel, vendorLabel string) GroupKey {
	return GroupKey(Abbreviate(typeLabel) + "-" + Abbreviate(vendorLabel))
}

// String implements fmt.Stringer.
func (g GroupKey) String() string {
	return string(g)
}

// TypeCode returns the product type half of the key.
func (g GroupKey) TypeCode() string {
	code, _, _ := strings.Cut(string(g), "-")
	return code
}

// VendorCode returns the vendor half of the key.
func (g GroupKey) VendorCode() string {
	_, code, _ := strings.Cut(string(g), "-")
	return code
}

// StoreName returns the counter name used in the sequence store.
// Store names are case-insensitive, so the key is lower-cased.
func (g GroupKey) StoreName(prefix string) string {
	return prefix + strings.ToLower(string(g))
}
