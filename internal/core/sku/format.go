package sku

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version selects the identifier suffix encoding.
type Version int

const (
	// FormatHex renders the sequence as uppercase hex, at least 4 digits.
	// This is the canonical format.
	FormatHex Version = iota

	// FormatDecimal renders the sequence as decimal, at least 3 digits.
	// Kept for catalogs that were numbered before the hex format existed.
	FormatDecimal
)

// ErrInvalidIdentifier is returned by Parse for strings that do not follow
// the identifier grammar.
var ErrInvalidIdentifier = errors.New("invalid sku identifier")

var (
	hexPattern     = regexp.MustCompile(`^([A-Z0-9]{3}-[A-Z0-9]{3})-([0-9A-F]{4,})$`)
	decimalPattern = regexp.MustCompile(`^([A-Z0-9]{3}-[A-Z0-9]{3})-([0-9]{3,})$`)
)

// ParseVersion maps a configuration value ("hex", "decimal") to a Version.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hex", "hex4":
		return FormatHex, nil
	case "decimal", "dec3":
		return FormatDecimal, nil
	}
	return FormatHex, fmt.Errorf("unknown sku format %q", s)
}

// String implements fmt.Stringer.
func (v Version) String() string {
	if v == FormatDecimal {
		return "decimal"
	}
	return "hex"
}

// Formatter renders identifiers in a single format version.
// A formatter never mixes versions.
type Formatter struct {
	version Version
}

// NewFormatter creates a formatter for the given version.
func NewFormatter(v Version) Formatter {
	return Formatter{version: v}
}

// Version returns the format version of f.
func (f Formatter) Version() Version {
	return f.version
}

// Format renders group and n as an identifier.
// The suffix grows beyond its minimum width instead of wrapping.
func (f Formatter) Format(group GroupKey, n int64) string {
	if f.version == FormatDecimal {
		return fmt.Sprintf("%s-%03d", group, n)
	}
	return fmt.Sprintf("%s-%04X", group, n)
}

// Parse splits an identifier into its group key and sequence number.
func (f Formatter) Parse(identifier string) (GroupKey, int64, error) {
	pattern, base := hexPattern, 16
	if f.version == FormatDecimal {
		pattern, base = decimalPattern, 10
	}

	m := pattern.FindStringSubmatch(identifier)
	if m == nil {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, identifier)
	}
	n, err := strconv.ParseInt(m[2], base, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %v", ErrInvalidIdentifier, identifier, err)
	}
	return GroupKey(m[1]), n, nil
}

// Format renders an identifier in the canonical hex format.
func Format(group GroupKey, n int64) string {
	return NewFormatter(FormatHex).Format(group, n)
}
