package sku

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{3}$`)

func TestAbbreviate(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{name: "empty", label: "", want: "UNK"},
		{name: "punctuation only", label: "!!! -- ???", want: "UNK"},
		{name: "three words use initials", label: "Air Conditioner Filter", want: "ACF"},
		{name: "many words keep leftmost initials", label: "a b c d", want: "ABC"},
		{name: "two words", label: "Acme Tools", want: "ACT"},
		{name: "three words with vowels", label: "ABC Tools Co", want: "ATC"},
		{name: "exact length", label: "Bag", want: "BAG"},
		{name: "short word pads", label: "Go", want: "GOX"},
		{name: "single letter pads", label: "x", want: "XXX"},
		{name: "vowels dropped first", label: "Shoes", want: "SHS"},
		{name: "repeated consonant demoted", label: "Apple", want: "APL"},
		{name: "repeat demoted before trailing vowels stop", label: "Coffee", want: "COF"},
		{name: "long word", label: "Mississippi", want: "MSS"},
		{name: "hyphenated", label: "T-Shirts", want: "TSH"},
		{name: "digits", label: "3M", want: "3MX"},
		{name: "lower case", label: "acme", want: "ACM"},
		{name: "non ascii is a boundary", label: "Café", want: "CAF"},
		{name: "surrounding whitespace", label: "   Bag   ", want: "BAG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Abbreviate(tt.label))
		})
	}
}

func TestAbbreviate_AlwaysThreeAlphanumerics(t *testing.T) {
	labels := []string{
		"", " ", "a", "ab", "abc", "abcd", "AAAA", "ssss", "1234567",
		"Ünïcödé", "日本語", "Snow-Boards & Skis", "The Very Long Vendor Name Incorporated",
		"ll", "Zz", "x1 y2 z3", "\t\n", "A.B.C.D.E",
	}
	for _, label := range labels {
		code := Abbreviate(label)
		assert.Regexp(t, codePattern, code, "label %q", label)
	}
}

func TestAbbreviate_MultiWordKeepsInitialsInOrder(t *testing.T) {
	labels := []string{"Acme Tools", "Blue Ocean", "Red Fox", "North Face", "Go Pro"}
	for _, label := range labels {
		code := Abbreviate(label)
		words := strings.Fields(label)

		first := strings.IndexByte(code, strings.ToUpper(words[0])[0])
		second := strings.LastIndexByte(code, strings.ToUpper(words[1])[0])

		assert.Equal(t, 0, first, "label %q code %q", label, code)
		assert.Greater(t, second, first, "label %q code %q", label, code)
	}
}

func TestAbbreviate_Deterministic(t *testing.T) {
	for _, label := range []string{"Air Conditioner Filter", "Acme Tools", ""} {
		assert.Equal(t, Abbreviate(label), Abbreviate(label))
	}
}

func TestCandidates_Priorities(t *testing.T) {
	got := candidates("Bell 22")

	want := []candidate{
		{'B', priorityInitial},
		{'E', priorityFiller},
		{'L', priorityConsonant},
		{'L', priorityFiller},
		{'2', priorityInitial},
		{'2', priorityConsonant}, // repeated digits are not demoted
	}
	assert.Equal(t, want, got)
}

func TestCandidates_RunDemotesAllButFirst(t *testing.T) {
	got := candidates("Psss")

	assert.Equal(t, []candidate{
		{'P', priorityInitial},
		{'S', priorityConsonant},
		{'S', priorityFiller},
		{'S', priorityFiller},
	}, got)
}
