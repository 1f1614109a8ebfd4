// Package sku provides the pure parts of SKU generation: label abbreviation,
// group keys and identifier formatting.
//
// Identifiers look like TTT-VVV-NNNN where TTT is the abbreviated product type,
// VVV the abbreviated vendor and NNNN a per-group sequence number.
package sku

import "strings"

const (
	// CodeLength is the fixed width of every abbreviation.
	CodeLength = 3

	// FallbackCode is returned for labels without any letters or digits.
	FallbackCode = "UNK"

	// PadChar fills codes derived from labels shorter than CodeLength.
	PadChar = 'X'
)

// priority ranks a candidate character. Lower values survive longer.
type priority int

const (
	priorityInitial   priority = 1 // first character of a token
	priorityConsonant priority = 2 // digits and non-repeating consonants
	priorityFiller    priority = 3 // vowels and repeated consonants
)

type candidate struct {
	ch       byte
	priority priority
}

// Abbreviate reduces a free-text label to a 3-character uppercase code.
//
// Every letter or digit becomes a candidate ranked by priority. Candidates are
// then eliminated right-to-left, lowest priority first, until exactly three
// remain. Short results are padded with X, empty ones fall back to UNK.
func Abbreviate(label string) string {
	pool := candidates(label)
	if len(pool) == 0 {
		return FallbackCode
	}

	for p := priorityFiller; p >= priorityInitial && len(pool) > CodeLength; p-- {
		pool = eliminate(pool, p)
	}
	// The initial pass always stops at CodeLength; truncate anyway.
	if len(pool) > CodeLength {
		pool = pool[:CodeLength]
	}

	var b strings.Builder
	b.Grow(CodeLength)
	for _, c := range pool {
		b.WriteByte(c.ch)
	}
	for b.Len() < CodeLength {
		b.WriteByte(PadChar)
	}
	return b.String()
}

// candidates builds the ordered candidate pool for a label.
func candidates(label string) []candidate {
	var pool []candidate
	for _, token := range tokenize(label) {
		var prev byte
		for i := 0; i < len(token); i++ {
			ch := token[i]
			p := priorityConsonant
			switch {
			case i == 0:
				p = priorityInitial
			case isVowel(ch):
				p = priorityFiller
			}
			if i > 0 && ch == prev && isConsonant(ch) {
				p = priorityFiller
			}
			pool = append(pool, candidate{ch: ch, priority: p})
			prev = ch
		}
	}
	return pool
}

// eliminate removes candidates of priority p scanning from the right, stopping
// once the pool is down to CodeLength.
func eliminate(pool []candidate, p priority) []candidate {
	for i := len(pool) - 1; i >= 0 && len(pool) > CodeLength; i-- {
		if pool[i].priority == p {
			pool = append(pool[:i], pool[i+1:]...)
		}
	}
	return pool
}

// tokenize splits a label into uppercase runs of ASCII letters and digits.
// Any other rune, including non-ASCII letters, acts as a word boundary.
func tokenize(label string) []string {
	var (
		tokens  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z':
			current.WriteByte(byte(r - 'a' + 'A'))
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			current.WriteByte(byte(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isVowel(ch byte) bool {
	switch ch {
	case 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}

func isConsonant(ch byte) bool {
	return ch >= 'A' && ch <= 'Z' && !isVowel(ch)
}
