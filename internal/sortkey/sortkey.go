// Package sortkey orders segment ids and repository file names.
//
// A key is a run of alternating text and numeric tokens. Numeric tokens absorb
// dotted or hyphenated digit groups, so "dn1:1.10" reads as
// [dn, (1), :, (1, 10)] and sorts after "dn1:1.9". Digits from any script count,
// and text tokens are compared with a root-locale collator.
package sortkey

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// OrderError reports two segment ids that have no defined order.
type OrderError struct {
	A string
	B string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("segment ids %q and %q are not comparable", e.A, e.B)
}

type token struct {
	numeric bool
	text    string
	nums    []string // normalised decimal strings, no leading zeros
}

// Key is a parsed sort key.
type Key struct {
	raw    string
	tokens []token
}

// String returns the text the key was parsed from.
func (k Key) String() string { return k.raw }

var collators = sync.Pool{
	New: func() any {
		return collate.New(language.Und)
	},
}

// Parse builds the segment key for s. Segment keys are not padded: an id that
// starts with a number cannot be compared with one that starts with text.
func Parse(s string) Key {
	return Key{raw: s, tokens: tokenize(s, false)}
}

// parseHuman builds a padded key that always starts with a text token, so
// any two keys are comparable.
func parseHuman(s string) Key {
	return Key{raw: s, tokens: tokenize(s, true)}
}

func tokenize(s string, padded bool) []token {
	runes := []rune(s)
	var tokens []token
	i := 0
	for i < len(runes) {
		if unicode.IsDigit(runes[i]) {
			nums, next := scanNumber(runes, i)
			if padded && (len(tokens) == 0 || tokens[len(tokens)-1].numeric) {
				tokens = append(tokens, token{})
			}
			tokens = append(tokens, token{numeric: true, nums: nums})
			i = next
			continue
		}
		start := i
		for i < len(runes) && !unicode.IsDigit(runes[i]) {
			i++
		}
		tokens = append(tokens, token{text: string(runes[start:i])})
	}
	if padded && len(tokens) == 0 {
		tokens = append(tokens, token{})
	}
	return tokens
}

// scanNumber reads digits, optionally joined by '.' or '-' to further digits.
func scanNumber(runes []rune, i int) ([]string, int) {
	var nums []string
	for {
		var b strings.Builder
		for i < len(runes) && unicode.IsDigit(runes[i]) {
			b.WriteByte(byte('0' + digitValue(runes[i])))
			i++
		}
		nums = append(nums, normalise(b.String()))
		if i+1 < len(runes) && (runes[i] == '.' || runes[i] == '-') && unicode.IsDigit(runes[i+1]) {
			i++
			continue
		}
		return nums, i
	}
}

// digitValue maps a decimal digit of any script to 0-9. Unicode lays out each
// script's decimal digits as contiguous runs of ten.
func digitValue(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	start := r
	for start > 0 && unicode.IsDigit(start-1) {
		start--
	}
	return int(r-start) % 10
}

func normalise(digits string) string {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func compareNumber(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func compareNums(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareNumber(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func compareKeys(coll *collate.Collator, a, b Key) (int, error) {
	for i := 0; i < len(a.tokens) && i < len(b.tokens); i++ {
		ta, tb := a.tokens[i], b.tokens[i]
		if ta.numeric != tb.numeric {
			return 0, &OrderError{A: a.raw, B: b.raw}
		}
		if ta.numeric {
			if c := compareNums(ta.nums, tb.nums); c != 0 {
				return c, nil
			}
			continue
		}
		if c := coll.CompareString(ta.text, tb.text); c != 0 {
			return c, nil
		}
		if c := strings.Compare(ta.text, tb.text); c != 0 {
			return c, nil
		}
	}
	switch {
	case len(a.tokens) < len(b.tokens):
		return -1, nil
	case len(a.tokens) > len(b.tokens):
		return 1, nil
	}
	return strings.Compare(a.raw, b.raw), nil
}

// Compare orders two segment ids canonically.
func Compare(a, b string) (int, error) {
	coll := collators.Get().(*collate.Collator)
	defer collators.Put(coll)
	return compareKeys(coll, Parse(a), Parse(b))
}

// Sort sorts segment ids in place. If any pair is incomparable the first such
// pair is returned as an *OrderError and the order of ids is unspecified.
func Sort(ids []string) error {
	keys := make([]Key, len(ids))
	for i, id := range ids {
		keys[i] = Parse(id)
	}

	coll := collators.Get().(*collate.Collator)
	defer collators.Put(coll)

	var firstErr error
	slices.SortStableFunc(keys, func(a, b Key) int {
		c, err := compareKeys(coll, a, b)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return c
	})
	if firstErr != nil {
		return firstErr
	}
	for i, k := range keys {
		ids[i] = k.raw
	}
	return nil
}

// IncomparablePairs compares every pair of ids and returns each incomparable pair.
func IncomparablePairs(ids []string) []OrderError {
	keys := make([]Key, len(ids))
	for i, id := range ids {
		keys[i] = Parse(id)
	}

	coll := collators.Get().(*collate.Collator)
	defer collators.Put(coll)

	var bad []OrderError
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if _, err := compareKeys(coll, keys[i], keys[j]); err != nil {
				bad = append(bad, OrderError{A: keys[i].raw, B: keys[j].raw})
			}
		}
	}
	return bad
}

// Human orders file and directory names numerically-aware. It never fails.
func Human(a, b string) int {
	coll := collators.Get().(*collate.Collator)
	defer collators.Put(coll)
	c, _ := compareKeys(coll, parseHuman(a), parseHuman(b))
	return c
}

// SortHuman sorts names in place with Human.
func SortHuman(names []string) {
	keys := make([]Key, len(names))
	for i, name := range names {
		keys[i] = parseHuman(name)
	}

	coll := collators.Get().(*collate.Collator)
	defer collators.Put(coll)

	slices.SortStableFunc(keys, func(a, b Key) int {
		c, _ := compareKeys(coll, a, b)
		return c
	})
	for i, k := range keys {
		names[i] = k.raw
	}
}
