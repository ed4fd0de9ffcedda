// Package ordering implements fractional order keys for sibling lists.
//
// Keys are strings over a base-62 alphabet that compare bytewise, so they
// can be persisted in TEXT columns (COLLATE "C") and sorted with a plain
// ORDER BY. Midpoint allocation means inserting or moving one row never
// touches its siblings; when two adjacent keys get too close together the
// allocator reports ErrPrecisionExhausted and the caller renumbers the
// whole list with Spread.
package ordering

import (
	"errors"
	"fmt"
	"strings"
)

// alphabet is the digit set, in byte order. Keys never end in the smallest
// digit '0'; that invariant is what keeps midpoints constructible.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const base = len(alphabet)

// MaxKeyLen bounds key growth. Adversarial insertion at the same boundary
// grows keys by roughly one digit per insert; 48 digits is far beyond any
// realistic editing session and keeps the column small.
const MaxKeyLen = 48

// FlatSep joins a group key and an item key into a flat key. It must sort
// before every digit in the alphabet ('.' is 0x2E, '0' is 0x30) so that
// concatenated keys stay monotonic in both parts.
const FlatSep = "."

// ErrPrecisionExhausted signals that no key of length <= MaxKeyLen fits
// between the two neighbors. Callers compact the sibling list and retry.
var ErrPrecisionExhausted = errors.New("ordering: key precision exhausted")

// Initial returns the key for the first element of an empty list: the
// midpoint of the whole key space, leaving room on both sides.
func Initial() string {
	return string(alphabet[base/2])
}

// IsValid reports whether s is a well-formed key: nonempty, all digits from
// the alphabet, not ending in the smallest digit.
func IsValid(s string) bool {
	if s == "" || len(s) > MaxKeyLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(alphabet, rune(s[i])) {
			return false
		}
	}
	return s[len(s)-1] != alphabet[0]
}

// Between returns a key strictly between before and after. An empty before
// means "before everything"; an empty after means "after everything". When
// both are empty the result is Initial(). Returns ErrPrecisionExhausted if
// the midpoint would exceed MaxKeyLen.
func Between(before, after string) (string, error) {
	if before == "" && after == "" {
		return Initial(), nil
	}
	if before != "" && after != "" && before >= after {
		return "", fmt.Errorf("ordering: before %q >= after %q", before, after)
	}
	key := midpoint(before, after)
	if len(key) > MaxKeyLen {
		return "", ErrPrecisionExhausted
	}
	return key, nil
}

// midpoint treats keys as fractions in (0, 1): a == "" is 0, b == "" is 1.
// Precondition: a < b (bytewise) when both are nonempty.
func midpoint(a, b string) string {
	if b != "" {
		// Shared prefix carries over unchanged. a is compared as if
		// zero-padded, so midpoint("", "01") recurses past the '0'.
		n := 0
		for n < len(b) {
			ca := alphabet[0]
			if n < len(a) {
				ca = a[n]
			}
			if ca != b[n] {
				break
			}
			n++
		}
		if n > 0 {
			arest := ""
			if n < len(a) {
				arest = a[n:]
			}
			return b[:n] + midpoint(arest, b[n:])
		}
	}

	da := 0
	if a != "" {
		da = strings.IndexByte(alphabet, a[0])
	}
	db := base
	if b != "" {
		db = strings.IndexByte(alphabet, b[0])
	}

	if db-da > 1 {
		// A single digit fits. Integer midpoint is >= 1, so the key
		// never ends in '0'.
		return string(alphabet[(da+db)/2])
	}

	// First digits are consecutive. If b has more digits, its first digit
	// alone already sits strictly between a and b.
	if len(b) > 1 {
		return b[:1]
	}

	// Otherwise keep a's first digit and recurse into the open interval
	// (a[1:], 1).
	rest := ""
	if a != "" {
		rest = a[1:]
	}
	return string(alphabet[da]) + midpoint(rest, "")
}

// Spread returns n evenly spaced keys for a full renumbering (compaction).
// Keys are fixed-width, share no prefixes, and leave at least a full digit
// of headroom between neighbors so midpoint insertion restarts cheaply.
func Spread(n int) []string {
	if n <= 0 {
		return nil
	}

	// Width w such that base^w gives every key a gap of at least base.
	w := 1
	capacity := base
	for capacity/(n+1) < base {
		w++
		capacity *= base
	}

	step := capacity / (n + 1)
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		v := step * (i + 1)
		digits := make([]byte, w)
		for j := w - 1; j >= 0; j-- {
			digits[j] = alphabet[v%base]
			v /= base
		}
		// Gap >= base, so bumping a trailing '0' cannot collide.
		if digits[w-1] == alphabet[0] {
			digits[w-1] = alphabet[1]
		}
		keys[i] = string(digits)
	}
	return keys
}

// Flat derives the global sort key for an item from its group's key and its
// own key within the group. It is monotonic in both arguments: the flat
// order of all items equals "groups in order, items in order within each".
func Flat(groupKey, itemKey string) string {
	return groupKey + FlatSep + itemKey
}
