package ordering

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"testing"
)

// TestBetweenBasic verifies midpoint allocation lands strictly between its
// neighbors for representative boundary shapes.
func TestBetweenBasic(t *testing.T) {
	tests := []struct {
		name   string
		before string
		after  string
	}{
		{"both empty", "", ""},
		{"before only", "V", ""},
		{"after only", "", "V"},
		{"simple gap", "A", "Z"},
		{"adjacent digits", "V", "W"},
		{"adjacent long", "Vz", "W"},
		{"after starts with zero digit", "", "01"},
		{"shared prefix", "VA", "VC"},
		{"long shared prefix", "VVVA", "VVVB"},
		{"max digit before", "z", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := Between(tt.before, tt.after)
			if err != nil {
				t.Fatalf("Between(%q, %q) error: %v", tt.before, tt.after, err)
			}
			if !IsValid(key) {
				t.Errorf("Between(%q, %q) = %q, not a valid key", tt.before, tt.after, key)
			}
			if tt.before != "" && key <= tt.before {
				t.Errorf("Between(%q, %q) = %q, not after before", tt.before, tt.after, key)
			}
			if tt.after != "" && key >= tt.after {
				t.Errorf("Between(%q, %q) = %q, not before after", tt.before, tt.after, key)
			}
		})
	}
}

// TestBetweenRejectsInvertedBounds verifies the precondition check.
func TestBetweenRejectsInvertedBounds(t *testing.T) {
	if _, err := Between("W", "V"); err == nil {
		t.Error("Between(W, V) should fail")
	}
	if _, err := Between("V", "V"); err == nil {
		t.Error("Between(V, V) should fail")
	}
}

// TestRepeatedInsertionKeepsOrder simulates the worst case for precision:
// always inserting at the same boundary. Keys must stay strictly ordered
// until the allocator reports exhaustion, and that must take well over a
// realistic editing session's worth of inserts.
func TestRepeatedInsertionKeepsOrder(t *testing.T) {
	low := ""
	high := Initial()
	count := 0
	for {
		key, err := Between(low, high)
		if errors.Is(err, ErrPrecisionExhausted) {
			break
		}
		if err != nil {
			t.Fatalf("Between(%q, %q): %v", low, high, err)
		}
		if low != "" && key <= low || key >= high {
			t.Fatalf("key %q not in (%q, %q)", key, low, high)
		}
		low = key
		count++
		if count > 10000 {
			// Deep enough; front-insertion never exhausts this fast
			// in practice anyway.
			return
		}
	}
	if count < 40 {
		t.Errorf("exhausted after only %d boundary insertions", count)
	}
}

// TestRandomInsertionsStayOrdered inserts at random positions and checks the
// resulting key list is strictly increasing with no duplicates.
func TestRandomInsertionsStayOrdered(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	keys := []string{Initial()}

	for i := 0; i < 2000; i++ {
		pos := rng.Intn(len(keys) + 1)
		var before, after string
		if pos > 0 {
			before = keys[pos-1]
		}
		if pos < len(keys) {
			after = keys[pos]
		}
		key, err := Between(before, after)
		if err != nil {
			t.Fatalf("insert %d at %d: Between(%q, %q): %v", i, pos, before, after, err)
		}
		keys = append(keys[:pos], append([]string{key}, keys[pos:]...)...)
	}

	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("keys[%d] = %q >= keys[%d] = %q", i-1, keys[i-1], i, keys[i])
		}
	}
}

// TestSpread verifies compaction output: sorted, valid, fixed-width, and
// with enough headroom to resume midpoint insertion between any pair.
func TestSpread(t *testing.T) {
	for _, n := range []int{1, 2, 10, 61, 62, 500, 5000} {
		keys := Spread(n)
		if len(keys) != n {
			t.Fatalf("Spread(%d) returned %d keys", n, len(keys))
		}
		if !sort.StringsAreSorted(keys) {
			t.Errorf("Spread(%d) not sorted", n)
		}
		for i, k := range keys {
			if !IsValid(k) {
				t.Errorf("Spread(%d)[%d] = %q invalid", n, i, k)
			}
			if len(k) != len(keys[0]) {
				t.Errorf("Spread(%d)[%d] = %q, width differs from %q", n, i, k, keys[0])
			}
		}
		for i := 1; i < len(keys); i++ {
			if keys[i-1] >= keys[i] {
				t.Fatalf("Spread(%d): %q >= %q", n, keys[i-1], keys[i])
			}
			mid, err := Between(keys[i-1], keys[i])
			if err != nil {
				t.Fatalf("Spread(%d): no room between %q and %q: %v", n, keys[i-1], keys[i], err)
			}
			if len(mid) > len(keys[0])+1 {
				t.Errorf("Spread(%d): midpoint %q between %q and %q is long for freshly spread keys",
					n, mid, keys[i-1], keys[i])
			}
		}
	}
	if Spread(0) != nil {
		t.Error("Spread(0) should be nil")
	}
}

// TestFlatMatchesTwoLevelOrder is the core flat-key property: sorting all
// items by Flat(groupKey, itemKey) reproduces "groups in order, then each
// group's items in order", including when one group key is a prefix of
// another.
func TestFlatMatchesTwoLevelOrder(t *testing.T) {
	groupKeys := []string{"1", "1V", "A", "AV", "V", "V1", "z"}
	itemKeys := []string{"1", "V", "Vz", "z"}

	var want []string
	for _, g := range groupKeys {
		for _, it := range itemKeys {
			want = append(want, Flat(g, it))
		}
	}

	got := make([]string, len(want))
	copy(got, want)
	rand.New(rand.NewSource(2)).Shuffle(len(got), func(i, j int) {
		got[i], got[j] = got[j], got[i]
	})
	sort.Strings(got)

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("flat sort[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestFlatIsPure verifies the flat key is a pure function of its inputs:
// recomputing after a group-key change matches computing from scratch.
func TestFlatIsPure(t *testing.T) {
	itemKey := "Vk"
	before := Flat("A", itemKey)
	after := Flat("Q", itemKey)
	if Flat("Q", itemKey) != after {
		t.Error("Flat not deterministic")
	}
	if before == after {
		t.Error("group key change must change the flat key")
	}
	if !strings.HasSuffix(after, FlatSep+itemKey) {
		t.Errorf("Flat(%q, %q) = %q, lost item key", "Q", itemKey, after)
	}
}

// TestInitialAndValidity pins down the shape of generated keys.
func TestInitialAndValidity(t *testing.T) {
	if !IsValid(Initial()) {
		t.Errorf("Initial() = %q invalid", Initial())
	}
	tests := []struct {
		key  string
		want bool
	}{
		{"V", true},
		{"01", true},
		{"", false},
		{"0", false},  // trailing smallest digit
		{"V0", false}, // trailing smallest digit
		{"V.", false}, // separator is not a digit
		{strings.Repeat("z", MaxKeyLen+1), false},
	}
	for _, tt := range tests {
		if got := IsValid(tt.key); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
