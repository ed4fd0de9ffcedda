package storage

import "testing"

// TestNextLabel verifies default group naming: first unused letter, then a
// numbered fallback.
func TestNextLabel(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{"empty", nil, "A"},
		{"sequential", []string{"A", "B"}, "C"},
		{"gap reused", []string{"A", "C"}, "B"},
		{"renamed groups ignored", []string{"Push", "Pull"}, "A"},
		{"alphabet spent", letters26(), "Group 27"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextLabel(tt.existing); got != tt.want {
				t.Errorf("nextLabel(%v) = %q, want %q", tt.existing, got, tt.want)
			}
		})
	}
}

func letters26() []string {
	var out []string
	for c := 'A'; c <= 'Z'; c++ {
		out = append(out, string(c))
	}
	return out
}

// TestEffectiveRest pins the override-or-default resolution used both for
// display reads and at snapshot time.
func TestEffectiveRest(t *testing.T) {
	override := 45
	if got := effectiveRest(&override, 90); got != 45 {
		t.Errorf("effectiveRest(45, 90) = %d, want 45", got)
	}
	if got := effectiveRest(nil, 90); got != 90 {
		t.Errorf("effectiveRest(nil, 90) = %d, want 90", got)
	}
	zero := 0
	if got := effectiveRest(&zero, 90); got != 0 {
		t.Errorf("effectiveRest(0, 90) = %d, want explicit 0", got)
	}
}
