package test_helpers

import (
	"testing"
)

func TestDedent(t *testing.T) {
	tests := []struct {
		text, want string
	}{
		{"", ""},
		{"\n    a\n      b\n    c\n", "a\n  b\nc"},
		{"\n\t\tcall p\n\n\t\tp: proceed\n\t", "call p\n\np: proceed"},
		{"a\n  b", "a\n  b"},
	}
	for _, test := range tests {
		if got := Dedent(test.text); got != test.want {
			t.Errorf("Dedent(%q) = %q, want %q", test.text, got, test.want)
		}
	}
}
