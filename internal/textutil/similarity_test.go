package textutil_test

import (
	"testing"

	"shokobridge/internal/textutil"
)

func TestRatioIdentical(t *testing.T) {
	if got := textutil.Ratio("Pilot", "Pilot"); got != 1 {
		t.Fatalf("Ratio identical = %v, want 1", got)
	}
}

func TestRatioCaseFolded(t *testing.T) {
	if got := textutil.Ratio("PILOT", "pilot"); got != 1 {
		t.Fatalf("Ratio case-folded = %v, want 1", got)
	}
}

func TestRatioDisjoint(t *testing.T) {
	if got := textutil.Ratio("abc", "xyz"); got != 0 {
		t.Fatalf("Ratio disjoint = %v, want 0", got)
	}
}

func TestRatioPartial(t *testing.T) {
	// "abcd" vs "bcde": longest block "bcd" (3), T=8 -> 0.75.
	if got := textutil.Ratio("abcd", "bcde"); got != 0.75 {
		t.Fatalf("Ratio partial = %v, want 0.75", got)
	}
}

func TestRatioEmpty(t *testing.T) {
	if got := textutil.Ratio("", ""); got != 1 {
		t.Fatalf("Ratio empty = %v, want 1", got)
	}
	if got := textutil.Ratio("a", ""); got != 0 {
		t.Fatalf("Ratio one empty = %v, want 0", got)
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Fate/stay night", "Fate-stay night"},
		{`A<B>C:D"E/F\G|H?I*J`, "A-B-C-D-E-F-G-H-I-J"},
		{"  spaced  ", "spaced"},
		{"", "Untitled"},
		{"???", "---"},
	}
	for _, tc := range cases {
		if got := textutil.SanitizeFileName(tc.in); got != tc.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
