package transcript

import (
	"slices"
	"testing"
)

func TestSplitPunct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tok, lead, core, trail string
	}{
		{"word", "", "word", ""},
		{"word,", "", "word", ","},
		{"(word).", "(", "word", ")."},
		{"¿qué?", "¿", "qué", "?"},
		{"...", "...", "", ""},
	}
	for _, tc := range tests {
		lead, core, trail := splitPunct(tc.tok)
		if lead != tc.lead || core != tc.core || trail != tc.trail {
			t.Errorf("splitPunct(%q) = (%q, %q, %q), want (%q, %q, %q)",
				tc.tok, lead, core, trail, tc.lead, tc.core, tc.trail)
		}
	}
}

func TestFieldSpans(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []wordSpan
	}{
		{"", nil},
		{" \t\n", nil},
		{"a", []wordSpan{{0, 1}}},
		{"ab\n\ncd", []wordSpan{{0, 2}, {4, 6}}},
		{" é\tx ", []wordSpan{{1, 3}, {4, 5}}},
	}
	for _, tc := range tests {
		if got := fieldSpans(tc.in); !slices.Equal(got, tc.want) {
			t.Errorf("fieldSpans(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
