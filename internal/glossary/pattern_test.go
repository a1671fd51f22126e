package glossary

import (
	"errors"
	"testing"
)

func TestCompileKey_Blank(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"", " ", "\t\n"} {
		if _, err := compileKey(key); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("compileKey(%q) error = %v, want ErrEmptyKey", key, err)
		}
	}
}

func TestMatcher_ReplaceAll(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, repl, in string
		want          string
		wantN         int
	}{
		{"seu", "sua", "seu", "sua", 1},
		{"seu", "sua", "Seu SEU seu", "sua sua sua", 3},
		{"seu", "sua", "seus meuseu", "seus meuseu", 0},
		{"dr.", "Doutor", "Dr. Silva", "Doutor Silva", 1},
		{"dr.", "Doutor", "dr.x", "dr.x", 0},
		{"ana", "X", "ananas ana", "ananas X", 1},
		{"aa", "b", "aaa aa", "aaa b", 1},
		{"(a)", "b", "x (a) y", "x b y", 1},
		{"é", "e", "café é bom", "café e bom", 1},
		{"x", "$0", "x", "$0", 1},
	}
	for _, tc := range tests {
		m, err := compileKey(tc.key)
		if err != nil {
			t.Fatalf("compileKey(%q): %v", tc.key, err)
		}
		got, n := m.replaceAll(tc.in, tc.repl)
		if got != tc.want || n != tc.wantN {
			t.Errorf("replaceAll(%q) with %q→%q = (%q, %d), want (%q, %d)",
				tc.in, tc.key, tc.repl, got, n, tc.want, tc.wantN)
		}
	}
}

func TestIsWordRune(t *testing.T) {
	t.Parallel()

	tests := []struct {
		r    rune
		want bool
	}{
		{'a', true},
		{'Z', true},
		{'7', true},
		{'_', true},
		{'ç', true},
		{'\u0301', true}, // combining acute accent
		{' ', false},
		{'.', false},
		{'-', false},
		{'(', false},
	}
	for _, tc := range tests {
		if got := isWordRune(tc.r); got != tc.want {
			t.Errorf("isWordRune(%q) = %v, want %v", tc.r, got, tc.want)
		}
	}
}

func BenchmarkMatcher_ReplaceAll(b *testing.B) {
	m, err := compileKey("juiz")
	if err != nil {
		b.Fatal(err)
	}
	text := "o juiz disse que o JUIZ de direito e a juíza concordam com o juiz"
	for b.Loop() {
		m.replaceAll(text, "Juiz(a)")
	}
}
