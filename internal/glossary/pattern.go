package glossary

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrEmptyKey is returned by [compileKey] for a blank match key. Blank keys
// only reach the matcher through hand-edited or foreign storage, since
// [NewRule] rejects them.
var ErrEmptyKey = errors.New("glossary: empty match key")

// matcher is a compiled, whole-word, case-insensitive match key.
type matcher struct {
	re *regexp.Regexp
}

// compileKey builds the matcher for key. The key is escaped, so special
// characters are matched literally; the remaining failure modes are blank
// keys and inputs the regexp engine refuses.
func compileKey(key string) (*matcher, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyKey
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(key))
	if err != nil {
		return nil, err
	}
	return &matcher{re: re}, nil
}

// replaceAll replaces every whole-word occurrence of the key in text with
// repl, taken literally. It returns the new text and the replacement count.
//
// Candidate matches that touch a word rune on either side are rejected and
// the scan resumes one rune after the rejected start, so an overlapping
// whole-word occurrence is still found.
func (m *matcher) replaceAll(text, repl string) (string, int) {
	var (
		b    strings.Builder
		last int
		pos  int
		n    int
	)
	for pos < len(text) {
		loc := m.re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end == start {
			break
		}
		if !isWholeWord(text, start, end) {
			_, w := utf8.DecodeRuneInString(text[start:])
			pos = start + w
			continue
		}
		if n == 0 {
			b.Grow(len(text))
		}
		b.WriteString(text[last:start])
		b.WriteString(repl)
		last, pos = end, end
		n++
	}
	if n == 0 {
		return text, 0
	}
	b.WriteString(text[last:])
	return b.String(), n
}

// isWholeWord reports whether text[start:end] is not adjacent to a word rune.
func isWholeWord(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
