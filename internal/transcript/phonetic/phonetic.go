// Package phonetic snaps misheard words to a configured vocabulary using
// Double Metaphone encoding combined with Jaro-Winkler similarity.
//
// A phrase is compared against every vocabulary term in two passes:
//
//  1. Phonetic candidates: terms that share at least one Double Metaphone
//     code with the phrase are ranked by Jaro-Winkler similarity and
//     accepted above the phonetic threshold.
//
//  2. Fuzzy fallback: when no phonetic candidate qualifies, pure
//     Jaro-Winkler similarity is tested against a higher fuzzy threshold.
//
// Terms are prepared once into a [Vocabulary] so that codes are not
// recomputed for every n-gram window of every segment.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matching term. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 {
			m.phoneticThreshold = threshold
		}
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for the fallback
// pass. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 {
			m.fuzzyThreshold = threshold
		}
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Matcher configured with opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// term is a vocabulary entry with its precomputed comparison data.
type term struct {
	canonical string
	lower     string
	tokens    []string
	joined    string
	codes     map[string]struct{}
}

// Vocabulary is a prepared, immutable set of terms.
type Vocabulary struct {
	terms    []term
	maxWords int
}

// Prepare builds a Vocabulary from terms. Blank terms are dropped and
// duplicates (ignoring case) keep their first spelling.
func Prepare(terms []string) *Vocabulary {
	v := &Vocabulary{}
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		lower := strings.ToLower(t)
		if lower == "" {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		tokens := strings.Fields(lower)
		v.terms = append(v.terms, term{
			canonical: t,
			lower:     lower,
			tokens:    tokens,
			joined:    strings.Join(tokens, ""),
			codes:     codesForTokens(tokens),
		})
		v.maxWords = max(v.maxWords, len(tokens))
	}
	return v
}

// Len returns the number of distinct terms.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// MaxWords returns the word count of the longest term, or 0 when empty.
func (v *Vocabulary) MaxWords() int {
	if v == nil {
		return 0
	}
	return v.maxWords
}

// Terms returns the canonical spellings in preparation order.
func (v *Vocabulary) Terms() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.terms))
	for i, t := range v.terms {
		out[i] = t.canonical
	}
	return out
}

// MatchVocabulary finds the term in v most similar to phrase. phrase may
// hold several words. When matched is false, corrected equals phrase and
// confidence is 0.
func (m *Matcher) MatchVocabulary(phrase string, v *Vocabulary) (corrected string, confidence float64, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(phrase))
	if v.Len() == 0 || lower == "" {
		return phrase, 0, false
	}
	tokens := strings.Fields(lower)
	codes := codesForTokens(tokens)
	joined := strings.Join(tokens, "")

	var (
		best         *term
		bestScore    float64
		bestPhonetic bool
	)
	for i := range v.terms {
		t := &v.terms[i]
		score := bestJWScore(tokens, t.tokens, lower, t.lower, joined, t.joined)

		if codesOverlap(codes, t.codes) {
			if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = t, score, true
			}
			continue
		}
		if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
			best, bestScore = t, score
		}
	}

	if best == nil {
		return phrase, 0, false
	}
	return best.canonical, bestScore, true
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
// Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity over the full strings,
// the space-stripped strings and, for equal word counts, the weakest
// aligned word pair.
func bestJWScore(inTokens, termTokens []string, inFull, termFull, inJoined, termJoined string) float64 {
	score := matchr.JaroWinkler(inFull, termFull, false)

	if len(inTokens) > 1 || len(termTokens) > 1 {
		if s := matchr.JaroWinkler(inJoined, termJoined, false); s > score {
			score = s
		}
	}

	// Pairwise alignment only when both sides have the same shape, so that a
	// single matching word cannot pull an unrelated phrase onto a long term.
	if len(inTokens) == len(termTokens) && len(inTokens) > 1 {
		worst := 1.0
		for i := range inTokens {
			worst = min(worst, matchr.JaroWinkler(inTokens[i], termTokens[i], false))
		}
		score = max(score, worst)
	}

	return score
}
