package transcript

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/MrWong99/dictato/internal/observe"
	"github.com/MrWong99/dictato/internal/transcript/phonetic"
	"github.com/MrWong99/dictato/pkg/types"
)

// PipelineOption is a functional option for configuring a [CorrectionPipeline].
type PipelineOption func(*CorrectionPipeline)

// WithGlossary attaches the glossary stage. When nil (the default), the stage
// is skipped.
func WithGlossary(s Substituter) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.glossary = s
	}
}

// WithPhoneticMatcher sets the matcher used by the vocabulary stage. The
// stage only runs once a non-empty vocabulary is set.
func WithPhoneticMatcher(m *phonetic.Matcher) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.phonetic = m
	}
}

// WithVocabulary sets the initial vocabulary terms.
func WithVocabulary(terms []string) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.vocab.Store(phonetic.Prepare(terms))
	}
}

// WithConfidenceSkip sets the recogniser word confidence at or above which a
// word is never snapped to the vocabulary. Zero disables skipping.
// Default: 0.9.
func WithConfidenceSkip(threshold float64) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.confidenceSkip = threshold
	}
}

// WithMetrics records pipeline latency to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) PipelineOption {
	return func(p *CorrectionPipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

const defaultConfidenceSkip = 0.9

// CorrectionPipeline is the two-stage implementation of [Pipeline]. It is
// safe for concurrent use; the vocabulary may be swapped while segments are
// being corrected.
type CorrectionPipeline struct {
	glossary       Substituter
	phonetic       *phonetic.Matcher
	vocab          atomic.Pointer[phonetic.Vocabulary]
	confidenceSkip float64
	metrics        *observe.Metrics
}

var _ Pipeline = (*CorrectionPipeline)(nil)

// NewPipeline constructs a [CorrectionPipeline]. Without options both stages
// are disabled and Correct returns its input.
func NewPipeline(opts ...PipelineOption) *CorrectionPipeline {
	p := &CorrectionPipeline{confidenceSkip: defaultConfidenceSkip}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// SetVocabulary replaces the vocabulary used by the phonetic stage.
func (p *CorrectionPipeline) SetVocabulary(terms []string) {
	p.vocab.Store(phonetic.Prepare(terms))
}

// Vocabulary returns the current vocabulary terms.
func (p *CorrectionPipeline) Vocabulary() []string {
	return p.vocab.Load().Terms()
}

// Correct applies the glossary stage and then the vocabulary stage to t.
func (p *CorrectionPipeline) Correct(ctx context.Context, t types.Transcript) (*CorrectedTranscript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := observe.StartSpan(ctx, "transcript.Correct")
	defer span.End()
	start := time.Now()
	defer func() {
		p.metrics.CorrectionDuration.Record(ctx, time.Since(start).Seconds())
	}()

	result := &CorrectedTranscript{
		Original:    t,
		Corrected:   t.Text,
		Corrections: []Correction{},
	}

	if p.glossary != nil {
		if out := p.glossary.Process(result.Corrected); out != result.Corrected {
			result.Corrections = append(result.Corrections, Correction{
				Original:   result.Corrected,
				Corrected:  out,
				Confidence: 1,
				Method:     MethodGlossary,
			})
			result.Corrected = out
		}
	}

	if p.phonetic != nil {
		if v := p.vocab.Load(); v.Len() > 0 {
			out, corrections := p.applyPhonetic(result.Corrected, t.Words, v)
			result.Corrected = out
			result.Corrections = append(result.Corrections, corrections...)
		}
	}

	return result, nil
}

// applyPhonetic slides n-gram windows over the whitespace-separated tokens
// of text, longest first, and replaces windows that match a vocabulary term.
// Leading punctuation of the first token and trailing punctuation of the last
// token in a window are preserved. Replacements are spliced in by byte
// offset, so whitespace outside a replaced window is kept as is. When
// nothing matches, text is returned unchanged.
func (p *CorrectionPipeline) applyPhonetic(text string, words []types.WordDetail, v *phonetic.Vocabulary) (string, []Correction) {
	spans := fieldSpans(text)
	if len(spans) == 0 {
		return text, nil
	}
	tokens := make([]string, len(spans))
	for i, sp := range spans {
		tokens[i] = text[sp.start:sp.end]
	}
	confident := p.confidentWords(words)

	var (
		out         strings.Builder
		last        int
		corrections []Correction
	)
	for i := 0; i < len(tokens); {
		maxN := min(v.MaxWords(), len(tokens)-i)
		consumed := 1
		for n := maxN; n >= 1; n-- {
			window, lead, trail, ok := buildWindow(tokens[i:i+n], confident)
			if !ok {
				continue
			}
			term, conf, matched := p.phonetic.MatchVocabulary(window, v)
			if !matched {
				continue
			}
			if term != window {
				out.WriteString(text[last:spans[i].start])
				out.WriteString(lead + term + trail)
				last = spans[i+n-1].end
				corrections = append(corrections, Correction{
					Original:   window,
					Corrected:  term,
					Confidence: conf,
					Method:     MethodPhonetic,
				})
			}
			consumed = n
			break
		}
		i += consumed
	}

	if len(corrections) == 0 {
		return text, nil
	}
	out.WriteString(text[last:])
	return out.String(), corrections
}

// wordSpan is the byte range of one whitespace-separated token.
type wordSpan struct{ start, end int }

// fieldSpans returns the byte ranges of the tokens strings.Fields would
// return for text.
func fieldSpans(text string) []wordSpan {
	var (
		spans []wordSpan
		start = -1
	)
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, wordSpan{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, wordSpan{start, len(text)})
	}
	return spans
}

// buildWindow joins the cores of tokens. ok is false when a token has no
// core or is one the recogniser was confident about.
func buildWindow(tokens []string, confident map[string]struct{}) (window, lead, trail string, ok bool) {
	cores := make([]string, len(tokens))
	for j, tok := range tokens {
		l, core, tr := splitPunct(tok)
		if core == "" {
			return "", "", "", false
		}
		if _, skip := confident[strings.ToLower(core)]; skip {
			return "", "", "", false
		}
		if j == 0 {
			lead = l
		}
		if j == len(tokens)-1 {
			trail = tr
		}
		cores[j] = core
	}
	return strings.Join(cores, " "), lead, trail, true
}

// confidentWords returns the lowercased words whose confidence is at or
// above the skip threshold.
func (p *CorrectionPipeline) confidentWords(words []types.WordDetail) map[string]struct{} {
	if p.confidenceSkip <= 0 || len(words) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w.Confidence < p.confidenceSkip {
			continue
		}
		if _, core, _ := splitPunct(w.Word); core != "" {
			set[strings.ToLower(core)] = struct{}{}
		}
	}
	return set
}

// splitPunct splits tok into leading punctuation, core and trailing
// punctuation.
func splitPunct(tok string) (lead, core, trail string) {
	core = strings.TrimLeftFunc(tok, unicode.IsPunct)
	lead = tok[:len(tok)-len(core)]
	trimmed := strings.TrimRightFunc(core, unicode.IsPunct)
	trail = core[len(trimmed):]
	return lead, trimmed, trail
}
