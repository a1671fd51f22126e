// Package rewrite implements AI-assisted rewriting of dictated text.
//
// The [Rewriter] sends the text and a free-form instruction to an
// [llm.Provider]. The system prompt carries the glossary's replacement terms
// so the model keeps the user's preferred spellings. The model's reply is
// taken as the new text after stripping markdown code fences; an empty reply
// leaves the input unchanged.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/dictato/internal/glossary"
	"github.com/MrWong99/dictato/internal/observe"
	"github.com/MrWong99/dictato/pkg/provider/llm"
	"github.com/MrWong99/dictato/pkg/types"
)

// ErrNotConfigured is returned by [Rewriter.Rewrite] when no LLM provider is
// available.
var ErrNotConfigured = errors.New("rewrite: no LLM provider configured")

// DefaultInstruction is used when the caller passes an empty instruction.
const DefaultInstruction = "Fix punctuation, capitalisation and obvious grammar mistakes without changing the meaning."

const defaultTemperature = 0.2

const systemPromptTemplate = `You are an editing assistant for dictated text.

Apply the user's instruction to the text and reply with ONLY the rewritten text: no explanations, no quotes, no markdown.

Rules:
- Keep the language of the original text.
- Do not add information that is not in the text.
- Keep every preferred term below spelled exactly as listed.
%s`

// Terms supplies the glossary rules whose replacements the model must keep.
// *glossary.Store satisfies it.
type Terms interface {
	Terms() []glossary.Rule
}

// Option is a functional option for configuring a [Rewriter].
type Option func(*Rewriter)

// WithTemperature sets the sampling temperature. Default: 0.2.
func WithTemperature(temp float64) Option {
	return func(r *Rewriter) {
		r.temperature = temp
	}
}

// WithMetrics records rewrite latency to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Rewriter) {
		if m != nil {
			r.metrics = m
		}
	}
}

// Rewriter rewrites text through an [llm.Provider]. It is safe for
// concurrent use.
type Rewriter struct {
	llm         llm.Provider
	terms       Terms
	temperature float64
	metrics     *observe.Metrics
}

// New returns a Rewriter backed by provider. terms may be nil. A nil provider
// yields a Rewriter whose Rewrite always returns [ErrNotConfigured].
func New(provider llm.Provider, terms Terms, opts ...Option) *Rewriter {
	r := &Rewriter{
		llm:         provider,
		terms:       terms,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Enabled reports whether a provider is configured.
func (r *Rewriter) Enabled() bool { return r != nil && r.llm != nil }

// Rewrite applies instruction to text. An empty instruction falls back to
// [DefaultInstruction]. Empty text is returned without calling the model.
//
// Provider errors and context cancellation are returned wrapped; there is no
// retry.
func (r *Rewriter) Rewrite(ctx context.Context, text, instruction string) (string, error) {
	if !r.Enabled() {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = DefaultInstruction
	}

	var out string
	start := time.Now()
	err := observe.WithSpan(ctx, "rewrite.Rewrite", func(ctx context.Context) error {
		resp, err := r.llm.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: r.systemPrompt(),
			Temperature:  r.temperature,
			Messages: []types.Message{
				{Role: "user", Content: fmt.Sprintf("Instruction: %s\n\nText:\n%s", instruction, text)},
			},
		})
		if err != nil {
			return fmt.Errorf("rewrite: complete: %w", err)
		}
		out = text
		if resp != nil {
			if cleaned := stripMarkdown(resp.Content); cleaned != "" {
				out = cleaned
			}
			observe.Logger(ctx).Debug("rewrite: completed",
				"prompt_tokens", resp.Usage.PromptTokens,
				"completion_tokens", resp.Usage.CompletionTokens,
			)
		}
		return nil
	})
	r.metrics.RecordRewrite(ctx, time.Since(start), err)
	if err != nil {
		return "", err
	}
	return out, nil
}

// systemPrompt lists the distinct replacement terms of the glossary.
func (r *Rewriter) systemPrompt() string {
	var sb strings.Builder
	if r.terms != nil {
		seen := make(map[string]struct{})
		for _, rule := range r.terms.Terms() {
			if rule.To == "" {
				continue
			}
			if _, ok := seen[rule.To]; ok {
				continue
			}
			seen[rule.To] = struct{}{}
			sb.WriteString("- ")
			sb.WriteString(rule.To)
			sb.WriteByte('\n')
		}
	}
	if sb.Len() == 0 {
		sb.WriteString("(none)\n")
	}
	return fmt.Sprintf(systemPromptTemplate, sb.String())
}

// stripMarkdown removes optional markdown code fences that some models wrap
// their output in.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```"); ok {
		// Drop an optional language tag on the opening fence line.
		if i := strings.IndexByte(after, '\n'); i >= 0 && !strings.ContainsAny(after[:i], " \t") {
			after = after[i+1:]
		}
		s = after
		if before, ok := strings.CutSuffix(s, "```"); ok {
			s = before
		}
	}
	return strings.TrimSpace(s)
}
