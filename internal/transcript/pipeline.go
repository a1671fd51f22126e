// Package transcript defines the correction pipeline that dictato runs over
// every recognised segment before it reaches the user.
//
// The [Pipeline] applies up to two stages in order:
//
//  1. Glossary substitution ([Substituter]): the user's own rules, applied
//     as whole-word replacements. Deterministic and in-process.
//
//  2. Vocabulary snapping: n-gram windows of the glossary output are
//     compared against a configured vocabulary with phonetic matching, and
//     near misses are replaced by the canonical term. Words the recogniser
//     was already confident about are left alone.
//
// Each [Correction] records which stage produced it, so callers can audit,
// display, or selectively roll back changes.
package transcript

import (
	"context"

	"github.com/MrWong99/dictato/pkg/types"
)

// Correction methods.
const (
	MethodGlossary = "glossary"
	MethodPhonetic = "phonetic"
)

// Correction captures a single substitution made by the pipeline.
type Correction struct {
	// Original is the text before the substitution. For the glossary stage
	// this is the whole segment, since rules compose.
	Original string `json:"original"`

	// Corrected is the text after the substitution.
	Corrected string `json:"corrected"`

	// Confidence in this substitution (0.0–1.0). Glossary rules are
	// user-defined and always report 1.
	Confidence float64 `json:"confidence"`

	// Method is [MethodGlossary] or [MethodPhonetic].
	Method string `json:"method"`
}

// CorrectedTranscript is the output of a [Pipeline.Correct] call.
type CorrectedTranscript struct {
	// Original is the segment as received from the client.
	Original types.Transcript

	// Corrected is the segment text with all substitutions applied.
	Corrected string

	// Corrections lists every substitution in the order it was applied. An
	// empty (non-nil) slice means nothing changed.
	Corrections []Correction
}

// Pipeline corrects recognised segments. Implementations must be safe for
// concurrent use.
type Pipeline interface {
	// Correct returns a non-nil *CorrectedTranscript on success. When no
	// corrections are needed, Corrected equals t.Text and Corrections is
	// empty. An error is returned only when ctx is done.
	Correct(ctx context.Context, t types.Transcript) (*CorrectedTranscript, error)
}

// Substituter rewrites text with deterministic rules. *glossary.Store
// satisfies it.
type Substituter interface {
	Process(text string) string
}
