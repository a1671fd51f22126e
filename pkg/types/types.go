// Package types defines the data structures shared between dictato's
// transport, correction and provider packages.
//
// Each package keeps its own domain types; only values that cross package
// boundaries live here to avoid circular imports.
package types

import "time"

// Transcript is one recognised segment of dictated speech as delivered by
// the client's speech recogniser. Partial (interim) and final segments both
// use this type.
type Transcript struct {
	// Text is the recognised speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial
	// (interim) segment. Interim segments are replaced by later ones.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// recogniser does not report confidence.
	Confidence float64

	// Words contains per-word detail when the recogniser provides it. May be
	// nil.
	Words []WordDetail

	// Timestamp marks when the segment started, relative to session start.
	Timestamp time.Duration
}

// WordDetail holds per-word metadata from recognisers that support it.
// Start and End encode as nanoseconds in JSON.
type WordDetail struct {
	Word       string        `json:"word"`
	Start      time.Duration `json:"start,omitempty"`
	End        time.Duration `json:"end,omitempty"`
	Confidence float64       `json:"confidence"`
}

// Message is a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}
