// Package types defines the shared types used across all Herald packages.
//
// These types form the lingua franca between the capture pipeline, the
// providers, and the task manager. They are intentionally minimal — each
// package defines its own domain types, but cross-cutting data structures
// live here to avoid circular imports.
package types

import "time"

// Message roles. The brain endpoint speaks the chat-completions dialect, so
// only these two roles ever enter conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a single entry in a conversation history.
type Message struct {
	// Role is one of "user", "assistant", or "system".
	Role string

	// Content is the text content of the message.
	Content string
}

// Utterance is a completed, silence-bounded span of one speaker's speech.
// It is created by the segmenter, consumed exactly once by the transcriber,
// and never mutated. The PCM buffer is released after transcription.
type Utterance struct {
	// Speaker is the platform user ID of whoever spoke.
	Speaker string

	// PCM is raw 16-bit little-endian mono audio.
	PCM []byte

	// SampleRate in Hz. 48000 as captured, 16000 after downsampling.
	SampleRate int

	// CapturedAt marks when the speech span began.
	CapturedAt time.Time

	// Duration is the length of the span.
	Duration time.Duration
}

// Transcript pairs recognised text with the provenance of the utterance
// that produced it. The text is immutable; the PCM buffer is not retained.
type Transcript struct {
	// Speaker is the platform user ID of whoever spoke.
	Speaker string

	// Text is the (possibly corrected) recognised speech. Never empty —
	// empty recognition results are dropped before a Transcript is built.
	Text string

	// CapturedAt marks when the source utterance began.
	CapturedAt time.Time

	// Duration is the length of the source utterance.
	Duration time.Duration
}
