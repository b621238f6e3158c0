// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription service (e.g., the OpenAI audio API,
// Deepgram, or a local Whisper sidecar) and exposes a uniform one-shot
// interface: a complete WAV-encoded utterance in, a transcript out. Utterances
// arrive pre-segmented, so batch transcription keeps provider implementations
// small and lets backends be swapped or cascaded freely.
//
// Implementations must be safe for concurrent use; multiple utterances may be
// transcribed in parallel.
package stt

import "context"

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Name returns a short, stable identifier for the backend
	// (e.g., "openai", "deepgram", "local-whisper"). It is used in logs
	// and fallback-chain reporting.
	Name() string

	// Transcribe converts a complete WAV-encoded utterance into text.
	// The returned string may be empty when the provider heard nothing
	// intelligible; callers treat that as a non-error drop.
	//
	// Returns an error if the provider cannot be reached, rejects the
	// request, or ctx is cancelled.
	Transcribe(ctx context.Context, wav []byte) (string, error)
}
