// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., the OpenAI audio
// API or ElevenLabs) and presents a uniform one-shot interface: a sentence
// of text in, a PCM clip out. The pipeline already streams at sentence
// granularity, so per-sentence synthesis keeps latency low without the
// complexity of a socket per utterance.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"time"
)

// Clip is a synthesised audio segment: raw little-endian int16 PCM plus the
// format it was generated in. Playback converts to the transport format.
type Clip struct {
	// PCM holds interleaved little-endian int16 samples.
	PCM []byte

	// SampleRate is the clip's sample rate in Hz (e.g., 16000, 24000).
	SampleRate int

	// Channels is the channel count. 1 = mono for every current backend.
	Channels int
}

// Duration returns the clip's play time, or zero for an empty or malformed clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 || len(c.PCM) == 0 {
		return 0
	}
	samples := len(c.PCM) / 2 / c.Channels
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Name returns a short, stable identifier for the backend
	// (e.g., "openai", "elevenlabs"). It is used in logs and
	// fallback-chain reporting.
	Name() string

	// Synthesize converts one sentence of text into a PCM clip.
	//
	// Returns an error if the provider cannot be reached, rejects the
	// request, or ctx is cancelled. Implementations must not return an
	// empty clip with a nil error for non-empty input.
	Synthesize(ctx context.Context, text string) (Clip, error)
}
