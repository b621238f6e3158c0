// Package llm defines the Provider interface for chat-completion backends.
//
// A provider wraps an OpenAI-compatible chat completions endpoint (the
// assistant's "brain") and exposes a single streaming operation. The brain
// owns all reasoning, tool use, and personality; this layer only moves
// messages in and streamed text out.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/novakeep/herald/pkg/types"
)

// Request describes one completion call.
type Request struct {
	// Messages is the full prompt: conversation history followed by the
	// current user message.
	Messages []types.Message

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// User is an opaque end-user identifier forwarded to the backend for
	// session affinity and abuse attribution.
	User string
}

// Chunk is one streamed fragment of a completion.
type Chunk struct {
	// Text is the content delta. May be empty on control chunks.
	Text string

	// FinishReason is non-empty on the final chunk ("stop", "length") or
	// "error" when the stream failed; Text then holds the error message.
	FinishReason string
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// StreamCompletion starts a streaming completion. The returned channel
	// emits chunks as they arrive and is closed when the stream ends.
	//
	// Transport failures during the stream are reported in-band as a chunk
	// with FinishReason "error". Returns a non-nil error only if the stream
	// cannot be started.
	StreamCompletion(ctx context.Context, req Request) (<-chan Chunk, error)
}
