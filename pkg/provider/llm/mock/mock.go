// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to feed controlled completion streams without a
// live brain endpoint and to verify what requests the pipeline sends. All
// fields are safe to set before calling any method; mutating them during a
// concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{StreamChunks: []llm.Chunk{{Text: "Hello. "}}}
//	ch, err := p.StreamCompletion(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/novakeep/herald/pkg/provider/llm"
)

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

// StreamCall records a single invocation of StreamCompletion.
type StreamCall struct {
	// Ctx is the context passed to StreamCompletion.
	Ctx context.Context
	// Req is the Request passed to StreamCompletion.
	Req llm.Request
}

// Provider is a mock implementation of llm.Provider.
// Zero values cause StreamCompletion to return a channel that closes
// immediately. Set StreamErr to make the stream fail to start.
type Provider struct {
	mu sync.Mutex

	// StreamChunks is the sequence of Chunk values emitted on the channel
	// returned by StreamCompletion. All chunks are sent before the channel
	// is closed.
	StreamChunks []llm.Chunk

	// StreamErr, if non-nil, is returned as the error from StreamCompletion
	// instead of starting a channel.
	StreamErr error

	// Hold, if non-nil, blocks the emitting goroutine before each chunk is
	// sent until a value is received or the context ends. Lets tests control
	// stream pacing and exercise mid-stream cancellation.
	Hold chan struct{}

	// StreamCalls records every invocation of StreamCompletion in order.
	StreamCalls []StreamCall
}

// StreamCompletion records the call and returns a channel that emits
// StreamChunks. If StreamErr is set, it returns nil, StreamErr without
// opening a channel.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.StreamCalls = append(p.StreamCalls, StreamCall{Ctx: ctx, Req: req})
	if p.StreamErr != nil {
		err := p.StreamErr
		p.mu.Unlock()
		return nil, err
	}
	chunks := make([]llm.Chunk, len(p.StreamChunks))
	copy(chunks, p.StreamChunks)
	hold := p.Hold
	p.mu.Unlock()

	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			if hold != nil {
				select {
				case <-ctx.Done():
					return
				case <-hold:
				}
			}
			select {
			case <-ctx.Done():
				return
			case ch <- c:
			}
		}
	}()
	return ch, nil
}

// Calls returns a copy of the recorded StreamCompletion invocations.
func (p *Provider) Calls() []StreamCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StreamCall, len(p.StreamCalls))
	copy(out, p.StreamCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StreamCalls = nil
}
