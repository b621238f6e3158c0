package resilience

import (
	"context"

	"github.com/novakeep/herald/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] with failover across completion
// backends. Failover applies to stream startup only: once a stream is open,
// mid-stream failures arrive in-band as error chunks and are the caller's to
// handle — replaying a half-delivered completion on another backend would
// speak the first half twice.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, name string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primary, name, cfg),
	}
}

// AddFallback registers an additional completion provider. Fallbacks are
// tried in registration order after the primary.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// StreamCompletion opens a completion stream on the first backend that
// accepts the request.
func (f *LLMFallback) StreamCompletion(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (<-chan llm.Chunk, error) {
		return p.StreamCompletion(ctx, req)
	})
}
