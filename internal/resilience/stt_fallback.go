package resilience

import (
	"context"

	"github.com/novakeep/herald/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across
// multiple STT backends. Each backend has its own circuit breaker; the first
// healthy backend's transcript wins.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primary.Name(), cfg),
	}
}

// AddFallback registers an additional STT provider. Fallbacks are tried in
// registration order after the primary.
func (f *STTFallback) AddFallback(provider stt.Provider) {
	f.group.AddFallback(provider.Name(), provider)
}

// Name identifies the cascade in logs.
func (f *STTFallback) Name() string { return "cascade" }

// Transcribe runs the WAV payload through the first healthy backend.
func (f *STTFallback) Transcribe(ctx context.Context, wav []byte) (string, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (string, error) {
		return p.Transcribe(ctx, wav)
	})
}
