package resilience

import (
	"context"

	"github.com/novakeep/herald/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple synthesis backends. A sentence lost to one backend is retried on
// the next, so a flaky primary costs latency, not silence.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primary.Name(), cfg),
	}
}

// AddFallback registers an additional TTS provider. Fallbacks are tried in
// registration order after the primary.
func (f *TTSFallback) AddFallback(provider tts.Provider) {
	f.group.AddFallback(provider.Name(), provider)
}

// Name identifies the cascade in logs.
func (f *TTSFallback) Name() string { return "cascade" }

// Synthesize converts text through the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) (tts.Clip, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (tts.Clip, error) {
		return p.Synthesize(ctx, text)
	})
}
