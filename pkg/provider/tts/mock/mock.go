// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider in unit tests to feed controlled clips without a live TTS
// backend and to verify what text the pipeline submits.
//
// Example:
//
//	p := &mock.Provider{SynthesizeResult: tts.Clip{PCM: pcm, SampleRate: 24000, Channels: 1}}
//	clip, err := p.Synthesize(ctx, "Hello.")
package mock

import (
	"context"
	"sync"

	"github.com/novakeep/herald/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Text is the sentence passed to Synthesize.
	Text string
}

// ScriptedResult is one entry of a per-call response script.
type ScriptedResult struct {
	Clip tts.Clip
	Err  error
}

// Provider is a mock implementation of tts.Provider.
// Zero values cause Synthesize to return a short silent mono clip so that
// playback-duration logic downstream has something to work with. Set Err
// fields to inject errors, or Script for per-call responses.
type Provider struct {
	mu sync.Mutex

	// NameResult is returned by Name. Defaults to "mock" if empty.
	NameResult string

	// Script, if non-empty, supplies responses consumed one per call in
	// order. When exhausted, SynthesizeResult/SynthesizeErr apply.
	Script []ScriptedResult

	// SynthesizeResult is returned by Synthesize once Script is exhausted.
	// A zero-value clip is replaced by a 20 ms silent mono clip at 24 kHz.
	SynthesizeResult tts.Clip

	// SynthesizeErr, if non-nil, is returned by Synthesize once Script is
	// exhausted.
	SynthesizeErr error

	// SynthesizeCalls records every invocation of Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Name implements tts.Provider.
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NameResult == "" {
		return "mock"
	}
	return p.NameResult
}

// Synthesize records the call and returns the next scripted response, or the
// fallback SynthesizeResult/SynthesizeErr pair.
func (p *Provider) Synthesize(_ context.Context, text string) (tts.Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text})

	if len(p.Script) > 0 {
		next := p.Script[0]
		p.Script = p.Script[1:]
		return next.Clip, next.Err
	}
	if p.SynthesizeErr != nil {
		return tts.Clip{}, p.SynthesizeErr
	}
	if p.SynthesizeResult.PCM == nil {
		// 20 ms of silence at 24 kHz mono.
		return tts.Clip{PCM: make([]byte, 480*2), SampleRate: 24000, Channels: 1}, nil
	}
	return p.SynthesizeResult, nil
}

// Texts returns the synthesised sentences in call order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.SynthesizeCalls))
	for i, c := range p.SynthesizeCalls {
		out[i] = c.Text
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}
