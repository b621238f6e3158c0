// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider in unit tests to feed controlled transcripts without a live
// STT backend and to verify what audio the pipeline submits.
//
// Example:
//
//	p := &mock.Provider{TranscribeResult: "hello assistant"}
//	text, err := p.Transcribe(ctx, wav)
package mock

import (
	"context"
	"sync"

	"github.com/novakeep/herald/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// WAV is the payload passed to Transcribe.
	WAV []byte
}

// ScriptedResult is one entry of a per-call response script.
type ScriptedResult struct {
	Text string
	Err  error
}

// Provider is a mock implementation of stt.Provider.
// Zero values cause Transcribe to return ("", nil). Set Err fields to inject
// errors, or Script for per-call responses.
type Provider struct {
	mu sync.Mutex

	// NameResult is returned by Name. Defaults to "mock" if empty.
	NameResult string

	// Script, if non-empty, supplies responses consumed one per call in
	// order. When exhausted, TranscribeResult/TranscribeErr apply.
	Script []ScriptedResult

	// TranscribeResult is returned by Transcribe once Script is exhausted.
	TranscribeResult string

	// TranscribeErr, if non-nil, is returned by Transcribe once Script is
	// exhausted.
	TranscribeErr error

	// TranscribeCalls records every invocation of Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Name implements stt.Provider.
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NameResult == "" {
		return "mock"
	}
	return p.NameResult
}

// Transcribe records the call and returns the next scripted response, or the
// fallback TranscribeResult/TranscribeErr pair.
func (p *Provider) Transcribe(_ context.Context, wav []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	payload := make([]byte, len(wav))
	copy(payload, wav)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{WAV: payload})

	if len(p.Script) > 0 {
		next := p.Script[0]
		p.Script = p.Script[1:]
		return next.Text, next.Err
	}
	return p.TranscribeResult, p.TranscribeErr
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}
