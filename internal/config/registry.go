package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/novakeep/herald/pkg/audio"
	"github.com/novakeep/herald/pkg/provider/llm"
	"github.com/novakeep/herald/pkg/provider/stt"
	"github.com/novakeep/herald/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// pipeline stage. Factories receive the full config so they can pick out
// whichever credentials and endpoints they need. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	llm   map[string]func(*Config) (llm.Provider, error)
	stt   map[string]func(*Config) (stt.Provider, error)
	tts   map[string]func(*Config) (tts.Provider, error)
	audio map[string]func(*Config) (audio.Platform, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:   make(map[string]func(*Config) (llm.Provider, error)),
		stt:   make(map[string]func(*Config) (stt.Provider, error)),
		tts:   make(map[string]func(*Config) (tts.Provider, error)),
		audio: make(map[string]func(*Config) (audio.Platform, error)),
	}
}

// RegisterLLM registers a brain transport factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(*Config) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(*Config) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(*Config) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterAudio registers an audio platform factory under name.
func (r *Registry) RegisterAudio(name string, factory func(*Config) (audio.Platform, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio[name] = factory
}

// CreateLLM instantiates the brain transport registered under name.
// Returns [ErrProviderNotRegistered] if no factory has been registered.
func (r *Registry) CreateLLM(name string, cfg *Config) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, name)
	}
	return factory(cfg)
}

// CreateSTT instantiates the STT provider registered under name.
func (r *Registry) CreateSTT(name string, cfg *Config) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, name)
	}
	return factory(cfg)
}

// CreateTTS instantiates the TTS provider registered under name.
func (r *Registry) CreateTTS(name string, cfg *Config) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, name)
	}
	return factory(cfg)
}

// CreateAudio instantiates the audio platform registered under name.
func (r *Registry) CreateAudio(name string, cfg *Config) (audio.Platform, error) {
	r.mu.RLock()
	factory, ok := r.audio[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio/%q", ErrProviderNotRegistered, name)
	}
	return factory(cfg)
}
