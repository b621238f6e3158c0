// Package anyllm provides a brain transport backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and more.
//
// Usage:
//
//	p, err := anyllm.New("openai", "gpt-4o", anyllmlib.WithAPIKey("sk-..."))
//	p, err := anyllm.NewOllama("llama3.1")
package anyllm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/novakeep/herald/pkg/provider/llm"
)

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

// Provider implements llm.Provider by wrapping github.com/mozilla-ai/any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// backends maps a backend name to its any-llm-go constructor.
var backends = map[string]func(...anyllmlib.Option) (anyllmlib.Provider, error){
	"openai":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anyllmoai.New(o...) },
	"anthropic": func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anthropic.New(o...) },
	"gemini":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return gemini.New(o...) },
	"ollama":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return ollama.New(o...) },
	"deepseek":  func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return deepseek.New(o...) },
	"mistral":   func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return mistral.New(o...) },
	"groq":      func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return groq.New(o...) },
	"llamacpp":  func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamacpp.New(o...) },
	"llamafile": func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamafile.New(o...) },
}

// Names returns the supported backend names, for error messages and the
// provider registry.
func Names() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a Provider for the named backend and model. When no API key
// option is given, any-llm-go falls back to that backend's conventional
// environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, and so on).
func New(providerName string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	construct, ok := backends[strings.ToLower(providerName)]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported provider %q; supported: %s",
			providerName, strings.Join(Names(), ", "))
	}
	backend, err := construct(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	return &Provider{backend: backend, model: model}, nil
}

// NewOpenAI is shorthand for New("openai", ...).
func NewOpenAI(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("openai", model, opts...)
}

// NewAnthropic is shorthand for New("anthropic", ...).
func NewAnthropic(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("anthropic", model, opts...)
}

// NewOllama is shorthand for New("ollama", ...). Without a base URL option
// it targets the local Ollama default, http://localhost:11434.
func NewOllama(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("ollama", model, opts...)
}

// StreamCompletion implements llm.Provider. Backend errors surface as a
// final chunk with FinishReason "error"; any-llm-go delivers them on a side
// channel that closes after the chunk channel, so the error read comes last.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	backendChunks, backendErrs := p.backend.CompletionStream(ctx, p.completionParams(req))

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)

		for chunk := range backendChunks {
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			select {
			case ch <- llm.Chunk{Text: choice.Delta.Content, FinishReason: choice.FinishReason}:
			case <-ctx.Done():
				return
			}
		}

		if err := <-backendErrs; err != nil {
			select {
			case ch <- llm.Chunk{FinishReason: "error", Text: err.Error()}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

// completionParams maps a Request onto any-llm-go's parameter struct.
func (p *Provider) completionParams(req llm.Request) anyllmlib.CompletionParams {
	params := anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: make([]anyllmlib.Message, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		params.Messages = append(params.Messages, anyllmlib.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}
