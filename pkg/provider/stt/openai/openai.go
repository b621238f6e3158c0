// Package openai provides an STT provider backed by the OpenAI audio
// transcription API. It implements the stt.Provider interface.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/novakeep/herald/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

const defaultModel = "whisper-1"

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
	model   string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithModel sets the transcription model (e.g., "whisper-1",
// "gpt-4o-mini-transcribe").
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// Provider implements stt.Provider using the OpenAI audio API.
type Provider struct {
	client oai.Client
	model  string
}

// New constructs a new OpenAI STT Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: cfg.model}, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "openai" }

// Transcribe implements stt.Provider. It uploads the WAV utterance to the
// transcriptions endpoint and returns the recognised text.
func (p *Provider) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", fmt.Errorf("openai: empty WAV payload")
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	})
	if err != nil {
		return "", fmt.Errorf("openai: transcribe: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}
