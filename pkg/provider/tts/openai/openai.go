// Package openai provides a TTS provider backed by the OpenAI speech API.
// It implements the tts.Provider interface.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/novakeep/herald/pkg/audio"
	"github.com/novakeep/herald/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultModel = "tts-1"
	defaultVoice = "alloy"
)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
	model   string
	voice   string
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

// WithModel sets the speech model (e.g., "tts-1", "tts-1-hd",
// "gpt-4o-mini-tts").
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithVoice sets the voice name (e.g., "alloy", "nova", "onyx").
func WithVoice(voice string) Option {
	return func(c *config) {
		c.voice = voice
	}
}

// Provider implements tts.Provider using the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  string
	voice  string
}

// New constructs a new OpenAI TTS Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel, voice: defaultVoice}
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
	return &Provider{client: client, model: cfg.model, voice: cfg.voice}, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "openai" }

// Synthesize implements tts.Provider. It requests WAV output so the clip's
// sample rate comes from the container rather than an assumed constant.
func (p *Provider) Synthesize(ctx context.Context, text string) (tts.Clip, error) {
	if text == "" {
		return tts.Clip{}, fmt.Errorf("openai: text must not be empty")
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		Input:          text,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatWAV,
	})
	if err != nil {
		return tts.Clip{}, fmt.Errorf("openai: synthesize: %w", err)
	}
	defer resp.Body.Close()

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("openai: read speech response: %w", err)
	}

	pcm, info, err := audio.DecodeWAV(wav)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("openai: decode speech response: %w", err)
	}
	return tts.Clip{
		PCM:        pcm,
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
	}, nil
}
