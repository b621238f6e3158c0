// Package deepgram provides a Deepgram-backed STT provider using the
// prerecorded transcription REST API. It implements the stt.Provider
// interface.
//
// Each call to Transcribe posts one complete WAV utterance to /v1/listen and
// extracts the top alternative transcript from the response. Utterances are
// short (a few seconds of speech), so the prerecorded endpoint gives better
// accuracy than a streaming session with no meaningful latency cost.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/novakeep/herald/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

const (
	defaultBaseURL  = "https://api.deepgram.com"
	listenEndpoint  = "/v1/listen"
	defaultModel    = "nova-2"
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-2", "nova-3").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithBaseURL overrides the API base URL, for self-hosted Deepgram
// deployments or tests.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements stt.Provider backed by the Deepgram prerecorded API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		model:    defaultModel,
		language: defaultLanguage,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "deepgram" }

// Transcribe implements stt.Provider. It posts the WAV utterance to the
// listen endpoint and returns the top alternative transcript.
func (p *Provider) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", errors.New("deepgram: empty WAV payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.listenURL(), bytes.NewReader(wav))
	if err != nil {
		return "", fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram: POST %s: %w", listenEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("deepgram: POST %s returned status %d: %s",
			listenEndpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("deepgram: read response: %w", err)
	}

	text, err := parseListenResponse(data)
	if err != nil {
		return "", err
	}
	return text, nil
}

// listenURL constructs the prerecorded endpoint URL with query parameters.
func (p *Provider) listenURL() string {
	q := url.Values{}
	q.Set("model", p.model)
	q.Set("language", p.language)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	return p.baseURL + listenEndpoint + "?" + q.Encode()
}

// listenResponse is the JSON structure returned by the prerecorded API.
type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// parseListenResponse extracts the top alternative transcript from a raw
// prerecorded API response body. A response with no alternatives yields an
// empty transcript, not an error: Deepgram heard nothing intelligible.
func parseListenResponse(data []byte) (string, error) {
	var resp listenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("deepgram: decode response: %w", err)
	}
	if len(resp.Results.Channels) == 0 {
		return "", nil
	}
	alts := resp.Results.Channels[0].Alternatives
	if len(alts) == 0 {
		return "", nil
	}
	return strings.TrimSpace(alts[0].Transcript), nil
}
