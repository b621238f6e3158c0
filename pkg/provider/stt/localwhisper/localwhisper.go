// Package localwhisper provides an STT provider backed by a local Whisper
// sidecar process exposing a small HTTP API. It implements the stt.Provider
// interface.
//
// The sidecar contract:
//
//	POST /transcribe   body: complete WAV bytes    -> {"text": "...", "time_ms": 412}
//	GET  /health                                   -> {"ok": true}
//
// The sidecar keeps the Whisper model resident between requests, so
// per-utterance latency is dominated by inference rather than model load.
// Running it out of process keeps cgo and model weights out of this binary.
package localwhisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is where the sidecar listens when started with its
	// default configuration.
	DefaultBaseURL = "http://127.0.0.1:8787"

	transcribeEndpoint = "/transcribe"
	healthEndpoint     = "/health"
	defaultTimeout     = 60 * time.Second
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Local inference on long
// utterances can be slow, so the default is generous (60 s).
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements stt.Provider backed by a local Whisper sidecar.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new Provider targeting the sidecar at baseURL.
// An empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "local-whisper" }

// transcribeResponse is the JSON body returned by POST /transcribe.
type transcribeResponse struct {
	Text   string `json:"text"`
	TimeMS int64  `json:"time_ms"`
}

// Transcribe implements stt.Provider. It posts the WAV utterance to the
// sidecar and returns the recognised text.
func (p *Provider) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", errors.New("localwhisper: empty WAV payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+transcribeEndpoint, bytes.NewReader(wav))
	if err != nil {
		return "", fmt.Errorf("localwhisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("localwhisper: POST %s: %w", transcribeEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("localwhisper: POST %s returned status %d: %s",
			transcribeEndpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("localwhisper: decode response: %w", err)
	}
	return strings.TrimSpace(tr.Text), nil
}

// healthResponse is the JSON body returned by GET /health.
type healthResponse struct {
	OK bool `json:"ok"`
}

// Health reports whether the sidecar is up and has its model loaded.
// It is used by the readiness probe.
func (p *Provider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+healthEndpoint, nil)
	if err != nil {
		return fmt.Errorf("localwhisper: create health request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("localwhisper: GET %s: %w", healthEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("localwhisper: GET %s returned status %d", healthEndpoint, resp.StatusCode)
	}

	var hr healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return fmt.Errorf("localwhisper: decode health response: %w", err)
	}
	if !hr.OK {
		return errors.New("localwhisper: sidecar reports not ready")
	}
	return nil
}
