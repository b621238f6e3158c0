// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// streaming WebSocket API. It implements the tts.Provider interface.
//
// Each Synthesize call opens a stream-input socket, sends the sentence, and
// collects the base64 PCM chunks into a single clip. The socket-per-sentence
// model matches ElevenLabs' own recommendation for short inputs and avoids
// keeping idle sockets alive between utterances.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/novakeep/herald/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultBaseURL   = "wss://api.elevenlabs.io"
	streamInputPath  = "/v1/text-to-speech/%s/stream-input?model_id=%s"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "pcm_16000",
// "pcm_24000"). Only raw PCM formats are supported.
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithBaseURL overrides the API base URL, for tests or proxies.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	voiceID      string
	model        string
	outputFormat string
	baseURL      string
}

// New creates a new ElevenLabs Provider for the given voice.
// apiKey and voiceID must be non-empty.
func New(apiKey, voiceID string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voiceID must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		voiceID:      voiceID,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		baseURL:      defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}
	if _, err := rateFromFormat(p.outputFormat); err != nil {
		return nil, err
	}
	return p, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "elevenlabs" }

// ---- WebSocket message types ----

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// boiMessage is the initial "begin of input" handshake payload.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	OutputFormat  string         `json:"output_format,omitempty"`
}

// textMessage is the JSON payload for a text fragment. An empty Text value
// flushes the stream.
type textMessage struct {
	Text string `json:"text"`
}

// audioResponse is the JSON message received over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"` // error or info
}

// Synthesize implements tts.Provider. It opens a stream-input socket for the
// configured voice, sends text, and returns the concatenated PCM clip.
func (p *Provider) Synthesize(ctx context.Context, text string) (tts.Clip, error) {
	if text == "" {
		return tts.Clip{}, errors.New("elevenlabs: text must not be empty")
	}

	rate, err := rateFromFormat(p.outputFormat)
	if err != nil {
		return tts.Clip{}, err
	}

	wsURL := p.baseURL + fmt.Sprintf(streamInputPath, p.voiceID, p.model)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// BOI handshake: authenticate and configure the stream.
	boi := boiMessage{
		Text: " ", // ElevenLabs requires a non-empty first text value
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
		XiAPIKey:     p.apiKey,
		OutputFormat: p.outputFormat,
	}
	if err := writeJSON(ctx, conn, boi); err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	if err := writeJSON(ctx, conn, textMessage{Text: text}); err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: send text: %w", err)
	}

	// Empty text flushes the stream and asks for isFinal.
	if err := writeJSON(ctx, conn, textMessage{Text: ""}); err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: send flush: %w", err)
	}

	var pcm []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			// A normal close after audio arrived means the stream is done.
			if len(pcm) > 0 && websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return tts.Clip{}, fmt.Errorf("elevenlabs: read: %w", ctxErr)
			}
			return tts.Clip{}, fmt.Errorf("elevenlabs: read: %w", err)
		}

		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return tts.Clip{}, fmt.Errorf("elevenlabs: decode audio chunk: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if resp.IsFinal {
			break
		}
	}

	if len(pcm) == 0 {
		return tts.Clip{}, errors.New("elevenlabs: stream ended without audio")
	}
	return tts.Clip{PCM: pcm, SampleRate: rate, Channels: 1}, nil
}

// writeJSON marshals v and writes it as a text frame.
func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// rateFromFormat extracts the sample rate from a raw PCM output format name
// such as "pcm_16000".
func rateFromFormat(format string) (int, error) {
	rest, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("elevenlabs: unsupported output format %q (want pcm_<rate>)", format)
	}
	rate, err := strconv.Atoi(rest)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("elevenlabs: invalid output format %q", format)
	}
	return rate, nil
}
