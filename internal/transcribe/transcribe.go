// Package transcribe converts finalized utterances into transcripts: WAV
// framing, the STT provider call, and the vocabulary correction pass. The
// PCM buffer is not retained past the provider call.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/novakeep/herald/pkg/audio"
	"github.com/novakeep/herald/pkg/provider/stt"
	"github.com/novakeep/herald/pkg/types"
)

// ErrNoSpeech reports that the provider returned nothing usable. The
// utterance is dropped quietly; it is not a failure.
var ErrNoSpeech = errors.New("no speech recognized")

// Corrector applies vocabulary fixes to recognized text.
type Corrector interface {
	Correct(text string) string
}

// Transcriber runs utterances through STT. Safe for concurrent use when the
// provider and corrector are.
type Transcriber struct {
	stt       stt.Provider
	corrector Corrector
	log       *slog.Logger
}

// New creates a Transcriber. corrector may be nil to skip correction.
func New(provider stt.Provider, corrector Corrector, log *slog.Logger) *Transcriber {
	if log == nil {
		log = slog.Default()
	}
	return &Transcriber{stt: provider, corrector: corrector, log: log}
}

// Transcribe recognizes one utterance. Returns ErrNoSpeech when recognition
// comes back empty or whitespace-only, or the provider's error when the
// whole cascade failed.
func (t *Transcriber) Transcribe(ctx context.Context, u types.Utterance) (types.Transcript, error) {
	wav := audio.EncodeWAV(u.PCM, u.SampleRate, 1)

	text, err := t.stt.Transcribe(ctx, wav)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("transcribing %v of audio: %w", u.Duration, err)
	}

	if t.corrector != nil {
		text = t.corrector.Correct(text)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Transcript{}, ErrNoSpeech
	}

	t.log.Debug("transcribed", "speaker", u.Speaker, "duration", u.Duration, "chars", len(text))
	return types.Transcript{
		Speaker:    u.Speaker,
		Text:       text,
		CapturedAt: u.CapturedAt,
		Duration:   u.Duration,
	}, nil
}
