// Package speech turns sentences into queued playback segments. It owns the
// text sanitation step between the brain and the TTS provider, the priority
// lane used for acks and confirmations, and the wake chime.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/novakeep/herald/internal/playback"
	"github.com/novakeep/herald/pkg/provider/tts"
)

// Enqueuer accepts segments for serialized playback.
type Enqueuer interface {
	Enqueue(playback.Segment)
}

// Synthesizer converts sentences to audio and enqueues them. Safe for
// concurrent use by any number of tasks.
type Synthesizer struct {
	tts   tts.Provider
	queue Enqueuer
	log   *slog.Logger

	chimeOnce sync.Once
	chime     tts.Clip
}

// New creates a Synthesizer backed by provider, enqueuing into queue.
func New(provider tts.Provider, queue Enqueuer, log *slog.Logger) *Synthesizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synthesizer{tts: provider, queue: queue, log: log}
}

// Speak synthesizes one sentence for taskID and enqueues it on the voice
// lane. Unspeakable sentences (empty or punctuation-only after sanitation)
// are skipped with a nil error. A synthesis failure skips only this
// sentence; the caller's stream continues.
func (s *Synthesizer) Speak(ctx context.Context, taskID int64, text string) error {
	return s.speak(ctx, taskID, text, playback.ClassVoice)
}

// SayPriority synthesizes short operational speech (acks, confirmations,
// briefings) on the priority lane, ahead of pending voice segments.
func (s *Synthesizer) SayPriority(ctx context.Context, text string) error {
	return s.speak(ctx, 0, text, playback.ClassPriority)
}

// Chime enqueues the wake acknowledgment tone on the priority lane. The
// tone is generated locally; no provider call is made.
func (s *Synthesizer) Chime(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.chimeOnce.Do(func() { s.chime = chimeClip() })
	s.queue.Enqueue(playback.Segment{Clip: s.chime, Class: playback.ClassPriority})
}

func (s *Synthesizer) speak(ctx context.Context, taskID int64, text string, class playback.Class) error {
	clean := Sanitize(text)
	if !speakable(clean) {
		return nil
	}

	clip, err := s.tts.Synthesize(ctx, clean)
	if err != nil {
		return fmt.Errorf("synthesizing sentence: %w", err)
	}

	// The task may have been cancelled while synthesis was in flight; a
	// cancelled task must not reach the queue.
	if err := ctx.Err(); err != nil {
		return err
	}

	s.queue.Enqueue(playback.Segment{TaskID: taskID, Text: clean, Clip: clip, Class: class})
	return nil
}

// Sanitize strips characters that trip TTS backends: control characters,
// zero-width runes, and soft hyphens. Whitespace is preserved.
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\u00ad': // soft hyphen
		case r == '\u200b', r == '\u200c', r == '\u200d', r == '\u2060', r == '\ufeff': // zero-width runes
		case unicode.IsControl(r) && !unicode.IsSpace(r):
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// speakable reports whether text still carries anything pronounceable.
func speakable(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// chimeClip builds the two-tone wake acknowledgment: a short rising pair of
// sine tones at 16 kHz mono.
func chimeClip() tts.Clip {
	const (
		rate = 16000
		amp  = 0.25
	)
	tone := func(freq float64, dur time.Duration) []int16 {
		n := int(float64(rate) * dur.Seconds())
		out := make([]int16, n)
		for i := range out {
			// Linear fade at both ends keeps the tone from clicking.
			env := 1.0
			if ramp := n / 8; ramp > 0 {
				if i < ramp {
					env = float64(i) / float64(ramp)
				} else if n-i < ramp {
					env = float64(n-i) / float64(ramp)
				}
			}
			v := amp * env * math.Sin(2*math.Pi*freq*float64(i)/rate)
			out[i] = int16(v * math.MaxInt16)
		}
		return out
	}

	samples := tone(880, 100*time.Millisecond)
	samples = append(samples, make([]int16, rate/50)...) // 20 ms gap
	samples = append(samples, tone(1174.66, 130*time.Millisecond)...)

	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[2*i] = byte(s)
		pcm[2*i+1] = byte(s >> 8)
	}
	return tts.Clip{PCM: pcm, SampleRate: rate, Channels: 1}
}
