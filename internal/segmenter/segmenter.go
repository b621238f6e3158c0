// Package segmenter cuts per-speaker audio streams into silence-bounded
// utterances. It accumulates decoded PCM per speaker, finalizes a buffer
// once the speaker has been quiet long enough, and filters out spans too
// short or too faint to transcribe. It also owns barge-in detection: a
// speaker talking over active playback long enough interrupts it.
package segmenter

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/novakeep/herald/pkg/audio"
	"github.com/novakeep/herald/pkg/types"
)

const (
	// DefaultSilenceWindow is how long a speaker must stay quiet before
	// their buffer is finalized into an utterance.
	DefaultSilenceWindow = 1000 * time.Millisecond

	// DefaultMinDuration discards blips shorter than this.
	DefaultMinDuration = 300 * time.Millisecond

	// DefaultRMSFloor discards spans whose RMS amplitude (±32768 scale)
	// stays below this. Keyboard noise and breath hits land here.
	DefaultRMSFloor = 500

	// DefaultBargeInDelay is how long a speaker must keep talking over
	// active playback before the playback is interrupted.
	DefaultBargeInDelay = 600 * time.Millisecond
)

// PlaybackProbe is the slice of the playback queue the segmenter needs for
// barge-in decisions.
type PlaybackProbe interface {
	Playing() bool
	BargeIn()
}

// EmitFunc receives each finalized utterance. It is called from timer
// goroutines and must not block for long.
type EmitFunc func(types.Utterance)

// Segmenter accumulates frames into utterances. Safe for concurrent use.
type Segmenter struct {
	emit     EmitFunc
	playback PlaybackProbe
	log      *slog.Logger

	silenceWindow time.Duration
	minDuration   time.Duration
	rmsFloor      float64
	bargeInDelay  time.Duration
	downsample    bool
	allowed       map[string]struct{} // nil allows everyone

	mu       sync.Mutex
	speakers map[string]*speakerState
}

type speakerState struct {
	buf        []byte
	sampleRate int
	startedAt  time.Time
	speaking   bool

	silenceTimer *time.Timer
	bargeTimer   *time.Timer
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithSilenceWindow sets the quiet interval that finalizes an utterance.
func WithSilenceWindow(d time.Duration) Option {
	return func(s *Segmenter) {
		if d > 0 {
			s.silenceWindow = d
		}
	}
}

// WithMinDuration sets the shortest span worth transcribing.
func WithMinDuration(d time.Duration) Option {
	return func(s *Segmenter) {
		if d > 0 {
			s.minDuration = d
		}
	}
}

// WithRMSFloor sets the amplitude floor below which spans are discarded.
func WithRMSFloor(v float64) Option {
	return func(s *Segmenter) {
		if v > 0 {
			s.rmsFloor = v
		}
	}
}

// WithBargeInDelay sets how long overlapping speech runs before playback is
// interrupted.
func WithBargeInDelay(d time.Duration) Option {
	return func(s *Segmenter) {
		if d > 0 {
			s.bargeInDelay = d
		}
	}
}

// WithDownsample enables the 3:1 48 kHz → 16 kHz block-average downsample on
// emitted utterances.
func WithDownsample(enabled bool) Option {
	return func(s *Segmenter) { s.downsample = enabled }
}

// WithAllowedSpeakers restricts capture to the given platform user IDs.
// Empty or nil allows everyone.
func WithAllowedSpeakers(ids []string) Option {
	return func(s *Segmenter) {
		if len(ids) == 0 {
			return
		}
		s.allowed = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if id != "" {
				s.allowed[id] = struct{}{}
			}
		}
	}
}

// WithLogger sets the segmenter's logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Segmenter) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Segmenter that calls emit for every finalized utterance.
// playback may be nil to disable barge-in.
func New(emit EmitFunc, playback PlaybackProbe, opts ...Option) *Segmenter {
	s := &Segmenter{
		emit:          emit,
		playback:      playback,
		log:           slog.Default(),
		silenceWindow: DefaultSilenceWindow,
		minDuration:   DefaultMinDuration,
		rmsFloor:      DefaultRMSFloor,
		bargeInDelay:  DefaultBargeInDelay,
		speakers:      make(map[string]*speakerState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleFrame accumulates one decoded frame. Frames from speakers outside
// the allow-list are dropped. Stereo frames are folded to mono.
func (s *Segmenter) HandleFrame(f audio.SpeakerFrame) {
	if !s.allowedSpeaker(f.Speaker) {
		return
	}
	pcm := f.Frame.Data
	if len(pcm) == 0 {
		return
	}
	if f.Frame.Channels == 2 {
		pcm = audio.StereoToMono(pcm)
	}

	s.mu.Lock()
	st := s.speakers[f.Speaker]
	if st == nil {
		st = &speakerState{}
		s.speakers[f.Speaker] = st
	}
	if len(st.buf) == 0 {
		st.startedAt = time.Now()
		st.sampleRate = f.Frame.SampleRate
	}
	st.buf = append(st.buf, pcm...)
	s.armSilenceTimer(f.Speaker, st)
	s.mu.Unlock()
}

// HandleSpeaking reacts to platform speaking-start/-end signals for barge-in
// timing. Buffer lifecycle is frame-driven; this only manages the barge-in
// timer.
func (s *Segmenter) HandleSpeaking(speaker string, speaking bool) {
	if !s.allowedSpeaker(speaker) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.speakers[speaker]
	if st == nil {
		st = &speakerState{}
		s.speakers[speaker] = st
	}
	st.speaking = speaking

	if speaking {
		if s.playback != nil && s.playback.Playing() && st.bargeTimer == nil {
			st.bargeTimer = time.AfterFunc(s.bargeInDelay, func() {
				s.fireBargeIn(speaker)
			})
		}
		return
	}

	// Speech ended before the barge-in delay elapsed: no interruption.
	if st.bargeTimer != nil {
		st.bargeTimer.Stop()
		st.bargeTimer = nil
	}
}

// Reset drops all buffered audio and stops every timer. Called on voice
// reconnect so stale state from the old session cannot fire.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.speakers {
		if st.silenceTimer != nil {
			st.silenceTimer.Stop()
		}
		if st.bargeTimer != nil {
			st.bargeTimer.Stop()
		}
	}
	s.speakers = make(map[string]*speakerState)
}

func (s *Segmenter) allowedSpeaker(id string) bool {
	if s.allowed == nil {
		return true
	}
	_, ok := s.allowed[id]
	return ok
}

// armSilenceTimer (re)starts the finalize timer for speaker. Caller holds s.mu.
func (s *Segmenter) armSilenceTimer(speaker string, st *speakerState) {
	if st.silenceTimer != nil {
		st.silenceTimer.Stop()
	}
	st.silenceTimer = time.AfterFunc(s.silenceWindow, func() {
		s.finalize(speaker)
	})
}

func (s *Segmenter) fireBargeIn(speaker string) {
	s.mu.Lock()
	st := s.speakers[speaker]
	stillSpeaking := st != nil && st.speaking
	if st != nil {
		st.bargeTimer = nil
	}
	s.mu.Unlock()

	if stillSpeaking && s.playback != nil && s.playback.Playing() {
		s.log.Debug("barge-in", "speaker", speaker)
		s.playback.BargeIn()
	}
}

// finalize closes speaker's buffer and emits it as an utterance if it passes
// the duration and amplitude filters.
func (s *Segmenter) finalize(speaker string) {
	s.mu.Lock()
	st := s.speakers[speaker]
	if st == nil || len(st.buf) == 0 {
		s.mu.Unlock()
		return
	}
	buf := st.buf
	rate := st.sampleRate
	startedAt := st.startedAt
	st.buf = nil
	st.silenceTimer = nil
	s.mu.Unlock()

	if rate <= 0 {
		rate = 48000
	}
	samples := len(buf) / 2
	duration := time.Duration(samples) * time.Second / time.Duration(rate)

	if duration < s.minDuration {
		s.log.Debug("utterance too short", "speaker", speaker, "duration", duration)
		return
	}
	if rms := pcmRMS(buf); rms < s.rmsFloor {
		s.log.Debug("utterance below amplitude floor", "speaker", speaker, "rms", rms)
		return
	}

	if s.downsample && rate == 48000 {
		buf = audio.DownsampleBy3(buf)
		rate = 16000
	}

	s.emit(types.Utterance{
		Speaker:    speaker,
		PCM:        buf,
		SampleRate: rate,
		CapturedAt: startedAt,
		Duration:   duration,
	})
}

// pcmRMS computes the root-mean-square amplitude of little-endian int16 PCM.
func pcmRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
