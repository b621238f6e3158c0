package speech_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/novakeep/herald/internal/playback"
	"github.com/novakeep/herald/internal/speech"
	"github.com/novakeep/herald/pkg/provider/tts"
	"github.com/novakeep/herald/pkg/provider/tts/mock"
)

type segmentRecorder struct {
	mu   sync.Mutex
	segs []playback.Segment
}

func (r *segmentRecorder) Enqueue(seg playback.Segment) {
	r.mu.Lock()
	r.segs = append(r.segs, seg)
	r.mu.Unlock()
}

func (r *segmentRecorder) all() []playback.Segment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]playback.Segment, len(r.segs))
	copy(out, r.segs)
	return out
}

func TestSpeakEnqueuesVoiceSegment(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{SynthesizeResult: tts.Clip{PCM: make([]byte, 320), SampleRate: 16000, Channels: 1}}
	rec := &segmentRecorder{}
	s := speech.New(p, rec, nil)

	if err := s.Speak(context.Background(), 7, "Hello there."); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}

	segs := rec.all()
	if len(segs) != 1 {
		t.Fatalf("segments = %d, want 1", len(segs))
	}
	if segs[0].TaskID != 7 || segs[0].Class != playback.ClassVoice {
		t.Errorf("segment = %+v, want task 7 on the voice lane", segs[0])
	}
}

func TestSayPriorityUsesPriorityLane(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{SynthesizeResult: tts.Clip{PCM: make([]byte, 320), SampleRate: 16000, Channels: 1}}
	rec := &segmentRecorder{}
	s := speech.New(p, rec, nil)

	if err := s.SayPriority(context.Background(), "On it."); err != nil {
		t.Fatalf("SayPriority() error = %v", err)
	}
	segs := rec.all()
	if len(segs) != 1 || segs[0].Class != playback.ClassPriority {
		t.Errorf("segments = %+v, want one priority segment", segs)
	}
}

func TestSpeakSkipsUnspeakableText(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{}
	rec := &segmentRecorder{}
	s := speech.New(p, rec, nil)

	for _, text := range []string{"", "...", "?!", "​­"} {
		if err := s.Speak(context.Background(), 1, text); err != nil {
			t.Errorf("Speak(%q) error = %v, want nil skip", text, err)
		}
	}
	if n := len(p.SynthesizeCalls); n != 0 {
		t.Errorf("Synthesize calls = %d for unspeakable input, want 0", n)
	}
	if n := len(rec.all()); n != 0 {
		t.Errorf("segments = %d for unspeakable input, want 0", n)
	}
}

func TestSpeakSanitizesBeforeSynthesis(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{SynthesizeResult: tts.Clip{PCM: make([]byte, 2), SampleRate: 16000, Channels: 1}}
	rec := &segmentRecorder{}
	s := speech.New(p, rec, nil)

	if err := s.Speak(context.Background(), 1, "bon­jour​ world\x07"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if got, want := p.SynthesizeCalls[0].Text, "bonjour world"; got != want {
		t.Errorf("synthesized text = %q, want %q", got, want)
	}
}

func TestSpeakSynthesisFailureReturnsError(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{SynthesizeErr: errors.New("tts down")}
	rec := &segmentRecorder{}
	s := speech.New(p, rec, nil)

	if err := s.Speak(context.Background(), 1, "Hello."); err == nil {
		t.Fatal("Speak() error = nil, want synthesis failure")
	}
	if n := len(rec.all()); n != 0 {
		t.Errorf("segments = %d after synthesis failure, want 0", n)
	}
}

func TestSpeakDropsSegmentWhenCancelledDuringSynthesis(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &mock.Provider{SynthesizeResult: tts.Clip{PCM: make([]byte, 2), SampleRate: 16000, Channels: 1}}
	rec := &segmentRecorder{}
	s := speech.New(p, rec, nil)

	if err := s.Speak(ctx, 1, "Hello."); !errors.Is(err, context.Canceled) {
		t.Fatalf("Speak() error = %v, want context.Canceled", err)
	}
	if n := len(rec.all()); n != 0 {
		t.Errorf("segments = %d from a cancelled task, want 0", n)
	}
}

func TestChimeEnqueuesPriorityClip(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{}
	rec := &segmentRecorder{}
	s := speech.New(p, rec, nil)

	s.Chime(context.Background())
	segs := rec.all()
	if len(segs) != 1 {
		t.Fatalf("segments = %d, want 1", len(segs))
	}
	if segs[0].Class != playback.ClassPriority {
		t.Error("chime not on the priority lane")
	}
	if segs[0].Clip.Duration() <= 0 {
		t.Error("chime clip is empty")
	}
	if n := len(p.SynthesizeCalls); n != 0 {
		t.Errorf("chime called the TTS provider %d times", n)
	}
}
