package transcribe_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/novakeep/herald/internal/transcribe"
	"github.com/novakeep/herald/pkg/audio"
	"github.com/novakeep/herald/pkg/provider/stt/mock"
	"github.com/novakeep/herald/pkg/types"
)

type upperCorrector struct{}

func (upperCorrector) Correct(text string) string { return strings.ToUpper(text) }

func testUtterance() types.Utterance {
	return types.Utterance{
		Speaker:    "user-1",
		PCM:        make([]byte, 16000), // 500ms of silence at 16kHz
		SampleRate: 16000,
		CapturedAt: time.Now(),
		Duration:   500 * time.Millisecond,
	}
}

func TestTranscribeBuildsWAVAndReturnsTranscript(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{TranscribeResult: "hello there"}
	tr := transcribe.New(p, nil, nil)

	got, err := tr.Transcribe(context.Background(), testUtterance())
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got.Text != "hello there" || got.Speaker != "user-1" {
		t.Errorf("transcript = %+v", got)
	}

	if len(p.TranscribeCalls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(p.TranscribeCalls))
	}
	pcm, info, err := audio.DecodeWAV(p.TranscribeCalls[0].WAV)
	if err != nil {
		t.Fatalf("provider received invalid WAV: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 {
		t.Errorf("WAV format = %+v, want 16kHz mono", info)
	}
	if len(pcm) != 16000 {
		t.Errorf("WAV payload = %d bytes, want 16000", len(pcm))
	}
}

func TestTranscribeAppliesCorrector(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{TranscribeResult: "hello"}
	tr := transcribe.New(p, upperCorrector{}, nil)

	got, err := tr.Transcribe(context.Background(), testUtterance())
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got.Text != "HELLO" {
		t.Errorf("Text = %q, want corrected %q", got.Text, "HELLO")
	}
}

func TestTranscribeEmptyResultIsNoSpeech(t *testing.T) {
	t.Parallel()

	for _, result := range []string{"", "   ", "\n"} {
		p := &mock.Provider{TranscribeResult: result}
		tr := transcribe.New(p, nil, nil)
		_, err := tr.Transcribe(context.Background(), testUtterance())
		if !errors.Is(err, transcribe.ErrNoSpeech) {
			t.Errorf("Transcribe() with %q error = %v, want ErrNoSpeech", result, err)
		}
	}
}

func TestTranscribeProviderFailure(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{TranscribeErr: errors.New("all providers failed")}
	tr := transcribe.New(p, nil, nil)

	_, err := tr.Transcribe(context.Background(), testUtterance())
	if err == nil || errors.Is(err, transcribe.ErrNoSpeech) {
		t.Fatalf("Transcribe() error = %v, want provider failure", err)
	}
}
