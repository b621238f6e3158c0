package audio_test

import (
	"testing"

	"github.com/novakeep/herald/pkg/audio"
)

// pcmFromSamples packs int16 samples into little-endian bytes.
func pcmFromSamples(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// samplesFromPCM unpacks little-endian bytes into int16 samples.
func samplesFromPCM(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return out
}

func TestMonoToStereo(t *testing.T) {
	t.Parallel()

	in := pcmFromSamples(100, -200, 300)
	got := samplesFromPCM(audio.MonoToStereo(in))
	want := []int16{100, 100, -200, -200, 300, 300}

	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMonoAveragesAndClamps(t *testing.T) {
	t.Parallel()

	// Pairs: (100, 300) → 200; (32767, 32767) → 32767 (no overflow).
	in := pcmFromSamples(100, 300, 32767, 32767)
	got := samplesFromPCM(audio.StereoToMono(in))
	want := []int16{200, 32767}

	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDownsampleBy3(t *testing.T) {
	t.Parallel()

	// Two full blocks plus one trailing sample that must be discarded.
	in := pcmFromSamples(300, 600, 900, -300, -600, -900, 42)
	got := samplesFromPCM(audio.DownsampleBy3(in))
	want := []int16{600, -600}

	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("block %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDownsampleBy3Ratio(t *testing.T) {
	t.Parallel()

	// 48k worth of one second downsamples to exactly 16k samples.
	in := make([]byte, 48000*2)
	got := audio.DownsampleBy3(in)
	if len(got) != 16000*2 {
		t.Fatalf("got %d bytes, want %d", len(got), 16000*2)
	}
}

func TestResampleMono16SameRateUnchanged(t *testing.T) {
	t.Parallel()

	in := pcmFromSamples(1, 2, 3)
	got := audio.ResampleMono16(in, 24000, 24000)
	if &got[0] != &in[0] {
		t.Fatal("same-rate resample should return the input slice")
	}
}

func TestResampleMono16Doubles(t *testing.T) {
	t.Parallel()

	in := make([]byte, 240*2) // 10 ms at 24 kHz
	got := audio.ResampleMono16(in, 24000, 48000)
	if len(got) != 480*2 {
		t.Fatalf("got %d bytes, want %d", len(got), 480*2)
	}
}

func TestFormatConverterFastPath(t *testing.T) {
	t.Parallel()

	conv := &audio.FormatConverter{Target: audio.Format{SampleRate: 48000, Channels: 1}}
	in := audio.AudioFrame{Data: pcmFromSamples(7, 8), SampleRate: 48000, Channels: 1}
	got := conv.Convert(in)
	if &got.Data[0] != &in.Data[0] {
		t.Fatal("matching formats should pass the frame through unchanged")
	}
}

func TestFormatConverterStereoToMono(t *testing.T) {
	t.Parallel()

	conv := &audio.FormatConverter{Target: audio.Format{SampleRate: 48000, Channels: 1}}
	in := audio.AudioFrame{Data: pcmFromSamples(100, 300), SampleRate: 48000, Channels: 2}
	got := conv.Convert(in)

	if got.Channels != 1 || got.SampleRate != 48000 {
		t.Fatalf("got %dHz %dch, want 48000Hz 1ch", got.SampleRate, got.Channels)
	}
	if s := samplesFromPCM(got.Data); len(s) != 1 || s[0] != 200 {
		t.Fatalf("got samples %v, want [200]", s)
	}
}

func TestFormatConverterDropsCorruptFrame(t *testing.T) {
	t.Parallel()

	conv := &audio.FormatConverter{Target: audio.Format{SampleRate: 48000, Channels: 1}}
	got := conv.Convert(audio.AudioFrame{Data: []byte{1, 2, 3}, SampleRate: 48000, Channels: 1})
	if got.Data != nil {
		t.Fatalf("odd-length PCM should be dropped, got %d bytes", len(got.Data))
	}
}
