package audio_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/novakeep/herald/pkg/audio"
)

func TestEncodeWAVHeader(t *testing.T) {
	t.Parallel()

	pcm := pcmFromSamples(1, 2, 3, 4)
	wav := audio.EncodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data length = %d, want %d", got, len(pcm))
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Error("PCM payload not copied verbatim")
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	t.Parallel()

	pcm := pcmFromSamples(100, -200, 300, -400)
	wav := audio.EncodeWAV(pcm, 24000, 1)

	got, info, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if info.SampleRate != 24000 || info.Channels != 1 {
		t.Errorf("format = %dHz %dch, want 24000Hz 1ch", info.SampleRate, info.Channels)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("decoded PCM differs from input")
	}
}

// TestDecodeWAVExtraChunk verifies the chunk walker skips non-standard chunks
// (e.g. a LIST chunk between fmt and data).
func TestDecodeWAVExtraChunk(t *testing.T) {
	t.Parallel()

	pcm := pcmFromSamples(7, 8)
	wav := audio.EncodeWAV(pcm, 48000, 2)

	// Splice a 6-byte LIST chunk between "fmt " and "data".
	list := make([]byte, 8+6)
	copy(list[0:4], "LIST")
	binary.LittleEndian.PutUint32(list[4:8], 6)

	spliced := append([]byte{}, wav[:36]...)
	spliced = append(spliced, list...)
	spliced = append(spliced, wav[36:]...)
	binary.LittleEndian.PutUint32(spliced[4:8], uint32(len(spliced)-8))

	got, info, err := audio.DecodeWAV(spliced)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if info.SampleRate != 48000 || info.Channels != 2 {
		t.Errorf("format = %dHz %dch, want 48000Hz 2ch", info.SampleRate, info.Channels)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("decoded PCM differs from input")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	t.Parallel()

	cases := [][]byte{
		nil,
		[]byte("too short"),
		[]byte("NOTRIFFxWAVExxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"),
	}
	for i, in := range cases {
		if _, _, err := audio.DecodeWAV(in); err == nil {
			t.Errorf("case %d: expected error, got nil", i)
		}
	}
}
