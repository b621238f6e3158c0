package discord

import (
	"fmt"

	"layeh.com/gopus"
)

// Discord voice is 48 kHz stereo Opus in 20 ms frames.
const (
	opusSampleRate  = 48000
	opusChannels    = 2
	opusFrameSizeMs = 20

	// opusFrameSize is samples per channel per frame (960).
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000
)

// opusDecoder decodes one SSRC's Opus stream. Decoder state is per stream,
// so each speaking user gets their own instance.
type opusDecoder struct {
	dec *gopus.Decoder
}

func newOpusDecoder() (*opusDecoder, error) {
	dec, err := gopus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("discord: create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec}, nil
}

// decode turns an Opus packet into interleaved little-endian int16 PCM.
func (d *opusDecoder) decode(packet []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(packet, opusFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("discord: opus decode: %w", err)
	}
	return pcmToBytes(pcm), nil
}

// opusEncoder encodes assistant playback for the voice send stream.
type opusEncoder struct {
	enc *gopus.Encoder
}

func newOpusEncoder() (*opusEncoder, error) {
	enc, err := gopus.NewEncoder(opusSampleRate, opusChannels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("discord: create opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc}, nil
}

// encode turns interleaved little-endian int16 PCM into one Opus packet.
func (e *opusEncoder) encode(pcmBytes []byte) ([]byte, error) {
	packet, err := e.enc.Encode(bytesToPCM(pcmBytes), opusFrameSize, len(pcmBytes))
	if err != nil {
		return nil, fmt.Errorf("discord: opus encode: %w", err)
	}
	return packet, nil
}

func pcmToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

func bytesToPCM(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
