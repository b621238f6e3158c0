package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// Format names a PCM layout by sample rate and channel count.
type Format struct {
	SampleRate int
	Channels   int
}

// readS16 reads the little-endian int16 sample starting at pcm[off].
func readS16(pcm []byte, off int) int16 {
	return int16(pcm[off]) | int16(pcm[off+1])<<8
}

// writeS16 stores s little-endian at out[off].
func writeS16(out []byte, off int, s int16) {
	out[off] = byte(s)
	out[off+1] = byte(s >> 8)
}

// FormatConverter normalizes incoming frames to one target format. The first
// mismatched frame and the first malformed frame each produce a single
// warning. One converter per stream; not safe for concurrent use.
type FormatConverter struct {
	Target         Format
	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert returns frame rewritten in the target format. A frame already in
// the target format passes through untouched. Rate conversion happens before
// channel conversion so a stereo-to-mono stream is never resampled twice.
func (c *FormatConverter) Convert(frame AudioFrame) AudioFrame {
	if len(frame.Data)%2 != 0 {
		// Not int16-aligned; the frame is unusable.
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio format converter: odd byte count in PCM data, dropping frame",
				"bytes", len(frame.Data),
				"sampleRate", frame.SampleRate,
				"channels", frame.Channels,
			)
		})
		return AudioFrame{
			SampleRate: c.Target.SampleRate,
			Channels:   c.Target.Channels,
			Timestamp:  frame.Timestamp,
		}
	}

	if frame.SampleRate == c.Target.SampleRate && frame.Channels == c.Target.Channels {
		return frame
	}

	c.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting",
			"from", formatString(frame.SampleRate, frame.Channels),
			"to", formatString(c.Target.SampleRate, c.Target.Channels),
		)
	})

	pcm := frame.Data

	if frame.SampleRate != c.Target.SampleRate {
		switch frame.Channels {
		case 1:
			pcm = ResampleMono16(pcm, frame.SampleRate, c.Target.SampleRate)
		default:
			pcm = ResampleStereo16(pcm, frame.SampleRate, c.Target.SampleRate)
		}
	}

	switch {
	case frame.Channels == 1 && c.Target.Channels == 2:
		pcm = MonoToStereo(pcm)
	case frame.Channels == 2 && c.Target.Channels == 1:
		pcm = StereoToMono(pcm)
	}

	return AudioFrame{
		Data:       pcm,
		SampleRate: c.Target.SampleRate,
		Channels:   c.Target.Channels,
		Timestamp:  frame.Timestamp,
	}
}

// MonoToStereo duplicates every mono sample into a left/right pair. Input is
// little-endian int16 PCM.
func MonoToStereo(pcm []byte) []byte {
	samples := len(pcm) / 2
	out := make([]byte, samples*4)
	for i := range samples {
		s := readS16(pcm, i*2)
		writeS16(out, i*4, s)
		writeS16(out, i*4+2, s)
	}
	return out
}

// StereoToMono mixes each interleaved L/R pair down to its average. The sum
// is computed in int32 and clamped back into int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		mixed := (int32(readS16(pcm, i*4)) + int32(readS16(pcm, i*4+2))) / 2
		writeS16(out, i*2, clampS16(mixed))
	}
	return out
}

// DownsampleBy3 reduces 16-bit mono PCM to a third of its rate by averaging
// every block of three samples. This is the 48 kHz to 16 kHz step applied
// before transcription. A trailing partial block is discarded.
func DownsampleBy3(pcm []byte) []byte {
	blocks := len(pcm) / 2 / 3
	out := make([]byte, blocks*2)
	for i := range blocks {
		sum := int32(readS16(pcm, i*6)) +
			int32(readS16(pcm, i*6+2)) +
			int32(readS16(pcm, i*6+4))
		writeS16(out, i*2, int16(sum/3))
	}
	return out
}

// ResampleMono16 converts 16-bit mono PCM from srcRate to dstRate with linear
// interpolation. Equal rates, degenerate rates, or too little input return
// the slice unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	step := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := readS16(pcm, idx*2)
		s1 := s0
		if idx+1 < srcSamples {
			s1 = readS16(pcm, (idx+1)*2)
		}
		writeS16(out, i*2, lerpS16(s0, s1, frac))
	}
	return out
}

// ResampleStereo16 converts 16-bit interleaved stereo PCM from srcRate to
// dstRate with per-channel linear interpolation. Each stereo frame is four
// bytes. Equal rates or too little input return the slice unchanged.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 4 {
		return pcm
	}
	srcFrames := len(pcm) / 4
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*4)
	step := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)

		l0, r0 := readS16(pcm, idx*4), readS16(pcm, idx*4+2)
		l1, r1 := l0, r0
		if idx+1 < srcFrames {
			l1, r1 = readS16(pcm, (idx+1)*4), readS16(pcm, (idx+1)*4+2)
		}
		writeS16(out, i*4, lerpS16(l0, l1, frac))
		writeS16(out, i*4+2, lerpS16(r0, r1, frac))
	}
	return out
}

func clampS16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func lerpS16(a, b int16, frac float64) int16 {
	return int16(float64(a)*(1-frac) + float64(b)*frac)
}

// formatString renders a format for log output, e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
