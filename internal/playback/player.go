package playback

import (
	"context"
	"time"

	"github.com/novakeep/herald/pkg/audio"
	"github.com/novakeep/herald/pkg/provider/tts"
)

// Playback pacing parameters.
const (
	// frameDuration is the cadence at which PCM is fed to the platform sink.
	frameDuration = 20 * time.Millisecond

	// completionGrace covers platform transmit latency after the final frame.
	completionGrace = 500 * time.Millisecond

	// maxPlayTime bounds a single segment regardless of its claimed duration,
	// so a malformed clip cannot wedge the queue.
	maxPlayTime = 60 * time.Second
)

// SinkPlayer plays clips by writing paced PCM frames into a platform output
// channel. The platform encodes and transmits them; the pacing here is what
// makes Play's return approximate "the segment finished playing".
type SinkPlayer struct {
	// Out is the platform playback sink, typically [audio.Connection.Output].
	Out chan<- audio.AudioFrame
}

var _ Player = (*SinkPlayer)(nil)

// Play writes clip to the sink in frameDuration slices and returns when the
// clip has been fully delivered (plus a short transmit grace) or ctx is
// cancelled. On cancellation, undelivered audio is discarded immediately.
func (p *SinkPlayer) Play(ctx context.Context, clip tts.Clip) error {
	if clip.SampleRate <= 0 || clip.Channels <= 0 || len(clip.PCM) == 0 {
		return nil
	}

	deadline := clip.Duration() + completionGrace
	if deadline > maxPlayTime {
		deadline = maxPlayTime
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// Bytes per pacing frame: rate * channels * 2 bytes, scaled to 20 ms.
	frameBytes := clip.SampleRate * clip.Channels * 2 * int(frameDuration.Milliseconds()) / 1000
	if frameBytes <= 0 {
		return nil
	}
	// Keep int16 sample alignment.
	frameBytes -= frameBytes % (2 * clip.Channels)

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	pcm := clip.PCM
	for off := 0; off < len(pcm); {
		end := off + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		frame := audio.AudioFrame{
			Data:       pcm[off:end],
			SampleRate: clip.SampleRate,
			Channels:   clip.Channels,
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p.Out <- frame:
			off = end
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	// The pacing loop has consumed roughly the clip's duration already; wait
	// out the transmit grace so back-to-back segments do not overlap.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(completionGrace):
	}
	return nil
}
