package audio

import "time"

// AudioFrame represents a single frame of PCM audio flowing through the
// pipeline. Frames are the atomic unit of audio transport — captured from
// the platform, accumulated by the segmenter, and paced back out through the
// playback sink.
type AudioFrame struct {
	// Data is 16-bit little-endian PCM.
	Data []byte

	// SampleRate in Hz (48000 on the wire, 16000 after STT downsampling).
	SampleRate int

	// Channels: 1 for mono, 2 for interleaved stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// SpeakerFrame tags an [AudioFrame] with the user it was captured from.
// The platform demultiplexes per-speaker streams into one tagged channel.
type SpeakerFrame struct {
	// Speaker is the platform user ID of the frame's origin.
	Speaker string

	// Frame is the decoded audio.
	Frame AudioFrame
}
