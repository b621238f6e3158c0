// Package audio defines the interfaces and types for voice-platform
// connectivity within Herald.
//
// The two primary abstractions are:
//
//   - [Platform] — joins a voice channel and returns a [Connection].
//   - [Connection] — an active session on that channel, delivering decoded
//     per-speaker audio frames, speaking and presence events, a playback
//     sink, and a text-channel escape hatch for handoff posts.
//
// Implementations live in platform-specific adapter packages (audio/discord
// in production, audio/mock in tests). The interfaces are intentionally
// narrow so the capture and playback pipelines stay decoupled from any SDK.
package audio

import (
	"context"
)

// Connection represents an active session on a voice channel.
//
// A Connection is obtained from [Platform.Connect] and remains valid until
// [Connection.Disconnect] is called or the underlying transport drops. The
// frames channel is closed when the connection terminates, which is how
// consumers observe a disconnect.
//
// Implementations must be safe for concurrent use.
type Connection interface {
	// Frames returns the stream of decoded audio frames for all speakers in
	// the channel, each tagged with the platform user ID it came from. The
	// channel is closed when the connection terminates.
	Frames() <-chan SpeakerFrame

	// OnSpeaking registers cb to be invoked when a speaker starts or stops
	// transmitting. Only one callback may be registered at a time; subsequent
	// calls replace the previous registration. The callback runs on an
	// internal goroutine and must not block.
	OnSpeaking(cb func(userID string, speaking bool))

	// OnPresence registers cb to be invoked when a user joins or leaves the
	// connected voice channel. Registration semantics match [OnSpeaking].
	OnPresence(cb func(userID string, present bool))

	// Present reports whether userID is in the connected voice channel right
	// now, from the platform's current voice state. Consumers seed their
	// presence tracking with this at connect time; only changes after that
	// arrive via [OnPresence].
	Present(userID string) bool

	// Output returns the write-only playback sink. Frames written here are
	// encoded and transmitted to the channel. The channel is buffered; the
	// platform drops frames written after Disconnect rather than panicking.
	Output() chan<- AudioFrame

	// PostText posts a text message to the given text channel. Messages
	// longer than the platform limit are split across several posts.
	PostText(channelID, content string) error

	// Disconnect cleanly tears down the connection and closes the frames
	// channel. Safe to call more than once; later calls are no-ops.
	Disconnect() error
}

// Platform is the entry point for a voice-channel provider.
//
// Implementations wrap provider-specific SDKs and expose the uniform
// [Connection] abstraction. They must be safe for concurrent use.
type Platform interface {
	// Name returns the provider name for logs and startup diagnostics.
	Name() string

	// Connect joins the voice channel identified by (guildID, channelID) and
	// blocks until the channel is ready or ctx expires. The ctx governs the
	// connection attempt only; once established, the Connection lives until
	// Disconnect.
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)
}
