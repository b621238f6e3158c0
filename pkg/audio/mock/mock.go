// Package mock provides in-memory mock implementations of the [audio.Platform]
// and [audio.Connection] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	frames := make(chan audio.SpeakerFrame, 16)
//	out := make(chan audio.AudioFrame, 16)
//	conn := &mock.Connection{FramesChan: frames, OutputChan: out}
//	platform := &mock.Platform{ConnectResult: conn}
//	got, err := platform.Connect(ctx, "guild-1", "channel-42")
package mock

import (
	"context"
	"sync"

	"github.com/novakeep/herald/pkg/audio"
)

// ─── Connection ───────────────────────────────────────────────────────────────

// PostTextCall records the arguments of a single [Connection.PostText] invocation.
type PostTextCall struct {
	// ChannelID is the channelID argument passed to PostText.
	ChannelID string
	// Content is the content argument passed to PostText.
	Content string
}

// Connection is a mock implementation of [audio.Connection].
// Set the exported Result fields before use; inspect the Call* fields after.
type Connection struct {
	mu sync.Mutex

	// FramesChan is returned by [Connection.Frames]. Tests push tagged frames
	// into it directly, or via [Connection.EmitFrame].
	// Defaults to a closed channel if left nil.
	FramesChan chan audio.SpeakerFrame

	// OutputChan is returned by [Connection.Output].
	OutputChan chan audio.AudioFrame

	// PresentUsers holds the user IDs reported in-channel by
	// [Connection.Present]. Users absent from the map are reported absent.
	PresentUsers map[string]bool

	// PostTextError is returned by [Connection.PostText].
	PostTextError error

	// DisconnectError is returned by [Connection.Disconnect].
	DisconnectError error

	// CallCountFrames records how many times Frames was called.
	CallCountFrames int

	// CallCountOutput records how many times Output was called.
	CallCountOutput int

	// CallCountDisconnect records how many times Disconnect was called.
	CallCountDisconnect int

	// PostTextCalls records all PostText invocations in order.
	PostTextCalls []PostTextCall

	// RecordedSpeakingCallbacks holds the callbacks registered via OnSpeaking,
	// in order of registration.
	RecordedSpeakingCallbacks []func(userID string, speaking bool)

	// RecordedPresenceCallbacks holds the callbacks registered via OnPresence,
	// in order of registration.
	RecordedPresenceCallbacks []func(userID string, present bool)

	framesOnce   sync.Once
	framesClosed chan audio.SpeakerFrame
}

// Frames implements [audio.Connection]. Returns FramesChan.
// If FramesChan is nil, a closed channel is returned so receivers never block.
func (c *Connection) Frames() <-chan audio.SpeakerFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountFrames++
	if c.FramesChan == nil {
		c.framesOnce.Do(func() {
			c.framesClosed = make(chan audio.SpeakerFrame)
			close(c.framesClosed)
		})
		return c.framesClosed
	}
	return c.FramesChan
}

// OnSpeaking implements [audio.Connection].
// The callback is appended to RecordedSpeakingCallbacks. To simulate speaking
// transitions in tests, call [Connection.EmitSpeaking].
func (c *Connection) OnSpeaking(cb func(userID string, speaking bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RecordedSpeakingCallbacks = append(c.RecordedSpeakingCallbacks, cb)
}

// OnPresence implements [audio.Connection].
// The callback is appended to RecordedPresenceCallbacks. To simulate channel
// joins and leaves in tests, call [Connection.EmitPresence].
func (c *Connection) OnPresence(cb func(userID string, present bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RecordedPresenceCallbacks = append(c.RecordedPresenceCallbacks, cb)
}

// Present implements [audio.Connection]. Reports PresentUsers[userID].
func (c *Connection) Present(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.PresentUsers[userID]
}

// Output implements [audio.Connection]. Returns OutputChan.
func (c *Connection) Output() chan<- audio.AudioFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountOutput++
	return c.OutputChan
}

// PostText implements [audio.Connection]. Records the call and returns PostTextError.
func (c *Connection) PostText(channelID, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PostTextCalls = append(c.PostTextCalls, PostTextCall{ChannelID: channelID, Content: content})
	return c.PostTextError
}

// Disconnect implements [audio.Connection]. Returns DisconnectError.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountDisconnect++
	return c.DisconnectError
}

// EmitFrame pushes a tagged frame into FramesChan.
// Panics if FramesChan is nil.
func (c *Connection) EmitFrame(f audio.SpeakerFrame) {
	c.FramesChan <- f
}

// EmitSpeaking calls all registered speaking callbacks with the given transition.
// Use this in tests to simulate a user starting or stopping speaking.
func (c *Connection) EmitSpeaking(userID string, speaking bool) {
	c.mu.Lock()
	cbs := make([]func(string, bool), len(c.RecordedSpeakingCallbacks))
	copy(cbs, c.RecordedSpeakingCallbacks)
	c.mu.Unlock()
	for _, cb := range cbs {
		cb(userID, speaking)
	}
}

// EmitPresence calls all registered presence callbacks with the given transition.
// Use this in tests to simulate users joining or leaving the voice channel.
func (c *Connection) EmitPresence(userID string, present bool) {
	c.mu.Lock()
	cbs := make([]func(string, bool), len(c.RecordedPresenceCallbacks))
	copy(cbs, c.RecordedPresenceCallbacks)
	c.mu.Unlock()
	for _, cb := range cbs {
		cb(userID, present)
	}
}

// ─── Platform ─────────────────────────────────────────────────────────────────

// ConnectCall records the arguments of a single [Platform.Connect] invocation.
type ConnectCall struct {
	// GuildID is the guildID argument passed to Connect.
	GuildID string
	// ChannelID is the channelID argument passed to Connect.
	ChannelID string
}

// Platform is a mock implementation of [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// NameResult is returned by Name. Defaults to "mock" if empty.
	NameResult string

	// ConnectResult is the [audio.Connection] returned by Connect.
	ConnectResult audio.Connection

	// ConnectError is the error returned by Connect.
	ConnectError error

	// ConnectCalls records all Connect invocations.
	ConnectCalls []ConnectCall
}

// Name implements [audio.Platform]. Returns NameResult or "mock".
func (p *Platform) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NameResult == "" {
		return "mock"
	}
	return p.NameResult
}

// Connect implements [audio.Platform]. Records the call and returns ConnectResult / ConnectError.
func (p *Platform) Connect(_ context.Context, guildID, channelID string) (audio.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{GuildID: guildID, ChannelID: channelID})
	return p.ConnectResult, p.ConnectError
}
