package discord

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/novakeep/herald/pkg/audio"
)

// ─── test helpers ─────────────────────────────────────────────────────────────

// newTestConnection creates a Connection suitable for unit testing without
// a real Discord voice connection. It wires up fake OpusSend/OpusRecv channels.
func newTestConnection(t *testing.T) *Connection {
	t.Helper()
	vc := &discordgo.VoiceConnection{
		ChannelID: "chan-test",
		OpusSend:  make(chan []byte, 16),
		OpusRecv:  make(chan *discordgo.Packet, 16),
	}
	c := &Connection{
		vc:           vc,
		session:      &discordgo.Session{},
		guildID:      "guild-test",
		ssrcUser:     make(map[uint32]string),
		frames:       make(chan audio.SpeakerFrame, framesChannelBuffer),
		output:       make(chan audio.AudioFrame, outputChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: func() error { return nil }, // no-op for tests
	}
	// Start loops like the real constructor (but without registering handlers
	// since session has no websocket).
	go c.recvLoop()
	go c.sendLoop()
	t.Cleanup(func() { _ = c.Disconnect() })
	return c
}

// ─── Platform tests ──────────────────────────────────────────────────────────

func TestNewPlatform(t *testing.T) {
	t.Parallel()

	s := &discordgo.Session{}
	p := New(s)
	if p == nil {
		t.Fatal("New returned nil")
	}
	if p.session != s {
		t.Error("session not stored correctly")
	}
	if got := p.Name(); got != "discord" {
		t.Errorf("Name() = %q, want %q", got, "discord")
	}
}

// ─── Connection tests ─────────────────────────────────────────────────────────

// TestConnection_DisconnectIdempotent verifies that Disconnect can be called
// multiple times without panicking and returns nil on subsequent calls.
func TestConnection_DisconnectIdempotent(t *testing.T) {
	t.Parallel()

	c := newTestConnection(t)
	for i := range 3 {
		err := c.Disconnect()
		if i > 0 && err != nil {
			t.Fatalf("Disconnect[%d]: unexpected error: %v", i, err)
		}
	}
}

// TestConnection_FramesTaggedBySpeaker verifies that incoming Opus packets
// are decoded and tagged with the user ID resolved from speaking updates,
// falling back to the decimal SSRC for unmapped streams.
func TestConnection_FramesTaggedBySpeaker(t *testing.T) {
	t.Parallel()

	c := newTestConnection(t)

	// Establish the SSRC mapping the way Discord does: via a speaking update.
	c.handleSpeakingUpdate(nil, &discordgo.VoiceSpeakingUpdate{
		UserID:   "alice-id",
		SSRC:     100,
		Speaking: true,
	})

	// Opus silence frame: 0xF8 0xFF 0xFE (3 bytes).
	silenceOpus := []byte{0xF8, 0xFF, 0xFE}

	c.vc.OpusRecv <- &discordgo.Packet{SSRC: 100, Opus: silenceOpus}
	c.vc.OpusRecv <- &discordgo.Packet{SSRC: 200, Opus: silenceOpus}

	speakers := map[string]bool{}
	for range 2 {
		select {
		case sf := <-c.Frames():
			speakers[sf.Speaker] = true
			if sf.Frame.SampleRate != opusSampleRate {
				t.Errorf("SampleRate = %d, want %d", sf.Frame.SampleRate, opusSampleRate)
			}
			if sf.Frame.Channels != opusChannels {
				t.Errorf("Channels = %d, want %d", sf.Frame.Channels, opusChannels)
			}
			if len(sf.Frame.Data) == 0 {
				t.Error("frame data is empty")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for tagged frame")
		}
	}

	if !speakers["alice-id"] {
		t.Error("mapped SSRC 100 should be tagged alice-id")
	}
	if !speakers["200"] {
		t.Error("unmapped SSRC 200 should be tagged with its decimal SSRC")
	}
}

// TestConnection_FramesClosedOnDisconnect verifies that the frames channel is
// closed when the connection shuts down so consumers observe connection loss.
func TestConnection_FramesClosedOnDisconnect(t *testing.T) {
	t.Parallel()

	c := newTestConnection(t)
	_ = c.Disconnect()

	select {
	case _, ok := <-c.Frames():
		if ok {
			t.Fatal("expected frames channel to be closed, got a frame")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frames channel to close")
	}
}

// TestConnection_SendEncodes verifies that frames written to Output are
// encoded and appear on OpusSend.
func TestConnection_SendEncodes(t *testing.T) {
	t.Parallel()

	c := newTestConnection(t)

	// One 20 ms stereo 48 kHz frame: 960 samples * 2 channels * 2 bytes.
	pcm := make([]byte, opusFrameSize*opusChannels*2)
	c.Output() <- audio.AudioFrame{
		Data:       pcm,
		SampleRate: opusSampleRate,
		Channels:   opusChannels,
	}

	select {
	case opus := <-c.vc.OpusSend:
		if len(opus) == 0 {
			t.Error("OpusSend: received empty Opus packet")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Opus packet on OpusSend")
	}
}

// TestConnection_OnSpeakingReplaces verifies that a speaking callback can be
// registered and replaced, and that speaking updates reach only the current one.
func TestConnection_OnSpeakingReplaces(t *testing.T) {
	t.Parallel()

	c := newTestConnection(t)

	type transition struct {
		userID   string
		speaking bool
	}

	first := make(chan transition, 4)
	c.OnSpeaking(func(userID string, speaking bool) {
		first <- transition{userID, speaking}
	})

	c.handleSpeakingUpdate(nil, &discordgo.VoiceSpeakingUpdate{UserID: "u1", SSRC: 1, Speaking: true})

	select {
	case tr := <-first:
		if tr.userID != "u1" || !tr.speaking {
			t.Errorf("got %+v, want {u1 true}", tr)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for speaking callback")
	}

	second := make(chan transition, 4)
	c.OnSpeaking(func(userID string, speaking bool) {
		second <- transition{userID, speaking}
	})

	c.handleSpeakingUpdate(nil, &discordgo.VoiceSpeakingUpdate{UserID: "u1", SSRC: 1, Speaking: false})

	select {
	case tr := <-second:
		if tr.userID != "u1" || tr.speaking {
			t.Errorf("got %+v, want {u1 false}", tr)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for replaced speaking callback")
	}

	select {
	case tr := <-first:
		t.Errorf("original callback should not receive events after replacement, got %+v", tr)
	case <-time.After(50 * time.Millisecond):
		// expected
	}
}

// TestConnection_PresenceFromVoiceState verifies that VoiceStateUpdate events
// for this connection's channel are translated to presence transitions.
func TestConnection_PresenceFromVoiceState(t *testing.T) {
	t.Parallel()

	c := newTestConnection(t)

	type transition struct {
		userID  string
		present bool
	}
	got := make(chan transition, 4)
	c.OnPresence(func(userID string, present bool) {
		got <- transition{userID, present}
	})

	// Join: no prior state, new state is our channel.
	c.handleVoiceStateUpdate(nil, &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{GuildID: "guild-test", ChannelID: "chan-test", UserID: "u1"},
	})
	select {
	case tr := <-got:
		if tr.userID != "u1" || !tr.present {
			t.Errorf("join: got %+v, want {u1 true}", tr)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for join presence")
	}

	// Leave: prior state was our channel, new state is elsewhere.
	c.handleVoiceStateUpdate(nil, &discordgo.VoiceStateUpdate{
		VoiceState:   &discordgo.VoiceState{GuildID: "guild-test", ChannelID: "", UserID: "u1"},
		BeforeUpdate: &discordgo.VoiceState{GuildID: "guild-test", ChannelID: "chan-test", UserID: "u1"},
	})
	select {
	case tr := <-got:
		if tr.userID != "u1" || tr.present {
			t.Errorf("leave: got %+v, want {u1 false}", tr)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for leave presence")
	}

	// Other guild: ignored.
	c.handleVoiceStateUpdate(nil, &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{GuildID: "other-guild", ChannelID: "chan-test", UserID: "u2"},
	})
	select {
	case tr := <-got:
		t.Errorf("other-guild update should be ignored, got %+v", tr)
	case <-time.After(50 * time.Millisecond):
		// expected
	}
}

// TestConnection_PresentFromSessionState verifies that Present reads the
// session's cached voice state, so users who joined before the bot are
// visible without any VoiceStateUpdate ever firing for them.
func TestConnection_PresentFromSessionState(t *testing.T) {
	t.Parallel()

	c := newTestConnection(t)

	// No state cache yet: nobody can be confirmed present.
	if c.Present("alice-id") {
		t.Error("Present reported true without session state")
	}

	state := discordgo.NewState()
	if err := state.GuildAdd(&discordgo.Guild{
		ID: "guild-test",
		VoiceStates: []*discordgo.VoiceState{
			{UserID: "alice-id", ChannelID: "chan-test"},
			{UserID: "bob-id", ChannelID: "other-chan"},
		},
	}); err != nil {
		t.Fatalf("GuildAdd: %v", err)
	}
	c.session.State = state

	if !c.Present("alice-id") {
		t.Error("user already in this channel should be present")
	}
	if c.Present("bob-id") {
		t.Error("user in a different voice channel should not be present")
	}
	if c.Present("carol-id") {
		t.Error("user with no voice state should not be present")
	}
}

// TestConnection_PostTextSplits verifies that long content is split across
// multiple messages under Discord's length limit.
func TestConnection_PostTextSplits(t *testing.T) {
	t.Parallel()

	c := newTestConnection(t)

	var sent []string
	c.sendMessage = func(channelID, content string) error {
		if channelID != "text-1" {
			t.Errorf("channelID = %q, want %q", channelID, "text-1")
		}
		sent = append(sent, content)
		return nil
	}

	long := strings.Repeat("word ", 900) // ~4500 chars
	if err := c.PostText("text-1", long); err != nil {
		t.Fatalf("PostText: unexpected error: %v", err)
	}

	if len(sent) < 3 {
		t.Fatalf("want at least 3 chunks, got %d", len(sent))
	}
	for i, chunk := range sent {
		if len(chunk) > maxMessageLen {
			t.Errorf("chunk %d exceeds limit: %d bytes", i, len(chunk))
		}
	}
	if joined := strings.Join(sent, " "); strings.ReplaceAll(joined, " ", "") != strings.ReplaceAll(long, " ", "") {
		t.Error("chunks do not reassemble to the original content")
	}
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		max     int
		want    []string
	}{
		{
			name:    "short passes through",
			content: "hello",
			max:     10,
			want:    []string{"hello"},
		},
		{
			name:    "breaks at space",
			content: "aaa bbb ccc",
			max:     7,
			want:    []string{"aaa", "bbb ccc"},
		},
		{
			name:    "prefers newline over space",
			content: "aaa bb\ncc dd",
			max:     10,
			want:    []string{"aaa bb", "cc dd"},
		},
		{
			name:    "hard split without separators",
			content: "aaaaaaaaaa",
			max:     4,
			want:    []string{"aaaa", "aaaa", "aa"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := splitMessage(tt.content, tt.max)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d chunks %q, want %d %q", len(got), got, len(tt.want), tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// TestConnection_ConcurrentDisconnect exercises Disconnect from multiple
// goroutines to verify thread safety (run with -race).
func TestConnection_ConcurrentDisconnect(t *testing.T) {
	t.Parallel()

	c := newTestConnection(t)
	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			_ = c.Disconnect()
		})
	}
	wg.Wait()
}
