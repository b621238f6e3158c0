package discord

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/novakeep/herald/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Connection = (*Connection)(nil)

const (
	framesChannelBuffer = 256
	outputChannelBuffer = 64

	// maxMessageLen is Discord's hard limit on message content length.
	maxMessageLen = 2000
)

// Connection wraps a discordgo.VoiceConnection and adapts it to the
// [audio.Connection] interface. It decodes incoming Opus packets to PCM,
// tags each frame with the speaking user's ID (resolved from SSRC via
// Discord speaking updates), and encodes outgoing PCM frames to Opus for
// transmission.
//
// Connection is safe for concurrent use.
type Connection struct {
	vc      *discordgo.VoiceConnection
	session *discordgo.Session
	guildID string

	ssrcMu   sync.RWMutex
	ssrcUser map[uint32]string // SSRC -> userID mapping

	frames chan audio.SpeakerFrame
	output chan audio.AudioFrame

	speakingMu sync.Mutex
	speakingCb func(userID string, speaking bool)

	presenceMu sync.Mutex
	presenceCb func(userID string, present bool)

	done      chan struct{}
	closeOnce sync.Once

	removeHandler func() // removes the VoiceStateUpdate handler

	// disconnectVC is called during Disconnect to tear down the voice connection.
	// Defaults to vc.Disconnect; overridden in tests.
	disconnectVC func() error

	// sendMessage posts a single message to a text channel.
	// Defaults to session.ChannelMessageSend; overridden in tests.
	sendMessage func(channelID, content string) error
}

// newConnection initialises a Connection for an already-joined voice channel.
// It starts background goroutines for receiving and sending audio.
func newConnection(vc *discordgo.VoiceConnection, session *discordgo.Session, guildID string) (*Connection, error) {
	c := &Connection{
		vc:           vc,
		session:      session,
		guildID:      guildID,
		ssrcUser:     make(map[uint32]string),
		frames:       make(chan audio.SpeakerFrame, framesChannelBuffer),
		output:       make(chan audio.AudioFrame, outputChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
	}
	c.sendMessage = func(channelID, content string) error {
		_, err := session.ChannelMessageSend(channelID, content)
		return err
	}

	// Speaking updates carry the SSRC<->userID mapping and drive barge-in timing.
	vc.AddHandler(c.handleSpeakingUpdate)

	// VoiceStateUpdate events detect users joining and leaving our channel.
	c.removeHandler = session.AddHandler(c.handleVoiceStateUpdate)

	// Receive loop: reads Opus from Discord, decodes to PCM, tags by speaker.
	go c.recvLoop()

	// Send loop: reads PCM from the output channel, encodes to Opus, sends to Discord.
	go c.sendLoop()

	return c, nil
}

// Frames returns the merged stream of speaker-tagged PCM frames.
// The channel is closed when the connection shuts down.
func (c *Connection) Frames() <-chan audio.SpeakerFrame {
	return c.frames
}

// Output returns the write-only channel for assistant audio output.
// Frames written here are encoded to Opus and sent to Discord.
func (c *Connection) Output() chan<- audio.AudioFrame {
	return c.output
}

// OnSpeaking registers cb as the callback for speaking start/stop transitions.
// Only one callback may be registered; subsequent calls replace the previous one.
func (c *Connection) OnSpeaking(cb func(userID string, speaking bool)) {
	c.speakingMu.Lock()
	defer c.speakingMu.Unlock()
	c.speakingCb = cb
}

// OnPresence registers cb as the callback for voice-channel join/leave events.
// Only one callback may be registered; subsequent calls replace the previous one.
func (c *Connection) OnPresence(cb func(userID string, present bool)) {
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()
	c.presenceCb = cb
}

// Present reports whether userID is currently in this connection's voice
// channel according to the session's cached guild state. Users who joined
// before the bot connected are visible here even though no VoiceStateUpdate
// will ever fire for them.
func (c *Connection) Present(userID string) bool {
	if c.session == nil || c.session.State == nil {
		return false
	}
	vs, err := c.session.State.VoiceState(c.guildID, userID)
	if err != nil || vs == nil {
		return false
	}
	return vs.ChannelID == c.vc.ChannelID
}

// PostText sends content to the given text channel, splitting it into
// multiple messages when it exceeds Discord's length limit.
// Empty content is a no-op.
func (c *Connection) PostText(channelID, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	for _, chunk := range splitMessage(content, maxMessageLen) {
		if err := c.sendMessage(channelID, chunk); err != nil {
			return fmt.Errorf("discord: post to channel %q: %w", channelID, err)
		}
	}
	return nil
}

// Disconnect cleanly tears down the voice connection and stops all background
// goroutines. It is safe to call more than once; subsequent calls return nil.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		if c.removeHandler != nil {
			c.removeHandler()
		}

		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
	})
	return err
}

// recvLoop reads Opus packets from the Discord voice connection, decodes them
// to PCM with one decoder per SSRC, resolves the speaking user, and delivers
// tagged frames to the merged frames channel. It closes the frames channel on
// exit so downstream consumers observe connection loss.
func (c *Connection) recvLoop() {
	defer close(c.frames)

	// Each SSRC gets its own decoder to maintain state across frames.
	decoders := make(map[uint32]*opusDecoder)

	for {
		select {
		case <-c.done:
			return
		case pkt, ok := <-c.vc.OpusRecv:
			if !ok {
				return
			}
			if pkt == nil {
				continue
			}

			dec, exists := decoders[pkt.SSRC]
			if !exists {
				var err error
				dec, err = newOpusDecoder()
				if err != nil {
					slog.Error("discord: failed to create opus decoder", "ssrc", pkt.SSRC, "error", err)
					continue
				}
				decoders[pkt.SSRC] = dec
			}

			pcm, err := dec.decode(pkt.Opus)
			if err != nil {
				slog.Warn("discord: opus decode error", "ssrc", pkt.SSRC, "error", err)
				continue
			}

			tagged := audio.SpeakerFrame{
				Speaker: c.userForSSRC(pkt.SSRC),
				Frame: audio.AudioFrame{
					Data:       pcm,
					SampleRate: opusSampleRate,
					Channels:   opusChannels,
					Timestamp:  time.Duration(pkt.Timestamp) * time.Second / time.Duration(opusSampleRate),
				},
			}

			select {
			case c.frames <- tagged:
			default:
				// Channel full: drop frame rather than block the voice socket.
			}
		}
	}
}

// sendLoop reads PCM AudioFrames from the output channel, converts them to
// Discord's target format (48 kHz stereo), extracts exact Opus frame-sized
// chunks, encodes them to Opus, and sends the encoded data via the Discord
// voice connection.
func (c *Connection) sendLoop() {
	enc, err := newOpusEncoder()
	if err != nil {
		slog.Error("discord: failed to create opus encoder", "error", err)
		return
	}

	conv := audio.FormatConverter{Target: audio.Format{SampleRate: opusSampleRate, Channels: opusChannels}}

	// Signal speaking when we start sending audio.
	speakingSet := false

	// opusFrameBytes is the exact PCM input size for one Opus frame:
	// 960 samples/channel x 2 channels x 2 bytes/sample = 3840 bytes.
	const opusFrameBytes = opusFrameSize * opusChannels * 2

	var buf []byte

	for {
		select {
		case <-c.done:
			if speakingSet {
				c.setSpeaking(false)
			}
			return
		case frame, ok := <-c.output:
			if !ok {
				return
			}

			if !speakingSet {
				c.setSpeaking(true)
				speakingSet = true
			}

			frame = conv.Convert(frame)
			buf = append(buf, frame.Data...)

			// Encode and send complete Opus frames.
			for len(buf) >= opusFrameBytes {
				opus, eErr := enc.encode(buf[:opusFrameBytes])
				if eErr != nil {
					slog.Warn("discord: opus encode error", "error", eErr)
					buf = buf[opusFrameBytes:]
					continue
				}
				buf = buf[opusFrameBytes:]

				select {
				case c.vc.OpusSend <- opus:
				case <-c.done:
					return
				}
			}
		}
	}
}

// handleSpeakingUpdate records the SSRC->userID mapping and relays the
// speaking transition to the registered callback.
func (c *Connection) handleSpeakingUpdate(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
	if vs == nil || vs.UserID == "" {
		return
	}

	c.ssrcMu.Lock()
	c.ssrcUser[uint32(vs.SSRC)] = vs.UserID
	c.ssrcMu.Unlock()

	c.speakingMu.Lock()
	cb := c.speakingCb
	c.speakingMu.Unlock()
	if cb != nil {
		go cb(vs.UserID, vs.Speaking)
	}
}

// handleVoiceStateUpdate processes Discord VoiceStateUpdate events to detect
// users joining and leaving the voice channel this connection is on.
func (c *Connection) handleVoiceStateUpdate(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.GuildID != c.guildID {
		return
	}

	channelID := c.vc.ChannelID

	// User left our channel.
	if vsu.BeforeUpdate != nil && vsu.BeforeUpdate.ChannelID == channelID && vsu.ChannelID != channelID {
		c.emitPresence(vsu.UserID, false)
		return
	}

	// User joined our channel.
	if vsu.ChannelID == channelID && (vsu.BeforeUpdate == nil || vsu.BeforeUpdate.ChannelID != channelID) {
		c.emitPresence(vsu.UserID, true)
	}
}

// userForSSRC returns the user ID associated with the given SSRC. Speaking
// updates populate the mapping before audio packets arrive; if the SSRC is
// still unknown the decimal SSRC is used as a placeholder ID.
func (c *Connection) userForSSRC(ssrc uint32) string {
	c.ssrcMu.RLock()
	defer c.ssrcMu.RUnlock()
	if userID, ok := c.ssrcUser[ssrc]; ok {
		return userID
	}
	return strconv.FormatUint(uint64(ssrc), 10)
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (c *Connection) setSpeaking(b bool) {
	if err := c.vc.Speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "error", err)
	}
}

// emitPresence safely invokes the registered presence callback.
func (c *Connection) emitPresence(userID string, present bool) {
	c.presenceMu.Lock()
	cb := c.presenceCb
	c.presenceMu.Unlock()
	if cb != nil {
		go cb(userID, present)
	}
}

// splitMessage splits content into chunks of at most max bytes, breaking at
// the last newline or space inside the window when one exists.
func splitMessage(content string, max int) []string {
	if len(content) <= max {
		return []string{content}
	}

	var chunks []string
	remaining := content
	for len(remaining) > max {
		cut := max
		window := remaining[:max]
		if i := strings.LastIndexByte(window, '\n'); i > 0 {
			cut = i + 1
		} else if i := strings.LastIndexByte(window, ' '); i > 0 {
			cut = i + 1
		}
		chunks = append(chunks, strings.TrimRight(remaining[:cut], " \n"))
		remaining = remaining[cut:]
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}
