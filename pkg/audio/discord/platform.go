// Package discord provides an [audio.Platform] implementation backed by
// Discord voice channels via the bwmarrin/discordgo library. It bridges
// Discord's Opus-based voice transport with Herald's PCM [audio.AudioFrame]
// pipeline.
//
// The platform requires an active *discordgo.Session (owned by the app
// layer). Each call to [Platform.Connect] joins the specified voice channel
// and returns a [Connection] that tags incoming audio with the speaking
// user's ID and muxes assistant audio output.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/novakeep/herald/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Platform = (*Platform)(nil)

// Platform implements [audio.Platform] using a discordgo voice connection.
// It requires an active *discordgo.Session (owned by the app layer).
//
// Platform is safe for concurrent use.
type Platform struct {
	session *discordgo.Session
}

// New creates a new Discord Platform for the given session.
func New(session *discordgo.Session) *Platform {
	return &Platform{session: session}
}

// Name implements [audio.Platform].
func (p *Platform) Name() string { return "discord" }

// Connect joins the voice channel identified by guildID and channelID and
// returns an active [audio.Connection]. The supplied ctx governs the
// connection-setup phase only; once the Connection is returned it lives
// until [Connection.Disconnect] is called.
func (p *Platform) Connect(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discord: connect: %w", err)
	}

	// Join the voice channel: mute=false (we send audio), deaf=false (we receive audio).
	vc, err := p.session.ChannelVoiceJoin(guildID, channelID, false, false)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}

	conn, err := newConnection(vc, p.session, guildID)
	if err != nil {
		_ = vc.Disconnect()
		return nil, fmt.Errorf("discord: create connection: %w", err)
	}
	return conn, nil
}
