// Package session keeps the voice connection alive across transport drops.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/novakeep/herald/pkg/audio"
)

const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// ReconnectorConfig configures a [Reconnector].
type ReconnectorConfig struct {
	// Platform establishes voice connections.
	Platform audio.Platform

	// GuildID and ChannelID identify the voice channel to hold.
	GuildID   string
	ChannelID string

	// MaxRetries bounds reconnection attempts per drop. Default 10.
	MaxRetries int

	// Backoff is the first retry delay; it doubles per attempt up to
	// MaxBackoff. Defaults 1s and 30s.
	Backoff    time.Duration
	MaxBackoff time.Duration

	// OnReconnect runs after a successful reconnection with the fresh
	// connection. The pipeline uses it to rewire frame handlers and discard
	// any utterance buffered across the gap. May be nil.
	OnReconnect func(audio.Connection)
}

// Reconnector holds one voice connection open, reconnecting with exponential
// backoff when a drop is signalled, so the assistant survives gateway blips
// without a restart.
//
// [Reconnector.Connect] makes the initial connection; [Reconnector.Monitor]
// starts the background watcher that reacts to
// [Reconnector.NotifyDisconnect]. All methods are safe for concurrent use.
type Reconnector struct {
	cfg ReconnectorConfig

	mu       sync.Mutex
	conn     audio.Connection
	done     chan struct{}
	stopOnce sync.Once
	dropped  chan struct{} // one-slot disconnect signal
}

// NewReconnector creates a Reconnector, applying defaults to zero-value
// retry and backoff settings.
func NewReconnector(cfg ReconnectorConfig) *Reconnector {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	return &Reconnector{
		cfg:     cfg,
		done:    make(chan struct{}),
		dropped: make(chan struct{}, 1),
	}
}

// Connect joins the voice channel for the first time.
func (r *Reconnector) Connect(ctx context.Context) (audio.Connection, error) {
	conn, err := r.cfg.Platform.Connect(ctx, r.cfg.GuildID, r.cfg.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("reconnector initial connect: %w", err)
	}
	r.setConn(conn)
	return conn, nil
}

// Monitor starts the background watcher. It exits when ctx is cancelled or
// Stop is called.
func (r *Reconnector) Monitor(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case <-r.dropped:
				r.reconnect(ctx)
			}
		}
	}()
}

// NotifyDisconnect tells the watcher the connection is gone. Extra calls
// within one reconnection cycle are coalesced.
func (r *Reconnector) NotifyDisconnect() {
	select {
	case r.dropped <- struct{}{}:
	default:
	}
}

// Stop halts the watcher and disconnects the current connection. Safe to
// call more than once.
func (r *Reconnector) Stop() error {
	r.stopOnce.Do(func() { close(r.done) })

	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn != nil {
		return conn.Disconnect()
	}
	return nil
}

// Connection returns the live connection, or nil mid-reconnect.
func (r *Reconnector) Connection() audio.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn
}

func (r *Reconnector) setConn(conn audio.Connection) {
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
}

// reconnect retries the voice join until it succeeds, the retry budget runs
// out, or the reconnector is stopped.
func (r *Reconnector) reconnect(ctx context.Context) {
	wait := r.cfg.Backoff

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		default:
		}

		slog.Info("attempting reconnection",
			"channel_id", r.cfg.ChannelID,
			"attempt", attempt,
			"max_retries", r.cfg.MaxRetries,
			"backoff", wait,
		)

		conn, err := r.cfg.Platform.Connect(ctx, r.cfg.GuildID, r.cfg.ChannelID)
		if err == nil {
			r.mu.Lock()
			stale := r.conn
			r.conn = conn
			r.mu.Unlock()
			if stale != nil {
				_ = stale.Disconnect()
			}

			slog.Info("reconnected", "channel_id", r.cfg.ChannelID, "attempt", attempt)
			if r.cfg.OnReconnect != nil {
				r.cfg.OnReconnect(conn)
			}
			return
		}

		slog.Warn("reconnection attempt failed",
			"channel_id", r.cfg.ChannelID,
			"attempt", attempt,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-time.After(wait):
		}

		wait *= 2
		if wait > r.cfg.MaxBackoff {
			wait = r.cfg.MaxBackoff
		}
	}

	// Audio is suspended from here on, but the process keeps serving the
	// alert webhook and handoff paths.
	slog.Error("reconnection failed after max retries",
		"channel_id", r.cfg.ChannelID,
		"max_retries", r.cfg.MaxRetries,
	)
}
