// Package brain turns admitted transcripts into spoken-ready sentences by
// streaming a chat completion and cutting the token stream at sentence
// boundaries. Formatting that survives the endpoint's plain-prose instruction
// (markdown, code fences, [[...]] tags) is stripped before anything reaches
// synthesis or history.
package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/novakeep/herald/pkg/provider/llm"
	"github.com/novakeep/herald/pkg/types"
)

const (
	defaultHistoryLimit = 6
	defaultMaxTokens    = 8192
	defaultTimeout      = 60 * time.Second

	// voiceStyle is prepended to every user turn so the brain answers in
	// speakable prose regardless of its own system prompt.
	voiceStyle = "Respond for spoken output: short conversational sentences, " +
		"no markdown, no bullet points, no code blocks."
)

// FallbackText is spoken when the brain cannot be reached at all.
const FallbackText = "I'm having trouble connecting right now. Try again?"

// ApologyText is spoken when a stream fails partway through.
const ApologyText = "I had trouble with that one. Try again?"

// Result is the outcome of one streamed completion.
type Result struct {
	// Text is the cleaned full reply, including sentences already emitted.
	Text string

	// Aborted is true when the caller's context was cancelled mid-stream.
	// Sentences emitted before the cancellation stand; nothing after it
	// was emitted.
	Aborted bool

	// Err is non-nil when the stream could not start or failed partway.
	Err error
}

// Client drives streamed completions against a chat-completion provider.
// It is read-only after construction and safe for concurrent use; each
// Stream call carries its own scanner state.
type Client struct {
	provider     llm.Provider
	user         string
	historyLimit int
	maxTokens    int
	timeout      time.Duration
	log          *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHistoryLimit caps how many prior history messages accompany each
// request.
func WithHistoryLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// WithMaxTokens caps the completion length per request.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTimeout bounds the total wall time of one streamed completion.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a Client. user is the opaque session identifier forwarded to
// the backend with every request.
func New(provider llm.Provider, user string, opts ...Option) *Client {
	c := &Client{
		provider:     provider,
		user:         user,
		historyLimit: defaultHistoryLimit,
		maxTokens:    defaultMaxTokens,
		timeout:      defaultTimeout,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream sends transcript (with the trailing history window) to the brain
// and invokes onSentence for every complete sentence as it closes, in order,
// from a single goroutine. It returns once the stream ends, fails, times
// out, or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, transcript string, history []types.Message, onSentence func(string)) Result {
	if err := ctx.Err(); err != nil {
		return Result{Aborted: true}
	}

	streamCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := llm.Request{
		Messages:  c.buildMessages(transcript, history),
		MaxTokens: c.maxTokens,
		User:      c.user,
	}

	ch, err := c.provider.StreamCompletion(streamCtx, req)
	if err != nil {
		return Result{Err: fmt.Errorf("starting completion stream: %w", err)}
	}

	var (
		raw     strings.Builder
		scanner sentenceScanner
		res     Result
	)

	emit := func(sentence string) {
		if res.Aborted {
			return
		}
		onSentence(sentence)
	}

loop:
	for {
		select {
		case <-streamCtx.Done():
			if ctx.Err() != nil {
				res.Aborted = true
			} else {
				res.Err = fmt.Errorf("completion stream: %w", streamCtx.Err())
			}
			break loop
		case chunk, ok := <-ch:
			if !ok {
				// The provider closes the channel on context expiry too, so
				// a close does not by itself mean the stream finished.
				if streamCtx.Err() != nil {
					if ctx.Err() != nil {
						res.Aborted = true
					} else {
						res.Err = fmt.Errorf("completion stream: %w", streamCtx.Err())
					}
					break loop
				}
				if s := scanner.flush(); s != "" {
					emit(s)
				}
				break loop
			}
			if chunk.FinishReason == "error" {
				res.Err = fmt.Errorf("completion stream failed: %s", chunk.Text)
				break loop
			}
			if chunk.Text == "" {
				continue
			}
			raw.WriteString(chunk.Text)
			for _, s := range scanner.push(chunk.Text) {
				emit(s)
			}
		}
	}

	res.Text = CleanText(raw.String())
	if res.Err != nil {
		c.log.Warn("brain stream failed", "error", res.Err, "partial_chars", len(res.Text))
	}
	return res
}

// buildMessages assembles the request prompt: the most recent history window
// followed by the style-prefixed current turn.
func (c *Client) buildMessages(transcript string, history []types.Message) []types.Message {
	if n := len(history); n > c.historyLimit {
		history = history[n-c.historyLimit:]
	}
	msgs := make([]types.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, types.Message{
		Role:    types.RoleUser,
		Content: voiceStyle + "\n\n" + transcript,
	})
	return msgs
}
