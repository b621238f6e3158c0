// Package handoff routes task output to the text channel when the speaker
// has left the voice channel. Sentences produced by in-flight tasks are
// buffered per task and posted as one message when the task finishes, so a
// streamed reply arrives as a single readable post instead of a drip of
// fragments.
package handoff

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Marker prefixes every diverted post so readers can tell voice handoffs
// from ordinary messages.
const Marker = "🎙️→💬"

// sessionNoteWindow bounds how stale the last utterance may be for the
// "session ended" note to still be worth posting.
const sessionNoteWindow = 2 * time.Minute

// TextPoster posts a message to the fallback text channel.
type TextPoster interface {
	PostText(ctx context.Context, text string) error
}

// Router tracks the designated speaker's presence and diverts sentences
// while they are absent. Safe for concurrent use.
type Router struct {
	poster TextPoster
	log    *slog.Logger

	present atomic.Bool

	mu            sync.Mutex
	buffers       map[int64][]string
	lastUtterance time.Time
}

// New creates a Router. Presence starts false until the first transition.
func New(poster TextPoster, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		poster:  poster,
		log:     log,
		buffers: make(map[int64][]string),
	}
}

// SetPresent records a presence transition for the designated speaker.
func (r *Router) SetPresent(present bool) {
	r.present.Store(present)
}

// Present reports whether the designated speaker is in the voice channel.
func (r *Router) Present() bool {
	return r.present.Load()
}

// NoteUserUtterance records activity for the session-ended note window.
func (r *Router) NoteUserUtterance(at time.Time) {
	r.mu.Lock()
	r.lastUtterance = at
	r.mu.Unlock()
}

// Divert buffers one sentence for taskID. Called instead of synthesis while
// the speaker is absent.
func (r *Router) Divert(taskID int64, sentence string) {
	r.mu.Lock()
	r.buffers[taskID] = append(r.buffers[taskID], sentence)
	r.mu.Unlock()
}

// Pending reports whether taskID has buffered sentences.
func (r *Router) Pending(taskID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers[taskID]) > 0
}

// Flush posts taskID's buffered sentences as one marked message and releases
// the buffer. A task with nothing buffered flushes to a no-op.
func (r *Router) Flush(ctx context.Context, taskID int64) error {
	r.mu.Lock()
	sentences := r.buffers[taskID]
	delete(r.buffers, taskID)
	r.mu.Unlock()

	if len(sentences) == 0 {
		return nil
	}
	body := fmt.Sprintf("%s %s", Marker, strings.Join(sentences, " "))
	if err := r.poster.PostText(ctx, body); err != nil {
		return fmt.Errorf("posting handoff for task %d: %w", taskID, err)
	}
	r.log.Info("handed off reply to text channel", "task_id", taskID, "sentences", len(sentences))
	return nil
}

// Drop discards taskID's buffer without posting. Used when a task aborts.
func (r *Router) Drop(taskID int64) {
	r.mu.Lock()
	delete(r.buffers, taskID)
	r.mu.Unlock()
}

// NoteSessionEnded posts a short closing note after the speaker leaves with
// no tasks in flight. Nothing is posted when the last utterance is older
// than the note window or lastTopic is empty.
func (r *Router) NoteSessionEnded(ctx context.Context, lastTopic string) error {
	r.mu.Lock()
	last := r.lastUtterance
	r.mu.Unlock()

	if lastTopic == "" || last.IsZero() || time.Since(last) > sessionNoteWindow {
		return nil
	}
	body := fmt.Sprintf("%s session ended, last topic: %s", Marker, lastTopic)
	if err := r.poster.PostText(ctx, body); err != nil {
		return fmt.Errorf("posting session note: %w", err)
	}
	return nil
}
