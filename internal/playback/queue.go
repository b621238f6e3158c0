// Package playback implements the single serialized audio playback queue.
//
// Every spoken segment in the system — brain reply sentences, stop
// confirmations, acknowledgments, the wake chime, alert briefings — passes
// through one [Queue]. The queue admits segments from any number of
// concurrent tasks and plays them strictly one at a time through a single
// worker goroutine, so at most one segment is ever audible.
//
// Segments carry a priority class: [ClassPriority] segments (confirmations,
// acks, chimes) are dequeued before [ClassVoice] segments regardless of
// arrival order. Within a class, order is FIFO.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/novakeep/herald/pkg/provider/tts"
)

// Class is the scheduling class of a queued segment.
type Class int

const (
	// ClassVoice is regular assistant speech synthesized from brain output.
	ClassVoice Class = iota

	// ClassPriority is short operational speech (acks, stop confirmations,
	// chimes, briefings) that jumps ahead of pending voice segments.
	ClassPriority
)

// Segment is one playable unit: the synthesis of exactly one sentence,
// tagged with the task that produced it. Segments are consumed once and
// released after playback.
type Segment struct {
	// TaskID identifies the producing task. Zero for fast-path segments
	// that have no task (chime, stop confirmation).
	TaskID int64

	// Text is the sentence the clip was synthesized from, kept for logs.
	Text string

	// Clip is the synthesized audio.
	Clip tts.Clip

	// Class selects the scheduling class.
	Class Class
}

// Player plays one clip to completion. Play blocks until the clip has
// finished or ctx is cancelled; cancellation must stop output promptly.
type Player interface {
	Play(ctx context.Context, clip tts.Clip) error
}

// Queue is the single serialized playback queue. All methods are safe for
// concurrent use. There is exactly one worker goroutine at any time; it is
// started lazily on the first enqueue after idle and exits when the queue
// drains.
type Queue struct {
	player Player

	mu       sync.Mutex
	priority []Segment // ClassPriority, FIFO
	voice    []Segment // ClassVoice, FIFO
	running  bool      // worker goroutine live
	playCtx  context.Context
	playStop context.CancelFunc
	closed   bool

	// playing mirrors "a segment is currently audible". Read lock-free by
	// the segmenter's barge-in check on every speaking-start event.
	playing atomic.Bool

	// bargedIn records that the most recent stop came from a barge-in, so
	// premature player returns are not mistaken for platform glitches.
	bargedIn atomic.Bool

	// onIdle, when set, runs each time the worker drains the queue and goes
	// idle. Used to trigger alert briefings at natural pauses.
	idleMu sync.Mutex
	onIdle func()

	wg sync.WaitGroup
}

// NewQueue creates a Queue that plays segments through player.
func NewQueue(player Player) *Queue {
	return &Queue{player: player}
}

// SetIdleFunc registers fn to run (on the worker goroutine) each time the
// queue transitions from playing to idle. Only one function may be
// registered; later calls replace it. Pass nil to remove.
func (q *Queue) SetIdleFunc(fn func()) {
	q.idleMu.Lock()
	q.onIdle = fn
	q.idleMu.Unlock()
}

// Enqueue appends seg to its class queue. If the queue is idle, the worker
// is started. Enqueue never blocks on playback.
func (q *Queue) Enqueue(seg Segment) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if seg.Class == ClassPriority {
		q.priority = append(q.priority, seg)
	} else {
		q.voice = append(q.voice, seg)
	}
	start := !q.running
	if start {
		q.running = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if start {
		go q.worker()
	}
}

// Clear drops every queued segment and stops the currently playing one.
// Safe to call from any goroutine, including concurrently with Enqueue.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.priority = nil
	q.voice = nil
	stop := q.playStop
	q.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// BargeIn marks the current stop as user-initiated and clears the queue.
// Called by the audio segmenter when sustained speech preempts playback.
func (q *Queue) BargeIn() {
	q.bargedIn.Store(true)
	q.Clear()
}

// ConsumeBargeIn reports whether a barge-in fired since the last call and
// resets the flag.
func (q *Queue) ConsumeBargeIn() bool {
	return q.bargedIn.Swap(false)
}

// Playing reports whether a segment is currently audible.
func (q *Queue) Playing() bool {
	return q.playing.Load()
}

// Len returns the number of queued (not yet playing) segments.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.priority) + len(q.voice)
}

// Close clears the queue, stops playback, and waits for the worker to exit.
// The queue accepts no segments after Close.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.Clear()
	q.wg.Wait()
}

// worker drains the queue one segment at a time. It is the only goroutine
// that touches the player, which is what upholds the single-player
// invariant.
func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		seg, ok := q.pop()
		if !ok {
			q.running = false
			q.mu.Unlock()
			q.notifyIdle()
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		q.playCtx, q.playStop = ctx, cancel
		q.mu.Unlock()

		q.playing.Store(true)
		err := q.player.Play(ctx, seg.Clip)
		q.playing.Store(false)

		q.mu.Lock()
		if q.playStop != nil {
			q.playStop()
			q.playCtx, q.playStop = nil, nil
		}
		q.mu.Unlock()

		if ctx.Err() != nil {
			// Interrupted playback: a consumed barge-in flag means the user
			// spoke over the assistant, anything else was Clear or Close.
			if q.ConsumeBargeIn() {
				slog.Debug("playback: segment preempted by barge-in", "task", seg.TaskID)
			}
		} else if err != nil {
			// Playback failed on its own: abandon this segment, keep going.
			slog.Warn("playback: segment abandoned", "task", seg.TaskID, "error", err)
		}
	}
}

// pop removes the next segment honouring class priority. Caller holds q.mu.
func (q *Queue) pop() (Segment, bool) {
	if len(q.priority) > 0 {
		seg := q.priority[0]
		q.priority[0] = Segment{}
		q.priority = q.priority[1:]
		return seg, true
	}
	if len(q.voice) > 0 {
		seg := q.voice[0]
		q.voice[0] = Segment{}
		q.voice = q.voice[1:]
		return seg, true
	}
	return Segment{}, false
}

func (q *Queue) notifyIdle() {
	q.idleMu.Lock()
	fn := q.onIdle
	q.idleMu.Unlock()
	if fn != nil {
		fn()
	}
}
