// Package task owns the lifecycle of in-flight brain tasks: one utterance,
// one task, one goroutine. The manager hands out monotonic task ids, keeps a
// cancel handle per live task, and is the single writer of conversation
// history, so the one-assistant-append-per-task rule holds no matter how the
// work function exits.
package task

import (
	"context"
	"log/slog"
	"sync"

	"github.com/novakeep/herald/pkg/types"
)

// AckText is spoken on the priority lane when a dispatch lands while another
// task is already running.
const AckText = "On it."

// Task is the unit of work handed to the work function.
type Task struct {
	// ID is the monotonic task identifier.
	ID int64

	// Speaker is the platform user ID the transcript came from.
	Speaker string

	// Transcript is the admitted, wake-stripped text.
	Transcript string

	// History is the conversation snapshot taken at dispatch, including the
	// transcript's own user entry. Immutable.
	History []types.Message
}

// Outcome reports how a task's work ended.
type Outcome struct {
	// FullText is the complete assistant reply, cleaned.
	FullText string

	// Aborted is true when the task was cancelled mid-stream.
	Aborted bool

	// Err is non-nil when the brain stream failed.
	Err error
}

// WorkFunc runs one task's pipeline (brain → synthesis → playback). It must
// honor ctx and return promptly after cancellation.
type WorkFunc func(ctx context.Context, t Task) Outcome

// Clearer drops queued playback and stops the current segment.
type Clearer interface {
	Clear()
}

// Manager dispatches and cancels tasks. Safe for concurrent use.
type Manager struct {
	conv  *ConversationStore
	work  WorkFunc
	queue Clearer
	log   *slog.Logger

	// onBusyAck runs when a dispatch finds another task already active.
	onBusyAck func()

	mu     sync.Mutex
	nextID int64
	tasks  map[int64]context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager. queue may be nil in tests; onBusyAck may be
// nil to disable the busy acknowledgment.
func NewManager(conv *ConversationStore, work WorkFunc, queue Clearer, onBusyAck func(), log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		conv:      conv,
		work:      work,
		queue:     queue,
		onBusyAck: onBusyAck,
		log:       log,
		tasks:     make(map[int64]context.CancelFunc),
	}
}

// Dispatch records the transcript in conversation history, snapshots it, and
// starts a task goroutine. It returns the new task id without waiting for
// the work to finish. ctx bounds the task's whole lifetime.
func (m *Manager) Dispatch(ctx context.Context, speaker, transcript string) int64 {
	snapshot := m.conv.AppendUser(speaker, transcript)

	taskCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	busy := len(m.tasks) > 0
	m.tasks[id] = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	if busy && m.onBusyAck != nil {
		// The ack speaks through TTS; it must not delay the dispatch return
		// or the new task's worker.
		go m.onBusyAck()
	}

	t := Task{ID: id, Speaker: speaker, Transcript: transcript, History: snapshot}

	go func() {
		defer m.wg.Done()
		defer m.remove(id)
		defer cancel()

		out := m.work(taskCtx, t)
		switch {
		case out.Aborted:
			m.log.Debug("task aborted", "task_id", id, "speaker", speaker)
		case out.Err != nil:
			m.log.Warn("task failed", "task_id", id, "speaker", speaker, "error", out.Err)
		case out.FullText != "":
			m.conv.AppendAssistant(speaker, out.FullText)
		}
	}()

	return id
}

// CancelAll cancels every live task, clears the playback queue, and returns
// how many tasks were cancelled.
func (m *Manager) CancelAll() int {
	m.mu.Lock()
	n := len(m.tasks)
	for id, cancel := range m.tasks {
		cancel()
		delete(m.tasks, id)
	}
	m.mu.Unlock()

	if m.queue != nil {
		m.queue.Clear()
	}
	if n > 0 {
		m.log.Info("cancelled tasks", "count", n)
	}
	return n
}

// ActiveCount returns the number of live tasks.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Wait blocks until every dispatched task goroutine has returned. Used
// during shutdown after CancelAll.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// History returns a copy of speaker's conversation history.
func (m *Manager) History(speaker string) []types.Message {
	return m.conv.History(speaker)
}

func (m *Manager) remove(id int64) {
	m.mu.Lock()
	delete(m.tasks, id)
	m.mu.Unlock()
}
