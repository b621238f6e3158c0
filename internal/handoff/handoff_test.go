package handoff_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/novakeep/herald/internal/handoff"
)

type postRecorder struct {
	mu    sync.Mutex
	posts []string
	err   error
}

func (p *postRecorder) PostText(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.posts = append(p.posts, text)
	return nil
}

func (p *postRecorder) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.posts))
	copy(out, p.posts)
	return out
}

func TestPresenceFlag(t *testing.T) {
	t.Parallel()

	r := handoff.New(&postRecorder{}, nil)
	if r.Present() {
		t.Fatal("router starts present, want absent")
	}
	r.SetPresent(true)
	if !r.Present() {
		t.Fatal("Present() = false after SetPresent(true)")
	}
}

func TestFlushPostsSingleMarkedMessage(t *testing.T) {
	t.Parallel()

	posts := &postRecorder{}
	r := handoff.New(posts, nil)

	r.Divert(3, "First sentence.")
	r.Divert(3, "Second sentence.")
	r.Divert(9, "Other task.")

	if err := r.Flush(context.Background(), 3); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	got := posts.all()
	if len(got) != 1 {
		t.Fatalf("posts = %d, want exactly one per flushed task", len(got))
	}
	if !strings.HasPrefix(got[0], handoff.Marker) {
		t.Errorf("post %q missing handoff marker", got[0])
	}
	if !strings.Contains(got[0], "First sentence. Second sentence.") {
		t.Errorf("post %q missing joined reply", got[0])
	}
	if strings.Contains(got[0], "Other task.") {
		t.Errorf("post %q leaked another task's buffer", got[0])
	}

	// Buffer released: a second flush posts nothing.
	if err := r.Flush(context.Background(), 3); err != nil {
		t.Fatalf("second Flush() error = %v", err)
	}
	if len(posts.all()) != 1 {
		t.Error("second flush re-posted the buffer")
	}
}

func TestFlushEmptyTaskIsNoop(t *testing.T) {
	t.Parallel()

	posts := &postRecorder{}
	r := handoff.New(posts, nil)
	if err := r.Flush(context.Background(), 42); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(posts.all()) != 0 {
		t.Error("flush of an empty task posted a message")
	}
}

func TestDropDiscardsBuffer(t *testing.T) {
	t.Parallel()

	posts := &postRecorder{}
	r := handoff.New(posts, nil)
	r.Divert(5, "never delivered")
	r.Drop(5)

	if err := r.Flush(context.Background(), 5); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(posts.all()) != 0 {
		t.Error("dropped buffer was still posted")
	}
}

func TestFlushPropagatesPostError(t *testing.T) {
	t.Parallel()

	posts := &postRecorder{err: errors.New("channel gone")}
	r := handoff.New(posts, nil)
	r.Divert(1, "hello")

	if err := r.Flush(context.Background(), 1); err == nil {
		t.Fatal("Flush() error = nil, want post failure")
	}
}

func TestSessionEndedNote(t *testing.T) {
	t.Parallel()

	posts := &postRecorder{}
	r := handoff.New(posts, nil)

	// Recent utterance: note posted.
	r.NoteUserUtterance(time.Now())
	if err := r.NoteSessionEnded(context.Background(), "the weather"); err != nil {
		t.Fatalf("NoteSessionEnded() error = %v", err)
	}
	got := posts.all()
	if len(got) != 1 || !strings.Contains(got[0], "the weather") {
		t.Fatalf("posts = %q, want one note naming the topic", got)
	}

	// Stale utterance: nothing posted.
	stale := handoff.New(posts, nil)
	stale.NoteUserUtterance(time.Now().Add(-10 * time.Minute))
	if err := stale.NoteSessionEnded(context.Background(), "old topic"); err != nil {
		t.Fatalf("NoteSessionEnded() error = %v", err)
	}
	if len(posts.all()) != 1 {
		t.Error("stale session posted a note")
	}

	// No recorded utterance: nothing posted.
	fresh := handoff.New(posts, nil)
	if err := fresh.NoteSessionEnded(context.Background(), "topic"); err != nil {
		t.Fatalf("NoteSessionEnded() error = %v", err)
	}
	if len(posts.all()) != 1 {
		t.Error("note posted without any user utterance")
	}
}
