package task

import (
	"sync"
	"time"

	"github.com/novakeep/herald/pkg/types"
)

// ConversationStore holds per-speaker chat history. Appends and snapshots
// for one speaker serialize on that speaker's lock; different speakers never
// contend. History older than the idle TTL is discarded on the next append,
// so a stale thread does not bleed into a new conversation hours later.
type ConversationStore struct {
	cap     int
	idleTTL time.Duration

	mu        sync.Mutex
	bySpeaker map[string]*conversation
}

type conversation struct {
	mu       sync.Mutex
	msgs     []types.Message
	lastUsed time.Time
}

// NewConversationStore creates a store keeping at most capacity messages per
// speaker. idleTTL <= 0 disables idle pruning.
func NewConversationStore(capacity int, idleTTL time.Duration) *ConversationStore {
	return &ConversationStore{
		cap:       capacity,
		idleTTL:   idleTTL,
		bySpeaker: make(map[string]*conversation),
	}
}

// AppendUser appends a user message to speaker's history and returns a
// snapshot of the history including it. The snapshot is a copy: later
// appends by other tasks never mutate it.
func (s *ConversationStore) AppendUser(speaker, text string) []types.Message {
	c := s.get(speaker)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneIdle(s.idleTTL)
	c.append(types.Message{Role: types.RoleUser, Content: text}, s.cap)

	snap := make([]types.Message, len(c.msgs))
	copy(snap, c.msgs)
	return snap
}

// AppendAssistant appends an assistant message to speaker's history.
func (s *ConversationStore) AppendAssistant(speaker, text string) {
	c := s.get(speaker)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.append(types.Message{Role: types.RoleAssistant, Content: text}, s.cap)
}

// History returns a copy of speaker's current history.
func (s *ConversationStore) History(speaker string) []types.Message {
	c := s.get(speaker)
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (s *ConversationStore) get(speaker string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.bySpeaker[speaker]
	if !ok {
		c = &conversation{}
		s.bySpeaker[speaker] = c
	}
	return c
}

// append adds msg and evicts oldest entries past capacity. Caller holds c.mu.
func (c *conversation) append(msg types.Message, capacity int) {
	c.msgs = append(c.msgs, msg)
	if capacity > 0 && len(c.msgs) > capacity {
		c.msgs = append(c.msgs[:0:0], c.msgs[len(c.msgs)-capacity:]...)
	}
	c.lastUsed = time.Now()
}

// pruneIdle drops the whole history when it has sat unused longer than ttl.
// Caller holds c.mu.
func (c *conversation) pruneIdle(ttl time.Duration) {
	if ttl <= 0 || c.lastUsed.IsZero() {
		return
	}
	if time.Since(c.lastUsed) > ttl {
		c.msgs = nil
	}
}
