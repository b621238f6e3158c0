// Package alert implements the priority inbox for webhook notifications and
// the HTTP ingress that feeds it. Alerts wait until the designated speaker
// can hear them: a briefing is spoken when they join the voice channel or at
// the next playback idle moment.
package alert

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Priority classifies an alert.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityNormal Priority = "normal"
)

const (
	// DefaultCapacity bounds the inbox; overflow evicts oldest normal first.
	DefaultCapacity = 50

	// DefaultTTL drops alerts nobody heard in time.
	DefaultTTL = 4 * time.Hour
)

// Alert is one queued notification.
type Alert struct {
	// Priority orders delivery: urgent before normal.
	Priority Priority

	// Message is the short spoken/displayed summary. Never empty.
	Message string

	// FullDetails optionally carries the long form for text delivery.
	FullDetails string

	// Source identifies the sending system.
	Source string

	// ReceivedAt is when the alert arrived.
	ReceivedAt time.Time
}

// Inbox is a bounded, TTL-pruned priority queue of alerts. Alerts are held
// sorted urgent-first, oldest-first within each priority, so a drain is
// already in delivery order. Safe for concurrent use.
type Inbox struct {
	capacity int
	ttl      time.Duration

	mu     sync.Mutex
	alerts []Alert
}

// NewInbox creates an Inbox. Zero capacity or ttl fall back to the defaults.
func NewInbox(capacity int, ttl time.Duration) *Inbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Inbox{capacity: capacity, ttl: ttl}
}

// Push queues one alert. A zero ReceivedAt is stamped with the current time.
// On overflow the oldest normal alert is evicted first; when everything
// queued is urgent, the oldest urgent goes.
func (i *Inbox) Push(a Alert) {
	if a.ReceivedAt.IsZero() {
		a.ReceivedAt = time.Now()
	}
	if a.Priority != PriorityUrgent {
		a.Priority = PriorityNormal
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.purgeExpired(time.Now())

	if len(i.alerts) >= i.capacity {
		i.evictOne()
	}
	i.alerts = insertSorted(i.alerts, a)
}

// Len returns the number of queued alerts, not counting expired ones.
func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.purgeExpired(time.Now())
	return len(i.alerts)
}

// DrainBriefing removes and returns every queued alert in delivery order:
// urgent before normal, oldest first within each priority. The batch is
// consumed; a second drain returns nothing until new alerts arrive.
func (i *Inbox) DrainBriefing() []Alert {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.purgeExpired(time.Now())

	out := i.alerts
	i.alerts = nil
	return out
}

// purgeExpired drops alerts older than the TTL. Caller holds i.mu.
func (i *Inbox) purgeExpired(now time.Time) {
	kept := i.alerts[:0]
	for _, a := range i.alerts {
		if now.Sub(a.ReceivedAt) <= i.ttl {
			kept = append(kept, a)
		}
	}
	i.alerts = kept
}

// evictOne removes the oldest normal alert, or the oldest urgent when no
// normal alerts remain. Caller holds i.mu.
func (i *Inbox) evictOne() {
	// Sorted layout: urgents first, then normals, oldest-first within each.
	for idx, a := range i.alerts {
		if a.Priority == PriorityNormal {
			i.alerts = append(i.alerts[:idx], i.alerts[idx+1:]...)
			return
		}
	}
	if len(i.alerts) > 0 {
		i.alerts = i.alerts[1:]
	}
}

// insertSorted places a in priority order: after every alert that outranks
// it or shares its priority with an earlier timestamp.
func insertSorted(alerts []Alert, a Alert) []Alert {
	idx := len(alerts)
	for j, existing := range alerts {
		if ranks(existing) < ranks(a) ||
			(ranks(existing) == ranks(a) && existing.ReceivedAt.After(a.ReceivedAt)) {
			idx = j
			break
		}
	}
	alerts = append(alerts, Alert{})
	copy(alerts[idx+1:], alerts[idx:])
	alerts[idx] = a
	return alerts
}

func ranks(a Alert) int {
	if a.Priority == PriorityUrgent {
		return 1
	}
	return 0
}

// BriefingText renders a drained batch as one short spoken summary: the
// count, the most urgent item first, then the rest.
func BriefingText(alerts []Alert) string {
	switch len(alerts) {
	case 0:
		return ""
	case 1:
		a := alerts[0]
		if a.Priority == PriorityUrgent {
			return fmt.Sprintf("One urgent alert: %s", sentence(a.Message))
		}
		return fmt.Sprintf("One alert: %s", sentence(a.Message))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d alerts. ", len(alerts))
	first := alerts[0]
	if first.Priority == PriorityUrgent {
		fmt.Fprintf(&b, "Most urgent: %s ", sentence(first.Message))
	} else {
		fmt.Fprintf(&b, "First: %s ", sentence(first.Message))
	}

	rest := make([]string, 0, len(alerts)-1)
	for _, a := range alerts[1:] {
		rest = append(rest, a.Message)
	}
	fmt.Fprintf(&b, "Also: %s.", strings.Join(rest, "; "))
	return b.String()
}

// sentence ensures msg reads as a complete sentence in the briefing.
func sentence(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return msg
	}
	switch msg[len(msg)-1] {
	case '.', '!', '?':
		return msg
	}
	return msg + "."
}
