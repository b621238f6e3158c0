// Package gate implements wake-word admission for transcripts.
//
// When wake-word mode is off every transcript is admitted unchanged. When it
// is on, a transcript is admitted if the speaker is inside their conversation
// window (a bounded interval after the assistant last responded to them), or
// if the transcript leads with a configured wake phrase — in which case the
// phrase is stripped before the transcript continues downstream.
package gate

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// tokenScanLimit is how many leading tokens are scanned for a wake phrase.
// STT occasionally prefixes filler ("um, hey Jarvis"), so the phrase is
// accepted anywhere within this window, not only at token zero.
const tokenScanLimit = 5

// Gate decides whether a transcript is addressed to the assistant.
// All methods are safe for concurrent use.
type Gate struct {
	enabled bool
	phrases []string // lowercased wake phrases
	window  time.Duration

	mu            sync.Mutex
	lastResponded map[string]time.Time // speakerID -> last assistant response
}

// New creates a Gate. phrases are matched case-insensitively; empty entries
// are dropped. When enabled is false, Admit always admits unchanged.
func New(enabled bool, phrases []string, window time.Duration) *Gate {
	g := &Gate{
		enabled:       enabled,
		window:        window,
		lastResponded: make(map[string]time.Time),
	}
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			g.phrases = append(g.phrases, p)
		}
	}
	return g
}

// Enabled reports whether wake-word mode is on.
func (g *Gate) Enabled() bool { return g.enabled }

// Admit decides whether transcript from speakerID should continue downstream.
// When admitted via a wake phrase, cleaned has the phrase stripped; otherwise
// cleaned equals transcript.
func (g *Gate) Admit(transcript, speakerID string, now time.Time) (admit bool, cleaned string) {
	if !g.enabled {
		return true, transcript
	}

	if g.windowOpen(speakerID, now) {
		return true, transcript
	}

	if stripped, ok := g.stripWakePhrase(transcript); ok {
		return true, stripped
	}
	return false, ""
}

// MarkAssistantResponded restarts speakerID's conversation window. Any
// assistant response opens the window, including error apologies.
func (g *Gate) MarkAssistantResponded(speakerID string) {
	g.mu.Lock()
	g.lastResponded[speakerID] = time.Now()
	g.mu.Unlock()
}

// WindowOpen reports whether speakerID's conversation window is open at now.
func (g *Gate) WindowOpen(speakerID string, now time.Time) bool {
	if !g.enabled {
		return true
	}
	return g.windowOpen(speakerID, now)
}

func (g *Gate) windowOpen(speakerID string, now time.Time) bool {
	g.mu.Lock()
	last, ok := g.lastResponded[speakerID]
	g.mu.Unlock()
	return ok && now.Sub(last) < g.window
}

// stripWakePhrase scans the transcript's leading tokens for a configured
// wake phrase and returns the transcript with the phrase (and anything
// before it) removed.
func (g *Gate) stripWakePhrase(transcript string) (string, bool) {
	tokens := strings.Fields(transcript)
	if len(tokens) == 0 {
		return "", false
	}

	limit := tokenScanLimit
	if limit > len(tokens) {
		limit = len(tokens)
	}

	for start := 0; start < limit; start++ {
		for _, phrase := range g.phrases {
			n, ok := phraseMatchesAt(tokens, start, phrase)
			if ok {
				rest := strings.Join(tokens[start+n:], " ")
				return strings.TrimSpace(rest), true
			}
		}
	}
	return "", false
}

// phraseMatchesAt reports whether phrase (lowercased, possibly multi-word)
// matches the tokens starting at index start, comparing case-insensitively
// and ignoring trailing punctuation on each token. Returns the number of
// tokens consumed.
func phraseMatchesAt(tokens []string, start int, phrase string) (int, bool) {
	words := strings.Fields(phrase)
	if start+len(words) > len(tokens) {
		return 0, false
	}
	for i, w := range words {
		tok := normalizeToken(tokens[start+i])
		if tok != w {
			return 0, false
		}
	}
	return len(words), true
}

// normalizeToken lowercases tok and trims leading/trailing punctuation, so
// "Jarvis," matches the phrase "jarvis".
func normalizeToken(tok string) string {
	return strings.ToLower(strings.TrimFunc(tok, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}))
}
