// Package command identifies pre-brain fast paths in admitted transcripts:
// interrupt ("stop") commands and wake-only acknowledgments. Matching is
// deliberately strict — a stop pattern must cover the whole transcript, so
// a long sentence that merely contains "stop" never cancels anything.
package command

import (
	"strings"
	"unicode"
)

// defaultStopPhrases are the built-in interrupt commands. Extra phrases can
// be supplied through configuration.
var defaultStopPhrases = []string{
	"stop",
	"cancel",
	"stop talking",
	"that's enough",
	"thats enough",
	"hold on",
	"wait",
	"be quiet",
	"shut up",
	"never mind",
	"nevermind",
}

// Detector classifies transcripts against the stop-command set.
// It is read-only after construction and safe for concurrent use.
type Detector struct {
	stop        map[string]struct{}
	wakePhrases []string // lowercased; an optional prefix before a stop command
}

// NewDetector builds a Detector from the built-in stop phrases plus extras.
// wakePhrases may prefix a stop command ("jarvis stop") and are stripped
// before matching.
func NewDetector(extraStop, wakePhrases []string) *Detector {
	d := &Detector{stop: make(map[string]struct{}, len(defaultStopPhrases)+len(extraStop))}
	for _, p := range defaultStopPhrases {
		d.stop[p] = struct{}{}
	}
	for _, p := range extraStop {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			d.stop[p] = struct{}{}
		}
	}
	for _, p := range wakePhrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			d.wakePhrases = append(d.wakePhrases, p)
		}
	}
	return d
}

// IsStop reports whether transcript is an interrupt command. The transcript
// is lowercased, trailing punctuation is trimmed, and an optional leading
// wake phrase is removed; what remains must equal a stop phrase exactly.
func (d *Detector) IsStop(transcript string) bool {
	s := normalize(transcript)
	if s == "" {
		return false
	}
	if _, ok := d.stop[s]; ok {
		return true
	}
	for _, wake := range d.wakePhrases {
		if rest, ok := strings.CutPrefix(s, wake); ok {
			rest = strings.TrimLeft(rest, " ,")
			if _, ok := d.stop[rest]; ok {
				return true
			}
		}
	}
	return false
}

// IsWakeOnly reports whether cleaned — a transcript after wake-word
// stripping — carries no actual content: fewer than two non-punctuation
// characters. Such transcripts are treated as a listening acknowledgment.
func IsWakeOnly(cleaned string) bool {
	n := 0
	for _, r := range cleaned {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		n++
		if n >= 2 {
			return false
		}
	}
	return true
}

// normalize lowercases s, collapses inner whitespace, and trims trailing
// punctuation so "Stop!" and "stop" compare equal.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	return strings.Join(strings.Fields(s), " ")
}
