// Package phonetic matches misheard words against a known vocabulary using
// Double Metaphone codes with Jaro-Winkler ranking.
//
// STT engines reliably mangle proper nouns the brain cares about ("Jarvis"
// comes back as "jar of us", "Novakeep" as "nova keep"). A candidate word or
// n-gram first has to share a Metaphone code with a vocabulary term; among
// those candidates the highest Jaro-Winkler score wins, subject to a
// threshold. When nothing aligns phonetically, a stricter pure-similarity
// fallback still catches near-misses in spelling.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a Matcher.
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for accepting a
// phonetically aligned term. Default 0.70.
func WithPhoneticThreshold(v float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = v }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for the
// no-phonetic-overlap fallback. Default 0.85.
func WithFuzzyThreshold(v float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = v }
}

// Matcher ranks vocabulary terms against candidate words. Read-only after
// construction, safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Matcher with the supplied options applied.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the vocabulary term most phonetically similar to word. word
// may be a space-separated n-gram; multi-word terms are compared token-wise
// as well as whole. When matched is false, corrected equals word unchanged.
func (m *Matcher) Match(word string, terms []string) (corrected string, confidence float64, matched bool) {
	wordLower := strings.ToLower(strings.TrimSpace(word))
	if wordLower == "" || len(terms) == 0 {
		return word, 0, false
	}
	wordTokens := strings.Fields(wordLower)
	wordCodes := metaphoneCodes(wordTokens)

	var (
		bestTerm     string
		bestScore    float64
		bestPhonetic bool
	)

	for _, term := range terms {
		termLower := strings.ToLower(strings.TrimSpace(term))
		if termLower == "" {
			continue
		}
		termTokens := strings.Fields(termLower)

		phonetic := codesOverlap(wordCodes, metaphoneCodes(termTokens))
		score := similarity(wordTokens, termTokens, wordLower, termLower)

		switch {
		case phonetic && score >= m.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				bestTerm, bestScore, bestPhonetic = term, score, true
			}
		case !phonetic && !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore:
			bestTerm, bestScore = term, score
		}
	}

	if bestTerm == "" {
		return word, 0, false
	}
	return bestTerm, bestScore, true
}

// metaphoneCodes returns the union of Double Metaphone codes over tokens.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score across three views: the full
// strings, the space-stripped strings ("nova keep" vs "novakeep"), and the
// best token pair.
func similarity(wordTokens, termTokens []string, wordFull, termFull string) float64 {
	score := matchr.JaroWinkler(wordFull, termFull, false)

	if len(wordTokens) > 1 || len(termTokens) > 1 {
		joined := matchr.JaroWinkler(strings.Join(wordTokens, ""), strings.Join(termTokens, ""), false)
		if joined > score {
			score = joined
		}
	}

	for _, wt := range wordTokens {
		for _, tt := range termTokens {
			if s := matchr.JaroWinkler(wt, tt, false); s > score {
				score = s
			}
		}
	}
	return score
}
