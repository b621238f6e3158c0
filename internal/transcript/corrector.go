// Package transcript implements the vocabulary correction pass applied to
// recognized text before it reaches the wake gate.
//
// Two stages run over the token stream. Exact substitutions fix the
// deterministic mishearings operators already know about ("jar of us" →
// "Jarvis"); they are configured as misheard-phrase → replacement pairs and
// matched case-insensitively over n-grams. The phonetic stage then aligns
// remaining tokens against the configured vocabulary using Double Metaphone
// and Jaro-Winkler, catching the long tail of mangled proper nouns.
package transcript

import (
	"strings"
	"unicode"

	"github.com/novakeep/herald/internal/transcript/phonetic"
)

// Matcher aligns a candidate word or n-gram against vocabulary terms.
// Implemented by [phonetic.Matcher].
type Matcher interface {
	Match(word string, terms []string) (corrected string, confidence float64, matched bool)
}

// Corrector applies vocabulary fixes to recognized text. Read-only after
// construction, safe for concurrent use.
type Corrector struct {
	subs        map[string]string
	maxSubWords int

	vocab         []string
	matcher       Matcher
	maxVocabWords int
}

// Option configures a Corrector.
type Option func(*Corrector)

// WithMatcher sets the phonetic matcher. Nil disables the phonetic stage.
func WithMatcher(m Matcher) Option {
	return func(c *Corrector) { c.matcher = m }
}

// NewCorrector builds a Corrector from substitution pairs and a vocabulary.
// Substitution keys are matched case-insensitively and may span several
// words. By default the phonetic stage uses [phonetic.New]; pass
// WithMatcher(nil) to run substitutions only.
func NewCorrector(substitutions map[string]string, vocabulary []string, opts ...Option) *Corrector {
	c := &Corrector{
		subs:    make(map[string]string, len(substitutions)),
		matcher: phonetic.New(),
	}
	for k, v := range substitutions {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || v == "" {
			continue
		}
		c.subs[key] = v
		if n := len(strings.Fields(key)); n > c.maxSubWords {
			c.maxSubWords = n
		}
	}
	for _, term := range vocabulary {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		c.vocab = append(c.vocab, term)
		if n := len(strings.Fields(term)); n > c.maxVocabWords {
			c.maxVocabWords = n
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Correct returns text with both correction stages applied. Punctuation
// attached to replaced tokens is preserved.
func (c *Corrector) Correct(text string) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text
	}

	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		if repl, n, ok := c.substituteAt(tokens, i); ok {
			out = append(out, repl)
			i += n
			continue
		}
		if repl, n, ok := c.phoneticAt(tokens, i); ok {
			out = append(out, repl)
			i += n
			continue
		}
		out = append(out, tokens[i])
		i++
	}
	return strings.Join(out, " ")
}

// substituteAt tries exact substitutions anchored at tokens[i], longest
// n-gram first. Returns the replacement with the original edge punctuation
// re-attached and the number of tokens consumed.
func (c *Corrector) substituteAt(tokens []string, i int) (string, int, bool) {
	for n := minInt(c.maxSubWords, len(tokens)-i); n >= 1; n-- {
		key, lead, trail := normalizeNGram(tokens[i : i+n])
		if repl, ok := c.subs[key]; ok {
			return lead + repl + trail, n, true
		}
	}
	return "", 0, false
}

// phoneticAt tries the phonetic matcher anchored at tokens[i], longest
// n-gram first.
func (c *Corrector) phoneticAt(tokens []string, i int) (string, int, bool) {
	if c.matcher == nil || len(c.vocab) == 0 {
		return "", 0, false
	}
	for n := minInt(c.maxVocabWords, len(tokens)-i); n >= 1; n-- {
		candidate, lead, trail := normalizeNGram(tokens[i : i+n])
		if candidate == "" {
			continue
		}
		corrected, _, matched := c.matcher.Match(candidate, c.vocab)
		if matched && !strings.EqualFold(corrected, candidate) {
			return lead + corrected + trail, n, true
		}
	}
	return "", 0, false
}

// normalizeNGram lowercases and joins tokens, splitting off the leading
// punctuation of the first token and the trailing punctuation of the last.
func normalizeNGram(tokens []string) (key, lead, trail string) {
	first := tokens[0]
	last := tokens[len(tokens)-1]

	lead = first[:len(first)-len(strings.TrimLeftFunc(first, isEdgePunct))]
	trail = last[len(strings.TrimRightFunc(last, isEdgePunct)):]

	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = strings.ToLower(strings.TrimFunc(t, isEdgePunct))
	}
	return strings.Join(parts, " "), lead, trail
}

func isEdgePunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
