package brain

import (
	"strings"
	"unicode"
)

// minSentenceRunes is the fewest letters or digits a cleaned candidate needs
// to be emitted on its own. Anything shorter ("Ok." is fine, a stray "A." or
// "." is not) is coalesced with the following sentence.
const minSentenceRunes = 2

// substantial reports whether s carries at least minSentenceRunes runes that
// are not punctuation, symbols, or spaces.
func substantial(s string) bool {
	n := 0
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		n++
		if n >= minSentenceRunes {
			return true
		}
	}
	return false
}

// sentenceScanner accumulates streamed completion fragments and emits
// complete sentences as they close. Punctuation inside code fences and
// [[...]] tags never produces a boundary: those spans are withheld from the
// scan buffer until their closer arrives, then dropped.
type sentenceScanner struct {
	held  string // raw tail starting at an unclosed block opener
	buf   string // block-free text awaiting a sentence boundary
	carry string // too-short candidate waiting to coalesce with the next one
}

// push appends a streamed fragment and returns every cleaned sentence that
// completed as a result, in order.
func (sc *sentenceScanner) push(fragment string) []string {
	clean, tail := stripBlocks(sc.held + fragment)
	if tail == "" {
		clean, tail = holdPartialOpener(clean)
	}
	sc.held = tail
	sc.buf += clean

	var out []string
	for {
		end, ok := sentenceEnd(sc.buf)
		if !ok {
			return out
		}
		candidate := sc.carry + sc.buf[:end]
		sc.buf = strings.TrimLeft(sc.buf[end:], " \t\n")
		sc.carry = ""

		cleaned := cleanInline(candidate)
		if !substantial(cleaned) {
			sc.carry = candidate + " "
			continue
		}
		out = append(out, cleaned)
	}
}

// flush emits whatever remains in the scanner as a final sentence, or ""
// when nothing substantial is left. An unclosed block at end of stream is
// discarded rather than spoken.
func (sc *sentenceScanner) flush() string {
	rest := sc.carry + sc.buf
	sc.held, sc.buf, sc.carry = "", "", ""

	cleaned := cleanInline(rest)
	if !substantial(cleaned) {
		return ""
	}
	return cleaned
}

// sentenceEnd finds the first sentence boundary in s: a '.', '!' or '?'
// followed by whitespace. End of buffer is not a boundary mid-stream —
// more of the sentence may still arrive.
func sentenceEnd(s string) (int, bool) {
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			switch s[i+1] {
			case ' ', '\t', '\n', '\r':
				return i + 1, true
			}
		}
	}
	return 0, false
}
