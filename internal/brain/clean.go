package brain

import (
	"strings"
	"unicode"
)

// The brain endpoint is instructed to answer in plain conversational prose,
// but residual formatting still leaks through: markdown emphasis, headings,
// bullets, fenced code blocks, and nested [[...]] macro tags. Everything here
// exists to keep that noise out of the TTS input and out of stored history.

// blockOpener describes a construct that must be removed as a whole span,
// because punctuation inside it must not trigger sentence boundaries.
type blockOpener struct {
	open  string
	close string
}

var blockOpeners = []blockOpener{
	{open: "```", close: "```"},
	{open: "[[", close: "]]"},
}

// stripBlocks removes every complete block construct from s and returns the
// remaining text plus the tail starting at the first unclosed opener. The
// tail must be withheld from sentence scanning until its closer arrives.
func stripBlocks(s string) (clean, tail string) {
	var b strings.Builder
	for {
		idx := -1
		var op blockOpener
		for _, cand := range blockOpeners {
			if i := strings.Index(s, cand.open); i >= 0 && (idx < 0 || i < idx) {
				idx, op = i, cand
			}
		}
		if idx < 0 {
			b.WriteString(s)
			return b.String(), ""
		}
		b.WriteString(s[:idx])
		rest := s[idx+len(op.open):]
		end := strings.Index(rest, op.close)
		if end < 0 {
			return b.String(), s[idx:]
		}
		s = rest[end+len(op.close):]
	}
}

// holdPartialOpener splits off a trailing fragment of s that could be the
// start of a block opener cut mid-chunk (a run of backticks or a trailing
// "["), so the next fragment can complete it.
func holdPartialOpener(s string) (clean, tail string) {
	i := len(s)
	for i > 0 {
		switch s[i-1] {
		case '`', '[':
			i--
		default:
			return s[:i], s[i:]
		}
	}
	return "", s
}

// cleanInline strips residual inline markdown from a sentence candidate:
// emphasis and code markers, heading and bullet prefixes, numbered-list
// prefixes. Whitespace is collapsed and the result trimmed.
func cleanInline(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = stripLinePrefix(line)
	}
	s = strings.Join(lines, " ")

	s = strings.NewReplacer(
		"**", "",
		"__", "",
		"*", "",
		"`", "",
	).Replace(s)

	// Underscores only when used as emphasis around a word, not inside
	// identifiers like snake_case.
	s = strings.TrimFunc(s, func(r rune) bool { return r == '_' })

	return strings.Join(strings.Fields(s), " ")
}

// stripLinePrefix removes leading markdown structure from one line: heading
// markers, bullet markers, and ordered-list numbering.
func stripLinePrefix(line string) string {
	trimmed := strings.TrimLeft(line, " \t")

	for len(trimmed) > 0 && trimmed[0] == '#' {
		trimmed = strings.TrimLeft(trimmed[1:], "#")
		trimmed = strings.TrimLeft(trimmed, " ")
	}

	if len(trimmed) >= 2 && (trimmed[0] == '-' || trimmed[0] == '+') && trimmed[1] == ' ' {
		return trimmed[2:]
	}
	if len(trimmed) >= 2 && trimmed[0] == '*' && trimmed[1] == ' ' {
		return trimmed[2:]
	}

	// Ordered list: digits followed by ". " or ") ".
	i := 0
	for i < len(trimmed) && unicode.IsDigit(rune(trimmed[i])) {
		i++
	}
	if i > 0 && i+1 < len(trimmed) && (trimmed[i] == '.' || trimmed[i] == ')') && trimmed[i+1] == ' ' {
		return trimmed[i+2:]
	}

	return trimmed
}

// CleanText strips all block constructs and inline markup from s. Used on
// the accumulated full reply before it is stored in conversation history.
func CleanText(s string) string {
	clean, tail := stripBlocks(s)
	// An unclosed block at end of text is dropped entirely — its content was
	// never meant to be spoken or remembered as prose.
	_ = tail
	return cleanInline(clean)
}
