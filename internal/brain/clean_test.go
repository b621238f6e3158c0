package brain

import "testing"

func TestCleanText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello there.", "Hello there."},
		{"bold and italics", "That is **really** quite *nice*.", "That is really quite nice."},
		{"inline code", "Run `ls` to see files.", "Run ls to see files."},
		{"heading", "## Summary\nAll good.", "Summary All good."},
		{"bullets", "- first thing\n- second thing", "first thing second thing"},
		{"ordered list", "1. wake up\n2. make coffee", "wake up make coffee"},
		{"code fence removed", "Sure.\n```go\nfmt.Println(\"hi\")\n```\nDone.", "Sure. Done."},
		{"tag removed", "Let me check. [[lookup: weather today]] It's sunny.", "Let me check. It's sunny."},
		{"unclosed fence dropped", "Here you go.\n```python\nprint(1)", "Here you go."},
		{"whitespace collapsed", "too   many\n\nspaces", "too many spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripBlocksReturnsUnclosedTail(t *testing.T) {
	t.Parallel()

	clean, tail := stripBlocks("Before. [[tool: still strea")
	if clean != "Before. " {
		t.Errorf("clean = %q, want %q", clean, "Before. ")
	}
	if tail != "[[tool: still strea" {
		t.Errorf("tail = %q, want the unclosed construct", tail)
	}
}
