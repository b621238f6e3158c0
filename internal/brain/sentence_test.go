package brain

import (
	"reflect"
	"testing"
)

func TestScannerEmitsOnBoundaries(t *testing.T) {
	t.Parallel()

	var sc sentenceScanner
	var got []string

	got = append(got, sc.push("Hello there. How are")...)
	got = append(got, sc.push(" you today? I am")...)
	got = append(got, sc.push(" fine!")...)
	if last := sc.flush(); last != "" {
		got = append(got, last)
	}

	want := []string{"Hello there.", "How are you today?", "I am fine!"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sentences = %q, want %q", got, want)
	}
}

func TestScannerBoundarySplitAcrossChunks(t *testing.T) {
	t.Parallel()

	var sc sentenceScanner
	if out := sc.push("Done."); len(out) != 0 {
		t.Fatalf("emitted %q before whitespace confirmed the boundary", out)
	}
	out := sc.push(" Next part")
	if want := []string{"Done."}; !reflect.DeepEqual(out, want) {
		t.Errorf("sentences = %q, want %q", out, want)
	}
}

func TestScannerIgnoresPunctuationInsideBlocks(t *testing.T) {
	t.Parallel()

	var sc sentenceScanner
	var got []string

	got = append(got, sc.push("Sure. ```go\nx := a")...)
	got = append(got, sc.push(".b() // neat!\n``` That does it. ")...)

	want := []string{"Sure.", "That does it."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sentences = %q, want %q", got, want)
	}
}

func TestScannerIgnoresPunctuationInsideTags(t *testing.T) {
	t.Parallel()

	var sc sentenceScanner
	var got []string

	got = append(got, sc.push("Checking. [[search: what? ")...)
	got = append(got, sc.push("when!]] Found it. ")...)

	want := []string{"Checking.", "Found it."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sentences = %q, want %q", got, want)
	}
}

func TestScannerCoalescesShortCandidates(t *testing.T) {
	t.Parallel()

	var sc sentenceScanner
	got := sc.push("A. short start works fine. ")
	want := []string{"A. short start works fine."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sentences = %q, want %q", got, want)
	}
}

func TestScannerFlushEmitsRemainder(t *testing.T) {
	t.Parallel()

	var sc sentenceScanner
	if out := sc.push("no closing punctuation here"); len(out) != 0 {
		t.Fatalf("emitted %q without a boundary", out)
	}
	if got, want := sc.flush(), "no closing punctuation here"; got != want {
		t.Errorf("flush() = %q, want %q", got, want)
	}
	if got := sc.flush(); got != "" {
		t.Errorf("second flush() = %q, want empty", got)
	}
}
