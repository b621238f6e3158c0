package command_test

import (
	"testing"

	"github.com/novakeep/herald/internal/command"
)

func TestIsStop(t *testing.T) {
	t.Parallel()

	d := command.NewDetector([]string{"enough already"}, []string{"jarvis"})

	stops := []string{
		"stop",
		"Stop!",
		"STOP.",
		"cancel",
		"stop talking",
		"That's enough.",
		"hold on",
		"Wait",
		"jarvis stop",
		"Jarvis, stop talking",
		"enough already",
	}
	for _, s := range stops {
		if !d.IsStop(s) {
			t.Errorf("IsStop(%q) = false, want true", s)
		}
	}

	notStops := []string{
		"",
		"please stop by the store on your way home",
		"don't stop",
		"when does the bus stop running",
		"can you wait until tomorrow",
		"stopwatch",
	}
	for _, s := range notStops {
		if d.IsStop(s) {
			t.Errorf("IsStop(%q) = true, want false", s)
		}
	}
}

func TestIsWakeOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cleaned string
		want    bool
	}{
		{"", true},
		{".", true},
		{"?", true},
		{"a", true},
		{"hm", false},
		{"what time is it", false},
	}
	for _, tt := range tests {
		if got := command.IsWakeOnly(tt.cleaned); got != tt.want {
			t.Errorf("IsWakeOnly(%q) = %v, want %v", tt.cleaned, got, tt.want)
		}
	}
}
