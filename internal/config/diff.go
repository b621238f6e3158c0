package config

import (
	"maps"
	"slices"
)

// ExtrasDiff describes what changed between two YAML overlays.
// Only fields that can be safely hot-reloaded are tracked; env-derived
// settings are immutable for the life of the process.
type ExtrasDiff struct {
	// CorrectionsChanged is true when the substitution map or phonetic
	// vocabulary differ; the transcript corrector should be rebuilt.
	CorrectionsChanged bool

	// StopPhrasesChanged is true when the extra interrupt phrases differ;
	// the command router should be rebuilt.
	StopPhrasesChanged bool

	// WakePhrasesChanged is true when the extra wake phrases differ; the
	// wake gate should be rebuilt.
	WakePhrasesChanged bool
}

// Any reports whether the diff contains any change.
func (d ExtrasDiff) Any() bool {
	return d.CorrectionsChanged || d.StopPhrasesChanged || d.WakePhrasesChanged
}

// DiffExtras compares old and new overlays and returns what changed.
func DiffExtras(old, new *Extras) ExtrasDiff {
	return ExtrasDiff{
		CorrectionsChanged: !maps.Equal(old.Corrections, new.Corrections) ||
			!slices.Equal(old.Vocabulary, new.Vocabulary),
		StopPhrasesChanged: !slices.Equal(old.StopPhrases, new.StopPhrases),
		WakePhrasesChanged: !slices.Equal(old.WakePhrases, new.WakePhrases),
	}
}
