package capture

import (
	"time"

	"github.com/mhollis/marginote/backend/internal/analysis/pattern"
)

// NoteKind is the subtype assigned to a captured note.
type NoteKind string

const (
	NoteReflection NoteKind = "reflection"
	NoteInsight    NoteKind = "insight"
	NoteConnection NoteKind = "connection"
)

// Quote is a passage the reader asked to keep, with quote marks and
// marker phrases already stripped from Text.
type Quote struct {
	Text      string    `json:"text"`
	BookTitle string    `json:"bookTitle,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Note is a reflective remark captured alongside the reading.
type Note struct {
	Text      string    `json:"text"`
	Kind      NoteKind  `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Question is something the reader asked aloud while reading.
type Question struct {
	Text      string    `json:"text"`
	BookTitle string    `json:"bookTitle,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionResult is the aggregate view produced exactly once per session.
// It is rebuilt wholesale from the raw transcript, never patched.
type SessionResult struct {
	Quotes    []Quote                 `json:"quotes"`
	Notes     []Note                  `json:"notes"`
	Questions []Question              `json:"questions"`
	Patterns  map[pattern.Pattern]int `json:"patterns,omitempty"`
	Summary   string                  `json:"summary"`
	Duration  time.Duration           `json:"duration"`
}
