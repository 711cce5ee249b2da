package capture

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mhollis/marginote/backend/internal/analysis/pattern"
	"github.com/mhollis/marginote/backend/internal/model/book"
	"github.com/mhollis/marginote/backend/internal/model/capture"
)

func duneSession() *capture.Session {
	start := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	return &capture.Session{
		ID:        "sess-1",
		Book:      &book.Ref{ID: "dune", Title: "Dune"},
		StartedAt: start,
		EndedAt:   start.Add(12 * time.Minute),
	}
}

var duneFragments = []string{
	`"fear is the mind-killer"`,
	"what does this mean for Paul",
	"I think this connects to the Bene Gesserit training",
}

func TestAggregateDuneSession(t *testing.T) {
	result := Aggregate(duneSession(), duneFragments)

	if len(result.Quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(result.Quotes))
	}
	if result.Quotes[0].Text != "fear is the mind-killer" {
		t.Fatalf("expected quote marks stripped, got %q", result.Quotes[0].Text)
	}
	if len(result.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(result.Questions))
	}
	if len(result.Notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(result.Notes))
	}
	if result.Notes[0].Kind != capture.NoteConnection {
		t.Fatalf("expected connection note, got %s", result.Notes[0].Kind)
	}

	if !strings.Contains(result.Summary, "Dune") {
		t.Fatalf("expected summary to mention the book, got %q", result.Summary)
	}
	if !strings.Contains(result.Summary, "1 quote(s), 1 note(s), 1 question(s)") {
		t.Fatalf("expected counts in summary, got %q", result.Summary)
	}
	if result.Duration != 12*time.Minute {
		t.Fatalf("expected 12m duration, got %s", result.Duration)
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	sess := duneSession()

	first := Aggregate(sess, duneFragments)
	second := Aggregate(sess, duneFragments)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results for identical input:\n%+v\n%+v", first, second)
	}
}

func TestAggregateSkipsEmptyFragments(t *testing.T) {
	result := Aggregate(duneSession(), []string{"", "   ", "\t"})

	if len(result.Quotes)+len(result.Notes)+len(result.Questions) != 0 {
		t.Fatalf("expected no artifacts from blank fragments, got %+v", result)
	}
	if !strings.Contains(result.Summary, "nothing captured") {
		t.Fatalf("expected generic summary, got %q", result.Summary)
	}
}

func TestAggregateEmptySession(t *testing.T) {
	result := Aggregate(duneSession(), nil)

	if result.Summary == "" {
		t.Fatal("expected a generic summary for an empty session")
	}
	if len(result.Quotes) != 0 || len(result.Notes) != 0 || len(result.Questions) != 0 {
		t.Fatalf("expected empty collections, got %+v", result)
	}
}

func TestAggregateWithoutBookOmitsTitle(t *testing.T) {
	sess := duneSession()
	sess.Book = nil

	result := Aggregate(sess, []string{"I feel this chapter drags"})

	if strings.Contains(result.Summary, "Dune") {
		t.Fatalf("unexpected book mention: %q", result.Summary)
	}
	if len(result.Notes) != 1 || result.Notes[0].Kind != capture.NoteReflection {
		t.Fatalf("expected one reflection note, got %+v", result.Notes)
	}
}

func TestAggregateReportsDominantPattern(t *testing.T) {
	fragments := []string{
		"this reminds me of the first chapter",
		"it also connects to the epigraphs, just like the appendix",
	}
	result := Aggregate(duneSession(), fragments)

	if !strings.Contains(result.Summary, "connecting") {
		t.Fatalf("expected dominant pattern in summary, got %q", result.Summary)
	}
	if result.Patterns[pattern.Connecting] < 2 {
		t.Fatalf("expected connecting counted per fragment, got %+v", result.Patterns)
	}
}
