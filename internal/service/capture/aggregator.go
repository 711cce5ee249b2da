package capture

import (
	"fmt"
	"strings"

	"github.com/mhollis/marginote/backend/internal/analysis/classify"
	"github.com/mhollis/marginote/backend/internal/analysis/pattern"
	"github.com/mhollis/marginote/backend/internal/model/capture"
)

// Aggregate derives the final SessionResult from the raw transcript.
// It runs the classifier over every fragment in arrival order,
// independently of whatever the live path saw: the result is a full,
// deterministic re-derivation, reproducible from the transcript alone.
// Artifact timestamps come from the session, not the wall clock, so two
// runs over identical input produce identical output.
func Aggregate(sess *capture.Session, fragments []string) capture.SessionResult {
	stamp := sess.EndedAt
	if stamp.IsZero() {
		stamp = sess.StartedAt
	}
	title := sess.BookTitle()

	result := capture.SessionResult{}
	patternCounts := make(map[pattern.Pattern]int)

	for _, fragment := range fragments {
		for _, p := range pattern.Tag(fragment) {
			patternCounts[p]++
		}

		c, ok := classify.Classify(fragment, title)
		if !ok {
			continue
		}
		switch c.Kind {
		case classify.KindQuote:
			result.Quotes = append(result.Quotes, capture.Quote{Text: c.Text, BookTitle: c.BookTitle, Timestamp: stamp})
		case classify.KindQuestion:
			result.Questions = append(result.Questions, capture.Question{Text: c.Text, BookTitle: c.BookTitle, Timestamp: stamp})
		case classify.KindNote:
			result.Notes = append(result.Notes, capture.Note{Text: c.Text, Kind: c.NoteKind, Timestamp: stamp})
		}
	}

	if len(patternCounts) > 0 {
		result.Patterns = patternCounts
	}
	if !stamp.Before(sess.StartedAt) {
		result.Duration = stamp.Sub(sess.StartedAt)
	}
	result.Summary = buildSummary(title, result, patternCounts)

	return result
}

func buildSummary(title string, result capture.SessionResult, patternCounts map[pattern.Pattern]int) string {
	var b strings.Builder

	if title != "" {
		fmt.Fprintf(&b, "Reading session for %q: ", title)
	} else {
		b.WriteString("Reading session: ")
	}

	total := len(result.Quotes) + len(result.Notes) + len(result.Questions)
	if total == 0 {
		b.WriteString("nothing captured.")
		return b.String()
	}

	fmt.Fprintf(&b, "%d quote(s), %d note(s), %d question(s).",
		len(result.Quotes), len(result.Notes), len(result.Questions))

	if dominant, ok := dominantPattern(patternCounts); ok {
		fmt.Fprintf(&b, " Dominant thinking pattern: %s.", dominant)
	}

	return b.String()
}

// dominantPattern picks the most frequent pattern, ties resolving in
// the fixed category order.
func dominantPattern(counts map[pattern.Pattern]int) (pattern.Pattern, bool) {
	best := pattern.Pattern("")
	bestCount := 0
	for _, p := range pattern.All {
		if c := counts[p]; c > bestCount {
			bestCount = c
			best = p
		}
	}
	if bestCount == 0 {
		return "", false
	}
	return best, true
}
