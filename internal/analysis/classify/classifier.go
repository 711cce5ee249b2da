package classify

import (
	"strings"

	"github.com/mhollis/marginote/backend/internal/analysis/pattern"
	"github.com/mhollis/marginote/backend/internal/model/capture"
)

// Kind is the bucket a transcript fragment resolves to.
type Kind string

const (
	KindQuote    Kind = "quote"
	KindQuestion Kind = "question"
	KindNote     Kind = "note"
)

// Classification is the outcome for a single fragment. Text carries the
// extracted payload (quote span, question, or note body); NoteKind is
// set only when Kind is KindNote.
type Classification struct {
	Kind      Kind
	Text      string
	NoteKind  capture.NoteKind
	BookTitle string
}

// quotePhrases are the attribution markers that force quote capture.
// Matching is case-insensitive substring, first rule in precedence.
var quotePhrases = []string{
	"save this quote",
	"the book says",
	"according to",
	"writes",
	"wrote",
}

// interrogatives are sentence openers that mark a question.
var interrogatives = []string{"why", "how", "what", "when", "where", "who", "which"}

var questionPrefixes = []string{"can you", "could you", "would you", "do ", "does "}

var questionPhrases = []string{"i wonder", "i'm curious", "im curious", "tell me about"}

var connectionKeywords = []string{"similar to", "connects to", "reminds me"}

var insightKeywords = []string{"i realize", "this means", "insight"}

var reflectionKeywords = []string{"i think", "i feel", "my opinion"}

const minQuoteSpan = 10

// Classify buckets one raw transcript fragment. The precedence is fixed
// and load-bearing: explicit quote markers, then quoted spans, then
// question detection, then the note default. A fragment that trims to
// empty yields ok=false and no classification at all.
func Classify(raw, bookTitle string) (Classification, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Classification{}, false
	}

	lower := strings.ToLower(trimmed)

	// Rule 1: explicit quote markers. A trailing "?" does not demote
	// these to questions; the marker wins.
	if rest, ok := strings.CutPrefix(lower, "quote:"); ok {
		text := stripQuoteChars(strings.TrimSpace(trimmed[len(trimmed)-len(rest):]))
		return Classification{Kind: KindQuote, Text: text, BookTitle: bookTitle}, true
	}
	for _, phrase := range quotePhrases {
		idx := strings.Index(lower, phrase)
		if idx < 0 {
			continue
		}
		if span, ok := quotedSpan(trimmed, 0); ok {
			return Classification{Kind: KindQuote, Text: strings.TrimSpace(span), BookTitle: bookTitle}, true
		}
		// No quoted span: the text after the attribution phrase is the
		// best available quote body, falling back to the full fragment.
		text := strings.TrimSpace(strings.TrimLeft(trimmed[idx+len(phrase):], " ,:;-"))
		if text == "" {
			text = trimmed
		}
		return Classification{Kind: KindQuote, Text: stripQuoteChars(text), BookTitle: bookTitle}, true
	}

	// Rule 2: a quoted span long enough to be a deliberate passage.
	if span, ok := quotedSpan(trimmed, minQuoteSpan); ok {
		return Classification{Kind: KindQuote, Text: strings.TrimSpace(span), BookTitle: bookTitle}, true
	}

	// Rule 3: question detection.
	if isQuestion(trimmed, lower) {
		return Classification{Kind: KindQuestion, Text: trimmed, BookTitle: bookTitle}, true
	}

	// Rule 4: note default.
	text := trimmed
	notePrefix := false
	if rest, ok := strings.CutPrefix(lower, "note:"); ok {
		text = strings.TrimSpace(trimmed[len(trimmed)-len(rest):])
		notePrefix = true
		if text == "" {
			return Classification{}, false
		}
	}

	return Classification{Kind: KindNote, Text: text, NoteKind: noteKind(strings.ToLower(text), notePrefix)}, true
}

// noteKind resolves the subtype: explicit keywords first, then the
// tagger's primary pattern, then reflection as the terminal default.
func noteKind(lower string, notePrefix bool) capture.NoteKind {
	if containsAny(lower, connectionKeywords) {
		return capture.NoteConnection
	}
	if containsAny(lower, insightKeywords) {
		return capture.NoteInsight
	}
	if notePrefix || containsAny(lower, reflectionKeywords) {
		return capture.NoteReflection
	}

	primary, ok := pattern.Primary(lower)
	if !ok {
		return capture.NoteReflection
	}
	switch primary {
	case pattern.Connecting:
		return capture.NoteConnection
	case pattern.Analyzing, pattern.Synthesizing, pattern.Evaluating:
		return capture.NoteInsight
	default:
		return capture.NoteReflection
	}
}

func isQuestion(trimmed, lower string) bool {
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	for _, word := range interrogatives {
		if lower == word || strings.HasPrefix(lower, word+" ") {
			return true
		}
	}
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return containsAny(lower, questionPhrases)
}

// quotePairs are the delimiter pairs recognized for span extraction.
var quotePairs = [][2]rune{
	{'"', '"'},
	{'“', '”'}, // curly double
	{'\'', '\''},
}

// quotedSpan returns the first delimited span longer than minLen runes.
func quotedSpan(s string, minLen int) (string, bool) {
	for _, pair := range quotePairs {
		open := strings.IndexRune(s, pair[0])
		if open < 0 {
			continue
		}
		rest := s[open+len(string(pair[0])):]
		end := strings.IndexRune(rest, pair[1])
		if end < 0 {
			continue
		}
		inner := rest[:end]
		if len([]rune(inner)) > minLen {
			return inner, true
		}
	}
	return "", false
}

// stripQuoteChars removes double-quote characters anywhere and single
// quotes at the edges, leaving interior apostrophes intact.
func stripQuoteChars(s string) string {
	replacer := strings.NewReplacer(`"`, "", "“", "", "”", "")
	return strings.Trim(replacer.Replace(s), "'‘’ ")
}

func containsAny(s string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(s, phrase) {
			return true
		}
	}
	return false
}
