package pattern

import "strings"

// Pattern labels the kind of thinking a transcript fragment exhibits.
type Pattern string

const (
	Connecting   Pattern = "connecting"
	Analyzing    Pattern = "analyzing"
	Synthesizing Pattern = "synthesizing"
	Evaluating   Pattern = "evaluating"
	Reflecting   Pattern = "reflecting"
	Creating     Pattern = "creating"
)

// All lists every pattern in the fixed tie-break and reporting order.
var All = []Pattern{Connecting, Analyzing, Synthesizing, Evaluating, Reflecting, Creating}

var keywordBuckets = map[Pattern][]string{
	Connecting: {
		"reminds me", "similar to", "connects to", "relates to", "just like",
		"like when", "the same as", "parallels", "echoes", "ties back to",
	},
	Analyzing: {
		"because", "the reason", "this shows", "evidence", "therefore",
		"which means that", "breaking this down", "the cause", "leads to", "implies",
	},
	Synthesizing: {
		"overall", "in summary", "taken together", "the big picture",
		"putting it together", "all of this", "comes down to", "the common thread",
	},
	Evaluating: {
		"i agree", "i disagree", "better than", "worse than", "convincing",
		"not convincing", "effective", "flawed", "well argued", "overrated",
	},
	Reflecting: {
		"i feel", "makes me think", "i used to", "in my experience",
		"personally", "for me", "i remember when", "looking back",
	},
	Creating: {
		"what if", "imagine if", "i could write", "my own version",
		"inspired to", "i want to make", "a new way", "i would change",
	},
}

// Tag maps a fragment to the cognitive patterns it exhibits. A fragment
// may match zero, one, or several patterns. Pure function, never errors.
func Tag(text string) []Pattern {
	scores := scoreText(text)
	if len(scores) == 0 {
		return nil
	}

	matched := make([]Pattern, 0, len(scores))
	for _, p := range All {
		if scores[p] > 0 {
			matched = append(matched, p)
		}
	}
	return matched
}

// Primary returns the strongest pattern for a fragment, used as the
// classifier's note-subtype fallback. Ties resolve in fixed order.
func Primary(text string) (Pattern, bool) {
	scores := scoreText(text)

	best := Pattern("")
	bestScore := 0
	for _, p := range All {
		if s := scores[p]; s > bestScore {
			bestScore = s
			best = p
		}
	}

	if bestScore == 0 {
		return "", false
	}
	return best, true
}

func scoreText(text string) map[Pattern]int {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return nil
	}

	scores := make(map[Pattern]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label]++
			}
		}
	}
	return scores
}
