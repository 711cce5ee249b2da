package capture

import (
	"time"

	"github.com/mhollis/marginote/backend/internal/analysis/pattern"
)

// EventType identifies what a live session event describes.
type EventType string

const (
	EventState    EventType = "state"    // lifecycle transition
	EventPattern  EventType = "pattern"  // cognitive patterns spotted in a fragment
	EventAnswer   EventType = "answer"   // realtime question answered
	EventWarning  EventType = "warning"  // auto-stop warning raised
	EventResult   EventType = "result"   // final aggregation finished
	EventSwitched EventType = "switched" // session rebound to a new book
)

// Event is the advisory live feed emitted by the lifecycle manager.
// The websocket and SSE surfaces relay these; the aggregated result
// remains the only authoritative output.
type Event struct {
	Type      EventType          `json:"type"`
	SessionID string             `json:"sessionId"`
	State     string             `json:"state,omitempty"`
	Text      string             `json:"text,omitempty"`
	Answer    string             `json:"answer,omitempty"`
	Patterns  []pattern.Pattern  `json:"patterns,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	Result    *SessionResult     `json:"result,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}
