package thread

import "time"

// Thread is the per-book conversation a session's output merges into.
type Thread struct {
	ID        string    `json:"id"`
	BookID    string    `json:"bookId,omitempty"`
	BookTitle string    `json:"bookTitle,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message persists one entry of a thread for audit/read-back.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Text      string    `json:"text"`
	FromUser  bool      `json:"fromUser"`
	CreatedAt time.Time `json:"createdAt"`
}
