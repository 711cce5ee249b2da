package capture

import (
	"time"

	"github.com/mhollis/marginote/backend/internal/model/book"
)

// Session is one bounded listening interval, optionally bound to a book.
// It is owned exclusively by the lifecycle manager while active and
// becomes immutable once EndedAt is set and Result is populated.
type Session struct {
	ID        string         `json:"id"`
	Book      *book.Ref      `json:"book,omitempty"`
	StartedAt time.Time      `json:"startedAt"`
	EndedAt   time.Time      `json:"endedAt,omitempty"`
	Result    *SessionResult `json:"result,omitempty"`
}

// BookTitle returns the bound book title or "" when the session is unbound.
func (s *Session) BookTitle() string {
	if s == nil || s.Book == nil {
		return ""
	}
	return s.Book.Title
}
