package thread

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mhollis/marginote/backend/internal/model/book"
	"github.com/mhollis/marginote/backend/internal/model/thread"
)

var ErrThreadNotFound = errors.New("thread not found")

// Service is the in-memory storage collaborator: one conversation
// thread per book identity, messages appended in arrival order.
type Service struct {
	mu       sync.RWMutex
	byBook   map[string]string // book id -> thread id ("" for unbound sessions)
	threads  map[string]thread.Thread
	messages map[string][]thread.Message
}

// NewService bootstraps the in-memory thread store suitable for early iterations.
func NewService() *Service {
	return &Service{
		byBook:   make(map[string]string),
		threads:  make(map[string]thread.Thread),
		messages: make(map[string][]thread.Message),
	}
}

// FindOrCreateThread returns the existing per-book thread or provisions one.
func (s *Service) FindOrCreateThread(_ context.Context, ref *book.Ref) (thread.Thread, error) {
	bookID, bookTitle := "", ""
	if ref != nil {
		bookID, bookTitle = ref.ID, ref.Title
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byBook[bookID]; ok {
		return s.threads[id], nil
	}

	t := thread.Thread{
		ID:        uuid.NewString(),
		BookID:    bookID,
		BookTitle: bookTitle,
		CreatedAt: time.Now().UTC(),
	}
	s.byBook[bookID] = t.ID
	s.threads[t.ID] = t
	s.messages[t.ID] = make([]thread.Message, 0, 16)
	return t, nil
}

// AppendMessage appends one entry to a thread's history.
func (s *Service) AppendMessage(_ context.Context, threadID, text string, fromUser bool, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[threadID]; !ok {
		return ErrThreadNotFound
	}

	s.messages[threadID] = append(s.messages[threadID], thread.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Text:      text,
		FromUser:  fromUser,
		CreatedAt: at,
	})
	return nil
}

// Save is a no-op for the in-memory store; writes are already durable
// for the lifetime of the process.
func (s *Service) Save(_ context.Context) error {
	return nil
}

// MessagesForBook returns the stored conversation for a book.
func (s *Service) MessagesForBook(_ context.Context, bookID string) ([]thread.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byBook[bookID]
	if !ok {
		return nil, ErrThreadNotFound
	}

	messages := s.messages[id]
	copied := make([]thread.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}
