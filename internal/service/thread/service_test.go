package thread

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mhollis/marginote/backend/internal/model/book"
)

func TestFindOrCreateThreadIsStablePerBook(t *testing.T) {
	svc := NewService()
	ctx := context.Background()
	dune := &book.Ref{ID: "dune", Title: "Dune"}

	first, err := svc.FindOrCreateThread(ctx, dune)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := svc.FindOrCreateThread(ctx, dune)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected one thread per book, got %q and %q", first.ID, second.ID)
	}
	if first.BookTitle != "Dune" {
		t.Fatalf("expected book title recorded, got %q", first.BookTitle)
	}
}

func TestUnboundSessionsShareOneThread(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	first, err := svc.FindOrCreateThread(ctx, nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := svc.FindOrCreateThread(ctx, nil)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}

	if first.ID != second.ID {
		t.Fatal("expected all unbound sessions to share a thread")
	}
}

func TestAppendMessagePreservesOrder(t *testing.T) {
	svc := NewService()
	ctx := context.Background()
	th, err := svc.FindOrCreateThread(ctx, &book.Ref{ID: "dune", Title: "Dune"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	at := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	for _, text := range []string{"first", "second", "third"} {
		if err := svc.AppendMessage(ctx, th.ID, text, false, at); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	messages, err := svc.MessagesForBook(ctx, "dune")
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, want := range []string{"first", "second", "third"} {
		if messages[i].Text != want {
			t.Fatalf("message %d: expected %q, got %q", i, want, messages[i].Text)
		}
	}
}

func TestAppendToUnknownThread(t *testing.T) {
	svc := NewService()

	err := svc.AppendMessage(context.Background(), "missing", "text", false, time.Now())
	if !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
}

func TestMessagesForUnknownBook(t *testing.T) {
	svc := NewService()

	_, err := svc.MessagesForBook(context.Background(), "unknown")
	if !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
}
