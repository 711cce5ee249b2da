package capture

import (
	"context"
	"time"

	"github.com/mhollis/marginote/backend/internal/model/book"
	"github.com/mhollis/marginote/backend/internal/model/thread"
)

// Source is the speech-capture collaborator. It pushes transcript and
// amplitude events into the manager from outside; the manager calls
// back to control it. ClearWorkingText is invoked a short delay after
// each ingest so the next emission starts a fresh utterance — that
// ingest-then-reset handshake is the dedup contract with the source.
type Source interface {
	StartListening() error
	StopListening() error
	ClearWorkingText()
}

// Answerer is the completion-service collaborator: fallible and slow,
// only ever called from fire-and-forget dispatcher jobs.
type Answerer interface {
	Answer(ctx context.Context, question string, ref *book.Ref) (string, error)
}

// ThreadStore is the storage collaborator. The pipeline never assumes
// its calls succeed; failures degrade to a log line.
type ThreadStore interface {
	FindOrCreateThread(ctx context.Context, ref *book.Ref) (thread.Thread, error)
	AppendMessage(ctx context.Context, threadID, text string, fromUser bool, at time.Time) error
	Save(ctx context.Context) error
}
