package thread

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mhollis/marginote/backend/internal/model/book"
	"github.com/mhollis/marginote/backend/internal/model/thread"
)

// SQLiteStore is the durable storage collaborator. Writes go straight
// through; Save only verifies the connection is still healthy.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS threads (
	id        TEXT PRIMARY KEY,
	bookId    TEXT NOT NULL,
	bookTitle TEXT NOT NULL,
	createdAt INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_threads_book ON threads(bookId);
CREATE TABLE IF NOT EXISTS messages (
	id        TEXT PRIMARY KEY,
	threadId  TEXT NOT NULL REFERENCES threads(id),
	text      TEXT NOT NULL,
	fromUser  INTEGER NOT NULL,
	createdAt INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(threadId, createdAt);
`

// OpenSQLite opens (and if needed initializes) the thread database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindOrCreateThread returns the existing per-book thread or inserts one.
func (s *SQLiteStore) FindOrCreateThread(ctx context.Context, ref *book.Ref) (thread.Thread, error) {
	bookID, bookTitle := "", ""
	if ref != nil {
		bookID, bookTitle = ref.ID, ref.Title
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, bookId, bookTitle, createdAt FROM threads WHERE bookId = ?
	`, bookID)

	var t thread.Thread
	var createdAt int64
	err := row.Scan(&t.ID, &t.BookID, &t.BookTitle, &createdAt)
	if err == nil {
		t.CreatedAt = time.Unix(createdAt, 0).UTC()
		return t, nil
	}
	if err != sql.ErrNoRows {
		return thread.Thread{}, fmt.Errorf("scan thread: %w", err)
	}

	t = thread.Thread{
		ID:        uuid.NewString(),
		BookID:    bookID,
		BookTitle: bookTitle,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, bookId, bookTitle, createdAt) VALUES (?, ?, ?, ?)
	`, t.ID, t.BookID, t.BookTitle, t.CreatedAt.Unix()); err != nil {
		return thread.Thread{}, fmt.Errorf("insert thread: %w", err)
	}
	return t, nil
}

// AppendMessage appends one entry to a thread's history.
func (s *SQLiteStore) AppendMessage(ctx context.Context, threadID, text string, fromUser bool, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	from := 0
	if fromUser {
		from = 1
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, threadId, text, fromUser, createdAt) VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), threadID, text, from, at.Unix()); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Save verifies the connection; inserts are already committed.
func (s *SQLiteStore) Save(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// MessagesForBook returns the stored conversation for a book, oldest first.
func (s *SQLiteStore) MessagesForBook(ctx context.Context, bookID string) ([]thread.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.threadId, m.text, m.fromUser, m.createdAt
		FROM messages m
		JOIN threads t ON t.id = m.threadId
		WHERE t.bookId = ?
		ORDER BY m.createdAt ASC, m.rowid ASC
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []thread.Message
	for rows.Next() {
		var m thread.Message
		var from int
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Text, &from, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.FromUser = from == 1
		m.CreatedAt = time.Unix(createdAt, 0).UTC()
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
