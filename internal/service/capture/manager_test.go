package capture

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mhollis/marginote/backend/internal/model/book"
	"github.com/mhollis/marginote/backend/internal/model/capture"
)

type stubSource struct {
	mu      sync.Mutex
	started int
	stopped int
	cleared int
}

func (s *stubSource) StartListening() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return nil
}

func (s *stubSource) StopListening() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

func (s *stubSource) ClearWorkingText() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
}

func (s *stubSource) clearedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}

func testManagerConfig() Config {
	return Config{
		SilenceDeadline: 5 * time.Second,
		MaxDuration:     time.Minute,
		WarningWindow:   time.Second,
		ResetDelay:      5 * time.Millisecond,
		Debounce:        25 * time.Millisecond,
	}
}

func awaitState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, still %s", want, m.State())
}

func TestFullSessionLifecycle(t *testing.T) {
	source := &stubSource{}
	threads := &stubThreads{}
	m := NewManager(testManagerConfig(), source, &stubAnswerer{}, threads, nil)

	dune := &book.Ref{ID: "dune", Title: "Dune"}
	if _, err := m.Start(dune); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if m.State() != StateListening {
		t.Fatalf("expected listening, got %s", m.State())
	}

	m.HandleTranscript(`"fear is the mind-killer"`)
	m.HandleTranscript("what does this mean for Paul")
	m.HandleTranscript("I think this connects to the Bene Gesserit training")

	if err := m.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if m.State() != StateProcessing {
		t.Fatalf("expected processing immediately after stop, got %s", m.State())
	}

	awaitState(t, m, StateCompleted)

	result, ok := m.Result()
	if !ok {
		t.Fatal("expected a result after completion")
	}
	if len(result.Quotes) != 1 || len(result.Notes) != 1 || len(result.Questions) != 1 {
		t.Fatalf("expected 1/1/1 artifacts, got %d/%d/%d",
			len(result.Quotes), len(result.Notes), len(result.Questions))
	}
	if !strings.Contains(result.Summary, "Dune") {
		t.Fatalf("expected summary to mention Dune, got %q", result.Summary)
	}

	var sawSummary bool
	for _, msg := range threads.snapshot() {
		if msg.ThreadID != "thread-dune" {
			t.Fatalf("expected persistence into the dune thread, got %q", msg.ThreadID)
		}
		if strings.Contains(msg.Text, "1 quote(s), 1 note(s), 1 question(s)") {
			sawSummary = true
		}
	}
	if !sawSummary {
		t.Fatal("expected the summary persisted to the thread")
	}
}

func TestStartWhileActiveRejected(t *testing.T) {
	m := NewManager(testManagerConfig(), nil, nil, nil, nil)
	if _, err := m.Start(nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := m.Start(nil); err != ErrSessionActive {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestStopWithoutSessionRejected(t *testing.T) {
	m := NewManager(testManagerConfig(), nil, nil, nil, nil)
	if err := m.Stop(); err != ErrNoActiveSession {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestEmptySessionCompletesWithGenericSummary(t *testing.T) {
	threads := &stubThreads{}
	m := NewManager(testManagerConfig(), nil, nil, threads, nil)

	if _, err := m.Start(nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	awaitState(t, m, StateCompleted)

	result, ok := m.Result()
	if !ok {
		t.Fatal("expected a result")
	}
	if len(result.Quotes)+len(result.Notes)+len(result.Questions) != 0 {
		t.Fatalf("expected empty collections, got %+v", result)
	}
	if !strings.Contains(result.Summary, "nothing captured") {
		t.Fatalf("expected generic summary, got %q", result.Summary)
	}
}

func TestCancelSkipsAggregationAndPersistence(t *testing.T) {
	source := &stubSource{}
	threads := &stubThreads{}
	m := NewManager(testManagerConfig(), source, nil, threads, nil)

	if _, err := m.Start(&book.Ref{ID: "dune", Title: "Dune"}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	m.HandleTranscript("I think this chapter is about fear")

	if err := m.Cancel(); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if m.State() != StateAborted {
		t.Fatalf("expected aborted, got %s", m.State())
	}

	// Give a would-be debounced aggregation time to fire; it must not.
	time.Sleep(100 * time.Millisecond)
	if m.State() != StateAborted {
		t.Fatalf("state changed after cancel: %s", m.State())
	}
	if _, ok := m.Result(); ok {
		t.Fatal("expected no result after cancel")
	}
	if len(threads.snapshot()) != 0 {
		t.Fatal("expected nothing persisted after cancel")
	}
}

func TestCancelDuringProcessing(t *testing.T) {
	cfg := testManagerConfig()
	cfg.Debounce = 250 * time.Millisecond
	threads := &stubThreads{}
	m := NewManager(cfg, nil, nil, threads, nil)

	if _, err := m.Start(nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	m.HandleTranscript("a stray thought")
	if err := m.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := m.Cancel(); err != nil {
		t.Fatalf("cancel from processing failed: %v", err)
	}

	time.Sleep(400 * time.Millisecond)
	if m.State() != StateAborted {
		t.Fatalf("expected aborted to stick, got %s", m.State())
	}
	if len(threads.snapshot()) != 0 {
		t.Fatal("expected nothing persisted after cancel")
	}
}

func TestSwitchBookWithoutContentRepoints(t *testing.T) {
	threads := &stubThreads{}
	m := NewManager(testManagerConfig(), nil, nil, threads, nil)

	if _, err := m.Start(&book.Ref{ID: "dune", Title: "Dune"}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	before, _ := m.Session()

	if err := m.SwitchBook(&book.Ref{ID: "frankenstein", Title: "Frankenstein"}); err != nil {
		t.Fatalf("switch failed: %v", err)
	}

	after, _ := m.Session()
	if after.ID != before.ID {
		t.Fatal("expected the same session to continue when nothing was buffered")
	}
	if after.Book == nil || after.Book.ID != "frankenstein" {
		t.Fatalf("expected book repointed, got %+v", after.Book)
	}
	if m.State() != StateListening {
		t.Fatalf("expected to keep listening, got %s", m.State())
	}
}

func TestSwitchBookWithContentClosesOldSession(t *testing.T) {
	threads := &stubThreads{}
	m := NewManager(testManagerConfig(), nil, nil, threads, nil)

	if _, err := m.Start(&book.Ref{ID: "dune", Title: "Dune"}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	before, _ := m.Session()
	m.HandleTranscript(`the book says "a beginning is a very delicate time"`)

	if err := m.SwitchBook(&book.Ref{ID: "frankenstein", Title: "Frankenstein"}); err != nil {
		t.Fatalf("switch failed: %v", err)
	}

	after, _ := m.Session()
	if after.ID == before.ID {
		t.Fatal("expected a brand-new session for the new book")
	}
	if m.State() != StateListening {
		t.Fatalf("expected new session listening, got %s", m.State())
	}

	messages := threads.snapshot()
	if len(messages) == 0 {
		t.Fatal("expected old session persisted before switching")
	}
	for _, msg := range messages {
		if msg.ThreadID != "thread-dune" {
			t.Fatalf("old content must land in the old book's thread, got %q", msg.ThreadID)
		}
	}
}

func TestAutoStopExpiryEndsSession(t *testing.T) {
	cfg := testManagerConfig()
	cfg.SilenceDeadline = 120 * time.Millisecond
	cfg.WarningWindow = 60 * time.Millisecond
	threads := &stubThreads{}
	m := NewManager(cfg, nil, nil, threads, nil)

	if _, err := m.Start(&book.Ref{ID: "dune", Title: "Dune"}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	m.HandleTranscript("note: silence follows")

	awaitState(t, m, StateCompleted)
	if _, ok := m.Result(); !ok {
		t.Fatal("expected expiry to aggregate like a manual stop")
	}
}

func TestIngestSchedulesSourceReset(t *testing.T) {
	source := &stubSource{}
	m := NewManager(testManagerConfig(), source, nil, nil, nil)

	if _, err := m.Start(nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	m.HandleTranscript("a fragment worth keeping")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if source.clearedCount() > 0 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("expected the source working text to be cleared after ingest")
}

func TestLiveQuestionEmitsAnswerEvent(t *testing.T) {
	var mu sync.Mutex
	var answers []string
	onEvent := func(ev capture.Event) {
		if ev.Type == capture.EventAnswer {
			mu.Lock()
			answers = append(answers, ev.Answer)
			mu.Unlock()
		}
	}

	threads := &stubThreads{}
	m := NewManager(testManagerConfig(), nil, &stubAnswerer{}, threads, onEvent)

	if _, err := m.Start(&book.Ref{ID: "dune", Title: "Dune"}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	m.HandleTranscript("what is the litany against fear")
	m.dispatcher.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(answers) != 1 || !strings.Contains(answers[0], "litany") {
		t.Fatalf("expected one live answer event, got %v", answers)
	}
}
