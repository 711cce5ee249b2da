package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mhollis/marginote/backend/internal/analysis/classify"
	"github.com/mhollis/marginote/backend/internal/analysis/pattern"
	"github.com/mhollis/marginote/backend/internal/model/book"
	"github.com/mhollis/marginote/backend/internal/model/capture"
)

var (
	ErrSessionActive   = errors.New("a capture session is already active")
	ErrNoActiveSession = errors.New("no active capture session")
)

// State is the lifecycle position of the managed session.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateAborted    State = "aborted"
)

// Config tunes one manager. Zero fields fall back to defaults.
type Config struct {
	SilenceDeadline    time.Duration
	MaxDuration        time.Duration
	WarningWindow      time.Duration
	ExtendIncrement    time.Duration
	ResetDelay         time.Duration
	Debounce           time.Duration
	AmplitudeThreshold float64
}

func (c Config) withDefaults() Config {
	if c.SilenceDeadline <= 0 {
		c.SilenceDeadline = 75 * time.Second
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 30 * time.Minute
	}
	if c.WarningWindow <= 0 {
		c.WarningWindow = 10 * time.Second
	}
	if c.ExtendIncrement <= 0 {
		c.ExtendIncrement = 5 * time.Minute
	}
	if c.ResetDelay <= 0 {
		c.ResetDelay = 100 * time.Millisecond
	}
	if c.Debounce <= 0 {
		c.Debounce = 500 * time.Millisecond
	}
	if c.AmplitudeThreshold <= 0 {
		c.AmplitudeThreshold = 0.05
	}
	return c
}

// Manager owns one session at a time and serializes every lifecycle
// transition: Idle -> Listening -> Processing -> Completed, with
// Aborted reachable from Listening or Processing. It is the single
// writer of session state; the monitor, the dispatcher jobs, and the
// debounced aggregation run concurrently but re-enter only through
// its public methods.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	source   Source
	answerer Answerer
	threads  ThreadStore
	onEvent  func(capture.Event) // advisory live feed; must not block

	state         State
	sess          *capture.Session
	buffer        *TranscriptBuffer
	monitor       *Monitor
	dispatcher    *Dispatcher
	threadID      string
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	finalizeTimer *time.Timer
	finalized     bool
	lastResult    *capture.SessionResult
}

// NewManager wires a manager to its collaborators. source, answerer,
// and onEvent may be nil; threads may be nil only if persistence is
// genuinely unwanted (every failure path degrades to a log line).
func NewManager(cfg Config, source Source, answerer Answerer, threads ThreadStore, onEvent func(capture.Event)) *Manager {
	return &Manager{
		cfg:        cfg.withDefaults(),
		source:     source,
		answerer:   answerer,
		threads:    threads,
		onEvent:    onEvent,
		state:      StateIdle,
		dispatcher: NewDispatcher(answerer, threads),
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the managed session, if any.
func (m *Manager) Session() (capture.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return capture.Session{}, false
	}
	return *m.sess, true
}

// Result returns the last completed session's aggregate, if any.
func (m *Manager) Result() (*capture.SessionResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastResult == nil {
		return nil, false
	}
	return m.lastResult, true
}

// Start begins a new session, optionally bound to a book. Valid when no
// session is active (Idle, or a previous session finished).
func (m *Manager) Start(ref *book.Ref) (capture.Session, error) {
	m.mu.Lock()
	if m.state == StateListening || m.state == StateProcessing {
		m.mu.Unlock()
		return capture.Session{}, ErrSessionActive
	}

	ev := m.startLocked(ref, true)
	sess := *m.sess
	m.mu.Unlock()

	m.emit(ev)
	return sess, nil
}

// startLocked provisions the new session. startCapture is false when
// switching books mid-capture, where the source never stopped.
func (m *Manager) startLocked(ref *book.Ref, startCapture bool) capture.Event {
	m.sess = &capture.Session{
		ID:        uuid.NewString(),
		Book:      ref,
		StartedAt: time.Now().UTC(),
	}
	m.buffer = NewTranscriptBuffer()
	m.dispatcher.Reset()
	m.finalized = false
	m.finalizeTimer = nil
	m.sessionCtx, m.sessionCancel = context.WithCancel(context.Background())
	m.threadID = m.resolveThreadLocked(ref)

	m.monitor = NewMonitor(MonitorConfig{
		SilenceDeadline:    m.cfg.SilenceDeadline,
		MaxDuration:        m.cfg.MaxDuration,
		WarningWindow:      m.cfg.WarningWindow,
		ExtendIncrement:    m.cfg.ExtendIncrement,
		AmplitudeThreshold: m.cfg.AmplitudeThreshold,
	})
	m.monitor.Start()
	go m.consumeSignals(m.sessionCtx, m.monitor, m.sess.ID)

	if startCapture && m.source != nil {
		if err := m.source.StartListening(); err != nil {
			log.Printf("[capture] start listening failed: %v", err)
		}
	}

	m.state = StateListening
	log.Printf("[capture] session %s listening book=%q", m.sess.ID, m.sess.BookTitle())
	return m.stateEventLocked()
}

func (m *Manager) resolveThreadLocked(ref *book.Ref) string {
	if m.threads == nil {
		return ""
	}
	th, err := m.threads.FindOrCreateThread(context.Background(), ref)
	if err != nil {
		log.Printf("[capture] find-or-create thread failed: %v", err)
		return ""
	}
	return th.ID
}

// HandleTranscript ingests one transcript fragment pushed by the
// capture source. Fragments arriving outside Listening are dropped.
// Ingest schedules the source's working-text reset, feeds the silence
// timer, and runs the advisory live path (pattern signal + realtime
// question dispatch). The authoritative classification happens later,
// in the aggregator.
func (m *Manager) HandleTranscript(text string) {
	m.mu.Lock()
	if m.state != StateListening {
		m.mu.Unlock()
		return
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		m.mu.Unlock()
		return
	}

	m.buffer.Append(text)
	m.monitor.ResetSilenceTimer()

	if m.source != nil {
		src := m.source
		time.AfterFunc(m.cfg.ResetDelay, src.ClearWorkingText)
	}

	sessID := m.sess.ID
	var events []capture.Event
	if tags := pattern.Tag(trimmed); len(tags) > 0 {
		events = append(events, capture.Event{
			Type:      capture.EventPattern,
			SessionID: sessID,
			Text:      trimmed,
			Patterns:  tags,
			Timestamp: time.Now().UTC(),
		})
	}

	if c, ok := classify.Classify(trimmed, m.sess.BookTitle()); ok && c.Kind == classify.KindQuestion {
		onAnswer := m.answerEventFunc(sessID)
		m.dispatcher.Dispatch(m.sessionCtx, c.Text, m.sess.Book, m.threadID, onAnswer)
	}
	m.mu.Unlock()

	m.emit(events...)
}

// HandleActivity feeds a voice-amplitude sample to the auto-stop monitor.
func (m *Manager) HandleActivity(level float64) {
	m.mu.Lock()
	mon := m.monitor
	listening := m.state == StateListening
	m.mu.Unlock()

	if listening && mon != nil {
		mon.NoteActivity(level)
	}
}

// Stop ends capture and schedules the debounced final aggregation.
// Valid only from Listening.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.state != StateListening {
		m.mu.Unlock()
		return ErrNoActiveSession
	}
	ev := m.stopLocked()
	m.mu.Unlock()

	m.emit(ev)
	return nil
}

// stopLocked transitions Listening -> Processing and arms the debounce
// timer that triggers aggregation after capture quiesces.
func (m *Manager) stopLocked() capture.Event {
	if m.source != nil {
		if err := m.source.StopListening(); err != nil {
			log.Printf("[capture] stop listening failed: %v", err)
		}
	}
	m.monitor.StopMonitoring()

	m.sess.EndedAt = time.Now().UTC()
	m.state = StateProcessing

	sessID := m.sess.ID
	m.finalizeTimer = time.AfterFunc(m.cfg.Debounce, func() { m.finalize(sessID) })

	log.Printf("[capture] session %s processing, aggregation in %s", sessID, m.cfg.Debounce)
	return m.stateEventLocked()
}

// finalize runs the aggregation exactly once per session, persists the
// outcome, and completes the lifecycle. Late or duplicate firings are
// ignored via the finalized flag and the session identity check.
func (m *Manager) finalize(sessionID string) {
	m.mu.Lock()
	if m.finalized || m.state != StateProcessing || m.sess == nil || m.sess.ID != sessionID {
		m.mu.Unlock()
		return
	}
	events := m.finalizeLocked()
	m.mu.Unlock()

	m.emit(events...)
}

func (m *Manager) finalizeLocked() []capture.Event {
	m.finalized = true

	result := Aggregate(m.sess, m.buffer.Snapshot())
	m.sess.Result = &result
	m.lastResult = &result

	m.persistLocked(result)

	m.state = StateCompleted
	log.Printf("[capture] session %s completed: %s", m.sess.ID, result.Summary)

	return []capture.Event{
		{
			Type:      capture.EventResult,
			SessionID: m.sess.ID,
			Result:    &result,
			Timestamp: time.Now().UTC(),
		},
		m.stateEventLocked(),
	}
}

// persistLocked hands the aggregate to the storage collaborator. Only
// texts and counts cross the boundary, never the result type itself.
// Storage failures are logged; the session still completes.
func (m *Manager) persistLocked(result capture.SessionResult) {
	if m.threads == nil {
		return
	}

	ctx := context.Background()
	threadID := m.threadID
	if threadID == "" {
		threadID = m.resolveThreadLocked(m.sess.Book)
	}
	if threadID == "" {
		log.Printf("[capture] no thread available, skipping persistence for session %s", m.sess.ID)
		return
	}

	at := m.sess.EndedAt
	appendLine := func(text string) {
		if err := m.threads.AppendMessage(ctx, threadID, text, false, at); err != nil {
			log.Printf("[capture] append message failed: %v", err)
		}
	}

	appendLine(result.Summary)
	for _, q := range result.Quotes {
		appendLine(fmt.Sprintf("Quote: %q", q.Text))
	}
	for _, n := range result.Notes {
		appendLine(fmt.Sprintf("Note (%s): %s", n.Kind, n.Text))
	}
	for _, q := range result.Questions {
		appendLine(fmt.Sprintf("Question: %s", q.Text))
	}

	if err := m.threads.Save(ctx); err != nil {
		log.Printf("[capture] save failed: %v", err)
	}
}

// SwitchBook rebinds the session to a new book. With buffered content
// the current session is closed out against the old book first —
// aggregation and persistence run immediately, not debounced, since the
// lock guarantees capture has quiesced — and a fresh session starts
// against the new book with capture uninterrupted. With nothing
// buffered yet, the book reference is simply repointed.
func (m *Manager) SwitchBook(ref *book.Ref) error {
	m.mu.Lock()
	if m.state != StateListening {
		m.mu.Unlock()
		return ErrNoActiveSession
	}

	var events []capture.Event
	if m.buffer.Len() == 0 {
		m.sess.Book = ref
		m.threadID = m.resolveThreadLocked(ref)
		events = append(events, capture.Event{
			Type:      capture.EventSwitched,
			SessionID: m.sess.ID,
			Text:      m.sess.BookTitle(),
			Timestamp: time.Now().UTC(),
		})
	} else {
		m.monitor.StopMonitoring()
		m.sess.EndedAt = time.Now().UTC()
		m.state = StateProcessing
		events = append(events, m.finalizeLocked()...)
		events = append(events, m.startLocked(ref, false))
	}
	m.mu.Unlock()

	m.emit(events...)
	return nil
}

// Cancel discards the session without aggregation or persistence.
// Valid from Listening or Processing; in-flight answering jobs are
// abandoned, their results discarded.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	if m.state != StateListening && m.state != StateProcessing {
		m.mu.Unlock()
		return ErrNoActiveSession
	}

	if m.sessionCancel != nil {
		m.sessionCancel()
	}
	if m.finalizeTimer != nil {
		m.finalizeTimer.Stop()
		m.finalizeTimer = nil
	}
	m.finalized = true
	m.monitor.StopMonitoring()
	if m.source != nil {
		if err := m.source.StopListening(); err != nil {
			log.Printf("[capture] stop listening failed: %v", err)
		}
	}

	m.state = StateAborted
	log.Printf("[capture] session %s aborted", m.sess.ID)
	ev := m.stateEventLocked()
	m.mu.Unlock()

	m.emit(ev)
	return nil
}

// Extend pushes the auto-stop hard cap out and dismisses its warning.
func (m *Manager) Extend() {
	m.mu.Lock()
	mon := m.monitor
	listening := m.state == StateListening
	m.mu.Unlock()

	if listening && mon != nil {
		mon.Extend()
	}
}

// consumeSignals relays monitor announcements for one session. An
// expiry is treated identically to a manual stop request.
func (m *Manager) consumeSignals(ctx context.Context, mon *Monitor, sessionID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-mon.Signals():
			if !ok {
				return
			}
			switch sig.Kind {
			case SignalWarning:
				m.emit(capture.Event{
					Type:      capture.EventWarning,
					SessionID: sessionID,
					Reason:    string(sig.Reason),
					Timestamp: time.Now().UTC(),
				})
			case SignalExpired:
				m.handleExpired(sessionID, sig.Reason)
			}
		}
	}
}

func (m *Manager) handleExpired(sessionID string, reason StopReason) {
	m.mu.Lock()
	if m.state != StateListening || m.sess == nil || m.sess.ID != sessionID {
		m.mu.Unlock()
		return
	}
	log.Printf("[capture] session %s auto-stopping: %s", sessionID, reason)
	ev := m.stopLocked()
	m.mu.Unlock()

	m.emit(ev)
}

func (m *Manager) answerEventFunc(sessionID string) func(question, answer string) {
	return func(question, answer string) {
		m.emit(capture.Event{
			Type:      capture.EventAnswer,
			SessionID: sessionID,
			Text:      question,
			Answer:    answer,
			Timestamp: time.Now().UTC(),
		})
	}
}

func (m *Manager) stateEventLocked() capture.Event {
	return capture.Event{
		Type:      capture.EventState,
		SessionID: m.sess.ID,
		State:     string(m.state),
		Timestamp: time.Now().UTC(),
	}
}

func (m *Manager) emit(events ...capture.Event) {
	if m.onEvent == nil {
		return
	}
	for _, ev := range events {
		m.onEvent(ev)
	}
}
