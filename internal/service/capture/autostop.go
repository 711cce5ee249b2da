package capture

import (
	"log"
	"sync"
	"time"
)

// MonitorState is the auto-stop state machine's position. The monitor
// runs on its own clock, independent of the session state machine.
type MonitorState string

const (
	MonitorIdle       MonitorState = "idle"
	MonitorMonitoring MonitorState = "monitoring"
	MonitorWarning    MonitorState = "warning"
	MonitorExpired    MonitorState = "expired"
)

// StopReason says which deadline a warning or expiry came from.
type StopReason string

const (
	ReasonSilence  StopReason = "silence"
	ReasonDuration StopReason = "duration"
)

// SignalKind distinguishes the two things a monitor can announce.
type SignalKind int

const (
	SignalWarning SignalKind = iota
	SignalExpired
)

// Signal is one monitor announcement, delivered on Signals().
type Signal struct {
	Kind     SignalKind
	Reason   StopReason
	Deadline time.Time
}

// MonitorConfig tunes the auto-stop policy.
type MonitorConfig struct {
	SilenceDeadline    time.Duration
	MaxDuration        time.Duration
	WarningWindow      time.Duration
	ExtendIncrement    time.Duration
	AmplitudeThreshold float64
}

// Monitor ends a session on prolonged silence or on the hard duration
// cap, warning first. Signals are emitted under the monitor's lock with
// a generation check, so once StopMonitoring returns no further signal
// can be produced for that run.
type Monitor struct {
	mu      sync.Mutex
	cfg     MonitorConfig
	state   MonitorState
	gen     uint64
	timer   *time.Timer
	signals chan Signal
	closed  bool

	silenceAt time.Time // silence deadline
	maxAt     time.Time // hard cap deadline
}

// NewMonitor builds a monitor in the Idle state.
func NewMonitor(cfg MonitorConfig) *Monitor {
	return &Monitor{
		cfg:     cfg,
		state:   MonitorIdle,
		signals: make(chan Signal, 8),
	}
}

// Signals is the monitor's announcement feed. It is closed by
// StopMonitoring.
func (m *Monitor) Signals() <-chan Signal {
	return m.signals
}

// State returns the current state.
func (m *Monitor) State() MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start begins monitoring. Only meaningful from Idle.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != MonitorIdle || m.closed {
		return
	}

	now := time.Now()
	m.silenceAt = now.Add(m.cfg.SilenceDeadline)
	m.maxAt = now.Add(m.cfg.MaxDuration)
	m.state = MonitorMonitoring
	m.rescheduleLocked(now)
}

// NoteActivity feeds one voice-amplitude sample; levels above the
// threshold count as speech and reset the silence countdown.
func (m *Monitor) NoteActivity(level float64) {
	if level < m.cfg.AmplitudeThreshold {
		return
	}
	m.ResetSilenceTimer()
}

// ResetSilenceTimer collapses Monitoring or Warning back to Monitoring
// with a fresh silence deadline.
func (m *Monitor) ResetSilenceTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != MonitorMonitoring && m.state != MonitorWarning {
		return
	}

	now := time.Now()
	m.silenceAt = now.Add(m.cfg.SilenceDeadline)
	m.state = MonitorMonitoring
	m.rescheduleLocked(now)
}

// Extend pushes the hard cap out by the configured increment and
// dismisses a pending warning.
func (m *Monitor) Extend() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != MonitorMonitoring && m.state != MonitorWarning {
		return
	}

	m.maxAt = m.maxAt.Add(m.cfg.ExtendIncrement)
	m.state = MonitorMonitoring
	m.rescheduleLocked(time.Now())
}

// StopMonitoring cancels all pending timers. Idempotent and safe from
// any state; no signal is emitted after it returns.
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.state != MonitorExpired {
		m.state = MonitorIdle
	}
	if !m.closed {
		m.closed = true
		close(m.signals)
	}
}

// rescheduleLocked arms the single timer for the next pending event.
func (m *Monitor) rescheduleLocked(now time.Time) {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}

	next, ok := m.nextEventLocked()
	if !ok {
		return
	}

	delay := next.Sub(now)
	if delay < 0 {
		delay = 0
	}

	gen := m.gen
	m.timer = time.AfterFunc(delay, func() { m.fire(gen) })
}

// nextEventLocked picks the earliest upcoming warning or expiry time.
func (m *Monitor) nextEventLocked() (time.Time, bool) {
	switch m.state {
	case MonitorMonitoring:
		next := m.silenceAt.Add(-m.cfg.WarningWindow)
		if alt := m.maxAt.Add(-m.cfg.WarningWindow); alt.Before(next) {
			next = alt
		}
		return next, true
	case MonitorWarning:
		next := m.silenceAt
		if m.maxAt.Before(next) {
			next = m.maxAt
		}
		return next, true
	default:
		return time.Time{}, false
	}
}

func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.closed {
		return
	}

	now := time.Now()

	if !now.Before(m.silenceAt) || !now.Before(m.maxAt) {
		reason := ReasonSilence
		deadline := m.silenceAt
		if m.maxAt.Before(m.silenceAt) {
			reason = ReasonDuration
			deadline = m.maxAt
		}
		m.state = MonitorExpired
		m.sendLocked(Signal{Kind: SignalExpired, Reason: reason, Deadline: deadline})
		return
	}

	if m.state == MonitorMonitoring {
		silenceWarn := m.silenceAt.Add(-m.cfg.WarningWindow)
		maxWarn := m.maxAt.Add(-m.cfg.WarningWindow)
		if !now.Before(silenceWarn) || !now.Before(maxWarn) {
			reason := ReasonSilence
			deadline := m.silenceAt
			if maxWarn.Before(silenceWarn) {
				reason = ReasonDuration
				deadline = m.maxAt
			}
			m.state = MonitorWarning
			m.sendLocked(Signal{Kind: SignalWarning, Reason: reason, Deadline: deadline})
		}
	}

	m.rescheduleLocked(now)
}

func (m *Monitor) sendLocked(sig Signal) {
	select {
	case m.signals <- sig:
	default:
		log.Printf("[autostop] dropping signal kind=%d reason=%s: channel full", sig.Kind, sig.Reason)
	}
}
