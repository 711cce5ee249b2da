package capture

import (
	"testing"
	"time"
)

func testMonitorConfig() MonitorConfig {
	return MonitorConfig{
		SilenceDeadline:    200 * time.Millisecond,
		MaxDuration:        5 * time.Second,
		WarningWindow:      100 * time.Millisecond,
		ExtendIncrement:    time.Second,
		AmplitudeThreshold: 0.05,
	}
}

func awaitSignal(t *testing.T, m *Monitor, within time.Duration) Signal {
	t.Helper()
	select {
	case sig, ok := <-m.Signals():
		if !ok {
			t.Fatal("signal channel closed before expected signal")
		}
		return sig
	case <-time.After(within):
		t.Fatal("timed out waiting for monitor signal")
	}
	return Signal{}
}

func TestMonitorWarnsThenExpiresOnSilence(t *testing.T) {
	m := NewMonitor(testMonitorConfig())
	m.Start()
	defer m.StopMonitoring()

	sig := awaitSignal(t, m, time.Second)
	if sig.Kind != SignalWarning || sig.Reason != ReasonSilence {
		t.Fatalf("expected silence warning first, got %+v", sig)
	}
	if m.State() != MonitorWarning {
		t.Fatalf("expected warning state, got %s", m.State())
	}

	sig = awaitSignal(t, m, time.Second)
	if sig.Kind != SignalExpired || sig.Reason != ReasonSilence {
		t.Fatalf("expected silence expiry, got %+v", sig)
	}
	if m.State() != MonitorExpired {
		t.Fatalf("expected expired state, got %s", m.State())
	}
}

func TestResetSilenceTimerCancelsCountdown(t *testing.T) {
	m := NewMonitor(testMonitorConfig())
	m.Start()
	defer m.StopMonitoring()

	// Wait into the warning window, then reset: the monitor must fall
	// back to Monitoring and restart the countdown.
	sig := awaitSignal(t, m, time.Second)
	if sig.Kind != SignalWarning {
		t.Fatalf("expected warning, got %+v", sig)
	}

	m.ResetSilenceTimer()
	if m.State() != MonitorMonitoring {
		t.Fatalf("expected monitoring after reset, got %s", m.State())
	}

	select {
	case sig := <-m.Signals():
		if sig.Kind == SignalExpired {
			t.Fatalf("expired despite reset: %+v", sig)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestActivityBelowThresholdIgnored(t *testing.T) {
	m := NewMonitor(testMonitorConfig())
	m.Start()
	defer m.StopMonitoring()

	deadline := time.After(time.Second)
	for {
		m.NoteActivity(0.01) // below threshold, must not reset
		select {
		case sig := <-m.Signals():
			if sig.Kind == SignalWarning {
				return // countdown proceeded as if silent
			}
		case <-deadline:
			t.Fatal("expected a warning despite sub-threshold activity")
		default:
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestExtendDismissesDurationWarning(t *testing.T) {
	cfg := testMonitorConfig()
	cfg.SilenceDeadline = 5 * time.Second
	cfg.MaxDuration = 200 * time.Millisecond
	m := NewMonitor(cfg)
	m.Start()
	defer m.StopMonitoring()

	sig := awaitSignal(t, m, time.Second)
	if sig.Kind != SignalWarning || sig.Reason != ReasonDuration {
		t.Fatalf("expected duration warning, got %+v", sig)
	}

	m.Extend()
	if m.State() != MonitorMonitoring {
		t.Fatalf("expected monitoring after extend, got %s", m.State())
	}

	// The extended cap is one second out; nothing should expire yet.
	select {
	case sig := <-m.Signals():
		if sig.Kind == SignalExpired {
			t.Fatalf("expired despite extension: %+v", sig)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStopMonitoringIsIdempotentAndSilencesSignals(t *testing.T) {
	cfg := testMonitorConfig()
	cfg.SilenceDeadline = 5 * time.Second
	m := NewMonitor(cfg)
	m.Start()

	m.StopMonitoring()
	m.StopMonitoring() // second call must be safe

	// The channel is closed and drained of nothing further.
	for sig := range m.Signals() {
		t.Fatalf("unexpected signal after stop: %+v", sig)
	}
}
