package visibility

import (
	"testing"
	"time"
)

func TestManual_DeliversTransitions(t *testing.T) {
	t.Parallel()

	m := NewManual()
	defer m.Stop()

	m.Set(Hidden)
	m.Set(Visible)

	if got := <-m.Events(); got != Hidden {
		t.Errorf("first event = %v, want hidden", got)
	}
	if got := <-m.Events(); got != Visible {
		t.Errorf("second event = %v, want visible", got)
	}
}

func TestManual_StopClosesAndDropsLateSets(t *testing.T) {
	t.Parallel()

	m := NewManual()
	m.Stop()
	m.Stop() // idempotent

	m.Set(Hidden) // must not panic on the closed channel

	select {
	case _, ok := <-m.Events():
		if ok {
			t.Error("event delivered after Stop")
		}
	case <-time.After(time.Second):
		t.Error("events channel not closed after Stop")
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	if Visible.String() != "visible" || Hidden.String() != "hidden" {
		t.Errorf("unexpected labels: %q, %q", Visible, Hidden)
	}
	if State(42).String() != "unknown" {
		t.Errorf("out-of-range state = %q", State(42))
	}
}

func TestSignals_StopClosesEvents(t *testing.T) {
	t.Parallel()

	s := NewSignals(nil)
	s.Stop()
	s.Stop() // idempotent

	select {
	case _, ok := <-s.Events():
		if ok {
			t.Error("unexpected event after Stop")
		}
	case <-time.After(time.Second):
		t.Error("events channel not closed after Stop")
	}
}
