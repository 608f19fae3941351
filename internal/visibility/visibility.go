// Package visibility abstracts the hosting surface's foreground/background
// signal. The polling channel suspends while hidden and recovers staleness
// on return to visible. Embedding UIs drive a Manual source; headless
// deployments can map process signals through Signals.
package visibility

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// State is the hosting surface's visibility.
type State int

// Visibility states.
const (
	Visible State = iota
	Hidden
)

// String returns a human-readable label for the state.
func (s State) String() string {
	switch s {
	case Visible:
		return "visible"
	case Hidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// Source delivers visibility transitions. Implementations must stop
// delivering after Stop.
type Source interface {
	// Events returns the stream of visibility transitions.
	Events() <-chan State

	// Stop tears the source down. The events channel is closed.
	Stop()
}

// Manual is a Source driven by explicit Set calls. It is the integration
// point for embedding UIs and the test double for the polling channel.
type Manual struct {
	events   chan State
	stopOnce sync.Once
	mu       sync.Mutex
	stopped  bool
}

// Compile-time interface guard.
var _ Source = (*Manual)(nil)

// NewManual creates a Manual source.
func NewManual() *Manual {
	return &Manual{events: make(chan State, 8)}
}

// Set publishes a visibility transition. Calls after Stop are dropped.
func (m *Manual) Set(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.events <- s
}

// Events implements Source.
func (m *Manual) Events() <-chan State {
	return m.events
}

// Stop implements Source. Safe to call multiple times.
func (m *Manual) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		close(m.events)
		m.mu.Unlock()
	})
}

// Signals maps process signals to visibility transitions for headless
// deployments: SIGUSR1 hides, SIGUSR2 shows.
type Signals struct {
	logger   *slog.Logger
	events   chan State
	sigCh    chan os.Signal
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Compile-time interface guard.
var _ Source = (*Signals)(nil)

// NewSignals creates and starts a signal-driven source.
func NewSignals(logger *slog.Logger) *Signals {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Signals{
		logger: logger,
		events: make(chan State, 8),
		sigCh:  make(chan os.Signal, 2),
		stopCh: make(chan struct{}),
	}
	signal.Notify(s.sigCh, syscall.SIGUSR1, syscall.SIGUSR2)
	go s.loop()
	return s
}

func (s *Signals) loop() {
	defer close(s.events)
	for {
		select {
		case <-s.stopCh:
			return
		case sig := <-s.sigCh:
			state := Visible
			if sig == syscall.SIGUSR1 {
				state = Hidden
			}
			s.logger.Debug("visibility signal", "signal", sig.String(), "state", state.String())
			select {
			case s.events <- state:
			case <-s.stopCh:
				return
			}
		}
	}
}

// Events implements Source.
func (s *Signals) Events() <-chan State {
	return s.events
}

// Stop implements Source. Safe to call multiple times.
func (s *Signals) Stop() {
	s.stopOnce.Do(func() {
		signal.Stop(s.sigCh)
		close(s.stopCh)
	})
}
