package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// nopHandler is a slog.Handler that discards all log records.
// Enabled returns false so slog skips formatting entirely (zero cost).
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Config controls detection behavior.
type Config struct {
	// DetectionTimeout is how long the negotiator waits for the reactive
	// channel to become ready before falling over to polling.
	// Default: 3s.
	DetectionTimeout time.Duration
}

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.DetectionTimeout <= 0 {
		c.DetectionTimeout = 3 * time.Second
	}
}

// Option configures optional Negotiator behavior.
type Option func(*Negotiator)

// WithLogger injects a structured logger into the Negotiator.
// When nil or omitted, all log output is silently discarded.
func WithLogger(l *slog.Logger) Option {
	return func(n *Negotiator) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithOnTransition registers a callback fired outside the lock whenever the
// transport state changes. Keeps the negotiator decoupled from consumers.
func WithOnTransition(fn func(from, to State)) Option {
	return func(n *Negotiator) { n.onTransition = fn }
}

// Negotiator owns the TransportState and decides between the reactive and
// polling channels from their status reports.
//
// Rules, evaluated on every report and on detection timeout:
//   - Reactive Ready while Detecting wins immediately, even after the
//     detection timer has fired (reactive is always preferred when ready).
//   - Polling Ready wins only once reactive has errored or the detection
//     timer has fired.
//   - Once Reactive or Polling is reached the decision is terminal for the
//     session; Reset (external, e.g. user-triggered recovery) is the only
//     way back to Detecting. Failover to Polling on a send failure is the
//     one other externally driven transition.
type Negotiator struct {
	cfg          Config
	logger       *slog.Logger
	onTransition func(from, to State)

	mu       sync.Mutex
	state    State
	timedOut bool
	timer    *time.Timer
	reactive Status
	polling  Status
}

// NewNegotiator creates a Negotiator in the Detecting state. The detection
// timer is not armed until Start.
func NewNegotiator(cfg Config, opts ...Option) *Negotiator {
	cfg.defaults()
	n := &Negotiator{
		cfg:      cfg,
		logger:   slog.New(nopHandler{}),
		state:    StateDetecting,
		reactive: Loading(),
		polling:  Loading(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Start arms the detection timer. It is a no-op if the negotiator has
// already left Detecting or the timer is already armed.
func (n *Negotiator) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateDetecting || n.timer != nil {
		return
	}
	n.timer = time.AfterFunc(n.cfg.DetectionTimeout, n.timerFired)
}

// Stop cancels the detection timer. Safe to call multiple times.
func (n *Negotiator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopTimerLocked()
}

// State returns the current transport state.
func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Report feeds a channel status into the state machine. Reports received
// after a terminal transition are recorded but do not change the state.
func (n *Negotiator) Report(src Source, st Status) {
	n.mu.Lock()
	switch src {
	case SourceReactive:
		n.reactive = st
	case SourcePolling:
		n.polling = st
	}
	from, to := n.evaluateLocked()
	n.mu.Unlock()

	n.fireTransition(from, to)
}

// Failover forces the Reactive → Polling transition. The dispatcher calls
// it when a send on the reactive channel fails for connectivity reasons.
// It is a no-op in any other state.
func (n *Negotiator) Failover() {
	n.mu.Lock()
	if n.state != StateReactive {
		n.mu.Unlock()
		return
	}
	n.state = StatePolling
	n.mu.Unlock()

	n.logger.Warn("transport failover", "from", StateReactive.String(), "to", StatePolling.String())
	n.fireTransition(StateReactive, StatePolling)
}

// Reset returns the negotiator to Detecting and re-arms the detection
// timer. It must only be driven by an explicit external recovery action,
// never automatically, to avoid flapping between transports.
func (n *Negotiator) Reset() {
	n.mu.Lock()
	from := n.state
	n.stopTimerLocked()
	n.state = StateDetecting
	n.timedOut = false
	n.reactive = Loading()
	n.polling = Loading()
	n.timer = time.AfterFunc(n.cfg.DetectionTimeout, n.timerFired)
	n.mu.Unlock()

	n.logger.Info("transport reset", "from", from.String())
	if from != StateDetecting {
		n.fireTransition(from, StateDetecting)
	}
}

// timerFired handles detection timeout. Reaching the timeout does not rule
// reactive out: it only unlocks the polling fallback.
func (n *Negotiator) timerFired() {
	n.mu.Lock()
	if n.state != StateDetecting {
		n.mu.Unlock()
		return
	}
	n.timedOut = true
	from, to := n.evaluateLocked()
	n.mu.Unlock()

	n.logger.Debug("detection timer fired", "timeout", n.cfg.DetectionTimeout)
	n.fireTransition(from, to)
}

// evaluateLocked applies the decision rules. It returns the transition that
// occurred, or (from == to) when nothing changed. Caller holds the lock.
func (n *Negotiator) evaluateLocked() (from, to State) {
	from = n.state
	if n.state != StateDetecting {
		return from, from
	}

	switch {
	case n.reactive.Phase == PhaseReady:
		n.state = StateReactive
	case (n.reactive.Phase == PhaseErrored || n.timedOut) && n.polling.Phase == PhaseReady:
		n.state = StatePolling
	default:
		// Neither side is conclusive. Remain Detecting and retry on the
		// next status report.
		return from, from
	}

	// First terminal transition cancels the detection timer exactly once.
	n.stopTimerLocked()
	return from, n.state
}

func (n *Negotiator) stopTimerLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *Negotiator) fireTransition(from, to State) {
	if from == to {
		return
	}
	n.logger.Info("transport selected", "from", from.String(), "to", to.String())
	if n.onTransition != nil {
		n.onTransition(from, to)
	}
}
