// Package capability detects whether the backend deploys the optional
// attachment upload feature. Detection runs at most once per session:
// concurrent callers share a single in-flight probe, a conclusive result
// is cached for the session, and only transient failures re-probe.
package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"feedwire/internal/backend"
)

// State is the cached probe verdict.
type State int

// Capability states. Unknown transitions to Supported or Unsupported at
// most once; Unsupported is terminal for the session.
const (
	StateUnknown State = iota
	StateSupported
	StateUnsupported
)

// String returns a human-readable label for the state.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateSupported:
		return "supported"
	case StateUnsupported:
		return "unsupported"
	default:
		return "invalid"
	}
}

// ErrUnsupported is the permanent, user-facing verdict: the backend does
// not deploy attachment upload, so attachments cannot be sent this session.
var ErrUnsupported = errors.New("capability: attachments are unavailable on this connection")

// IsUnsupported reports whether err is or wraps ErrUnsupported.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// Prober issues the low-cost probe request. *backend.Client satisfies it.
type Prober interface {
	ProbeUploads(ctx context.Context) error
}

// nopHandler is a slog.Handler that discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Option configures optional Probe behavior.
type Option func(*Probe)

// WithLogger injects a structured logger into the Probe.
func WithLogger(l *slog.Logger) Option {
	return func(p *Probe) {
		if l != nil {
			p.logger = l
		}
	}
}

// Probe owns the CapabilityState. Everything else reads it through State.
type Probe struct {
	prober Prober
	logger *slog.Logger
	group  singleflight.Group

	mu    sync.Mutex
	state State
}

// NewProbe creates a Probe in the Unknown state.
func NewProbe(prober Prober, opts ...Option) *Probe {
	p := &Probe{
		prober: prober,
		logger: slog.New(nopHandler{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the cached capability state.
func (p *Probe) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// EnsureSupported returns nil once the backend is known to support
// attachment upload, and ErrUnsupported once it is known not to. With an
// Unknown state it issues the probe; concurrent callers await the same
// in-flight request instead of issuing duplicates. Transient failures
// (timeouts, connectivity) leave the state Unknown so the next call
// re-probes.
func (p *Probe) EnsureSupported(ctx context.Context) error {
	switch p.State() {
	case StateSupported:
		return nil
	case StateUnsupported:
		return ErrUnsupported
	}

	_, err, _ := p.group.Do("uploads", func() (any, error) {
		// Re-check under the flight: a previous caller may have settled
		// the state between the fast path and joining the group.
		switch p.State() {
		case StateSupported:
			return nil, nil
		case StateUnsupported:
			return nil, ErrUnsupported
		}

		probeErr := p.prober.ProbeUploads(ctx)
		switch {
		case probeErr == nil:
			p.setState(StateSupported)
			return nil, nil
		case backend.IsNotSupported(probeErr):
			p.setState(StateUnsupported)
			return nil, fmt.Errorf("%w: %v", ErrUnsupported, probeErr)
		default:
			// Transient: no state mutation, the next call re-probes.
			p.logger.Warn("capability probe failed transiently", "error", probeErr)
			return nil, fmt.Errorf("capability: probe failed: %w", probeErr)
		}
	})
	return err
}

func (p *Probe) setState(s State) {
	p.mu.Lock()
	prev := p.state
	p.state = s
	p.mu.Unlock()
	p.logger.Info("capability settled", "from", prev.String(), "to", s.String())
}
