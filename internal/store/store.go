// Package store holds the canonical feed snapshot shared by both channels
// and the UI. Structural change detection runs on every Apply, so
// subscribers never observe two identical snapshots in sequence.
package store

import (
	"context"
	"log/slog"
	"sync"

	"feedwire/pkg/feed"
)

// nopHandler is a slog.Handler that discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Option configures optional Store behavior.
type Option func(*Store)

// WithLogger injects a structured logger into the Store.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store owns the canonical snapshot. Channels publish through Apply; the
// detector verdict decides whether the new reference propagates.
type Store struct {
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot feed.Snapshot
	subs     []func(feed.Snapshot)
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{logger: slog.New(nopHandler{})}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers a callback invoked (outside the lock) whenever the
// canonical snapshot changes. Register subscribers during wiring, before
// channels start publishing.
func (s *Store) Subscribe(fn func(feed.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Apply runs the change detection and, on a real change, atomically swaps
// the canonical snapshot and notifies subscribers. It reports whether the
// snapshot changed. On an Unchanged verdict the new reference is dropped,
// which is what keeps structurally identical poll results from causing
// downstream re-renders.
func (s *Store) Apply(next feed.Snapshot) bool {
	s.mu.Lock()
	if feed.Equal(s.snapshot, next) {
		s.mu.Unlock()
		s.logger.Debug("snapshot unchanged, suppressed", "messages", len(next))
		return false
	}
	s.snapshot = next
	subs := s.subs
	s.mu.Unlock()

	s.logger.Debug("snapshot applied", "messages", len(next))
	for _, fn := range subs {
		fn(next)
	}
	return true
}

// Snapshot returns a copy of the canonical snapshot.
func (s *Store) Snapshot() feed.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(feed.Snapshot, len(s.snapshot))
	copy(cp, s.snapshot)
	return cp
}

// Len returns the number of messages in the canonical snapshot.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshot)
}
